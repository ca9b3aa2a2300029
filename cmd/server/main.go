package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sommelier-core/internal/adapter/api"
	"sommelier-core/internal/adapter/client"
	"sommelier-core/internal/adapter/metrics"
	"sommelier-core/internal/adapter/store"
	"sommelier-core/internal/config"
	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
	"sommelier-core/internal/platform/logger"
	"sommelier-core/internal/resilience"
	"sommelier-core/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Headroom over the pipeline deadline for the usage check and response encoding.
const requestTimeoutMargin = 5 * time.Second

func main() {
	cfg, err := config.Load(".env.dev")
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Gemini.ProjectID,
		Location: cfg.Gemini.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		log.Fatal("failed to init genai client", zap.Error(err))
	}

	promSink := metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
	newBreaker := func(name string) *resilience.CircuitBreaker {
		cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
			Name:             name,
			FailureThreshold: cfg.Resilience.FailureThreshold,
			RecoveryTimeout:  cfg.Resilience.RecoveryTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
				promSink.ObserveBreaker(name, from, to)
			},
		})
		promSink.TrackBreaker(cb)
		return cb
	}
	retry := resilience.RetryOptions{
		MaxAttempts: cfg.Resilience.MaxAttempts,
		BaseDelay:   cfg.Resilience.BaseDelay,
		MaxDelay:    cfg.Resilience.MaxDelay,
		Jitter:      true,
	}

	// Completion tier
	primaryModel := client.NewGeminiClientFromClient(genaiClient, cfg.Gemini.Model)
	resilientProvider := usecase.NewResilientProvider(primaryModel, newBreaker("completion"), retry, cfg.Gemini.FallbackModel, log)

	var extractor repository.MentionExtractor = usecase.NewRegexMentionExtractor()
	if cfg.Gemini.ExtractorModel != "" {
		extractor = client.NewGeminiExtractor(genaiClient, cfg.Gemini.ExtractorModel, extractor, newBreaker("extraction"), client.DefaultExtractTimeout, log)
	}

	// Qdrant for knowledge retrieval
	var (
		knowledge repository.KnowledgeSource = usecase.NoKnowledge{}
		indexer   api.KnowledgeIndexer
		embedder  *client.Embedder
	)
	if cfg.QdrantEnabled() {
		qClient, err := qdrant.NewClient(&qdrant.Config{
			Host: cfg.Qdrant.Host,
			Port: cfg.Qdrant.Port,
		})
		if err != nil {
			log.Fatal("failed to connect to qdrant", zap.Error(err))
		}
		defer qClient.Close()

		vectorStore := store.NewQdrantStore(qClient, cfg.Qdrant.Collection, log)
		if err := vectorStore.InitCollection(ctx, cfg.Qdrant.Dimension); err != nil {
			log.Fatal("failed to init qdrant collection", zap.Error(err))
		}
		embedder = client.NewEmbedderFromClient(genaiClient, cfg.Gemini.EmbeddingModel, int(cfg.Qdrant.Dimension))
		retriever := usecase.NewKnowledgeRetriever(embedder, vectorStore, newBreaker("retrieval"), retry, log)
		knowledge, indexer = retriever, retriever
	} else {
		log.Info("QDRANT_HOST not set, running without knowledge retrieval")
	}

	// Redis for usage limits
	sinks := metrics.MultiSink{promSink}
	var limiter repository.UsageLimiter
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
		})
		defer rdb.Close()

		tokenLimiter := store.NewRedisLimiter(rdb, cfg.Redis.TokenLimit, cfg.Redis.UsageWindow)
		limiter = tokenLimiter
		sinks = append(sinks, store.NewRedisUsageSink(rdb, tokenLimiter, log))
	}

	engine := usecase.NewRecommendationEngine(usecase.EngineDeps{
		Completion: resilientProvider,
		Knowledge:  knowledge,
		Metrics:    sinks,
		Parser:     usecase.NewRecommendationParser(extractor, cfg.Pipeline.DefaultConfidence),
		Logger:     log,
	}, usecase.EngineConfig{
		Model: entity.ModelParams{
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
			MaxTokens:   cfg.Gemini.MaxTokens,
		},
		Deadline:        cfg.Pipeline.Deadline,
		TopK:            cfg.Pipeline.TopK,
		CostPer1KTokens: cfg.Pipeline.CostPer1KTokens,
	})

	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if embedder != nil {
			if _, err := embedder.CreateEmbedding(warmCtx, "warmup"); err != nil {
				log.Warn("embedder warm-up failed", zap.Error(err))
			}
		}
		// Wakes up the model instance
		if _, err := primaryModel.Complete(warmCtx, "Reply with OK.", ".", entity.ModelParams{MaxTokens: 4}); err != nil {
			log.Warn("gemini warm-up failed", zap.Error(err))
		}
		log.Info("pre-warm complete")
	}()

	// Initialize API Layer (Delivery Layer)
	app := fiber.New(fiber.Config{
		AppName: "Sommelier Recommendation Service",
	})
	handler := api.NewRecommendationHandler(engine, indexer, limiter, log)
	api.SetupRouter(app, handler, api.RouterConfig{
		Version:        cfg.Server.Version,
		Env:            cfg.Server.Env,
		RequestTimeout: cfg.Pipeline.Deadline + requestTimeoutMargin,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("sommelier service listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}
