package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
	"sommelier-core/internal/resilience"
)

const DefaultTopK = 5

// KnowledgeRetriever embeds a query and looks up similar knowledge snippets.
// Retrieve never fails: any error degrades to an empty result.
type KnowledgeRetriever struct {
	embedder repository.Embedder
	index    repository.VectorIndex
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryOptions
	log      *zap.Logger
}

func NewKnowledgeRetriever(embedder repository.Embedder, index repository.VectorIndex, breaker *resilience.CircuitBreaker, retry resilience.RetryOptions, log *zap.Logger) *KnowledgeRetriever {
	if log == nil {
		log = zap.NewNop()
	}
	retry.RetryIf = retryableInfraError
	return &KnowledgeRetriever{
		embedder: embedder,
		index:    index,
		breaker:  breaker,
		retry:    retry,
		log:      log.With(zap.String("component", "knowledge_retriever")),
	}
}

func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query string, profile *entity.TasteProfile, topK int) []entity.KnowledgeItem {
	if topK <= 0 {
		topK = DefaultTopK
	}
	text := retrievalText(query, profile)

	res := resilience.Retry(ctx, func(ctx context.Context) ([]repository.VectorMatch, error) {
		return resilience.Execute(ctx, r.breaker, func(ctx context.Context) ([]repository.VectorMatch, error) {
			vec, err := r.embedder.CreateEmbedding(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("embedding generation failed: %w", err)
			}
			return r.index.Query(ctx, vec, nil, topK)
		})
	}, r.retry)

	if !res.Success {
		r.log.Warn("knowledge retrieval degraded to empty result",
			zap.Error(errors.Join(entity.ErrRetrievalFailed, res.Err)),
			zap.Int("attempts", res.Attempts),
		)
		return []entity.KnowledgeItem{}
	}

	items := make([]entity.KnowledgeItem, 0, len(res.Value))
	for _, m := range res.Value {
		items = append(items, entity.KnowledgeItem{
			ID:       m.ID,
			Title:    m.Metadata["title"],
			Content:  m.Metadata["content"],
			Category: m.Metadata["category"],
			Region:   m.Metadata["region"],
			Varietal: m.Metadata["varietal"],
			Score:    clampScore(m.Score),
		})
	}
	return items
}

// Index embeds and stores a knowledge snippet, returning its id.
func (r *KnowledgeRetriever) Index(ctx context.Context, item entity.KnowledgeItem) (string, error) {
	if strings.TrimSpace(item.Content) == "" {
		return "", fmt.Errorf("%w: knowledge content is required", entity.ErrInvalidRequest)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	metadata := map[string]string{
		"title":    item.Title,
		"content":  item.Content,
		"category": item.Category,
		"region":   item.Region,
		"varietal": item.Varietal,
	}

	res := resilience.Retry(ctx, func(ctx context.Context) (struct{}, error) {
		return resilience.Execute(ctx, r.breaker, func(ctx context.Context) (struct{}, error) {
			vec, err := r.embedder.CreateEmbedding(ctx, item.Title+"\n"+item.Content)
			if err != nil {
				return struct{}{}, fmt.Errorf("embedding generation failed: %w", err)
			}
			return struct{}{}, r.index.Upsert(ctx, item.ID, vec, metadata)
		})
	}, r.retry)
	if !res.Success {
		return "", fmt.Errorf("index knowledge %s: %w", item.ID, res.Err)
	}
	return item.ID, nil
}

func retrievalText(query string, profile *entity.TasteProfile) string {
	text := strings.TrimSpace(query)
	if profile == nil {
		return text
	}
	if len(profile.PreferredVarietals) > 0 {
		text += "\nPreferred varietals: " + strings.Join(profile.PreferredVarietals, ", ")
	}
	if len(profile.PreferredRegions) > 0 {
		text += "\nPreferred regions: " + strings.Join(profile.PreferredRegions, ", ")
	}
	return text
}

func clampScore(s float32) float32 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// retryableInfraError keeps retrying transport-shaped failures but gives up
// on an open breaker or a caller that went away.
func retryableInfraError(err error) bool {
	return !errors.Is(err, resilience.ErrCircuitOpen) && !errors.Is(err, context.Canceled)
}

// NoKnowledge stands in when no vector store is configured.
type NoKnowledge struct{}

func (NoKnowledge) Retrieve(context.Context, string, *entity.TasteProfile, int) []entity.KnowledgeItem {
	return []entity.KnowledgeItem{}
}
