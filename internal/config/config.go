package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Gemini     GeminiConfig
	Qdrant     QdrantConfig
	Redis      RedisConfig
	Pipeline   PipelineConfig
	Resilience ResilienceConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port    string
	Env     string
	Version string
}

type GeminiConfig struct {
	ProjectID      string
	Location       string
	Model          string
	FallbackModel  string // "" disables the second model tier
	EmbeddingModel string
	ExtractorModel string // "" keeps the regex mention extractor
	Temperature    float32
	MaxTokens      int
}

type QdrantConfig struct {
	Host       string // "" runs without retrieval
	Port       int
	Collection string
	Dimension  uint64
}

type RedisConfig struct {
	Addr        string // "" disables usage limits
	TokenLimit  int
	UsageWindow time.Duration
}

type PipelineConfig struct {
	Deadline          time.Duration
	TopK              int
	DefaultConfidence float64
	CostPer1KTokens   float64
}

type ResilienceConfig struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

type LoggingConfig struct {
	Mode  string
	Level string
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Env:  "development",
		},
		Gemini: GeminiConfig{
			Location:       "us-central1",
			Model:          "gemini-2.5-flash",
			FallbackModel:  "gemini-2.0-flash",
			EmbeddingModel: "text-embedding-004",
			Temperature:    0.7,
			MaxTokens:      1024,
		},
		Qdrant: QdrantConfig{
			Port:       6334,
			Collection: "wine_knowledge",
			Dimension:  768,
		},
		Redis: RedisConfig{
			TokenLimit:  50000,
			UsageWindow: 24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			Deadline:          10 * time.Second,
			TopK:              5,
			DefaultConfidence: 0.8,
			CostPer1KTokens:   0.002,
		},
		Resilience: ResilienceConfig{
			MaxAttempts:      3,
			BaseDelay:        time.Second,
			MaxDelay:         30 * time.Second,
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Mode:  "development",
			Level: "info",
		},
	}
}

// Load reads envFile when present, then overlays the process environment on
// the defaults and validates the result.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := DefaultConfig()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	e := envReader{get: getenv}

	e.str("PORT", &c.Server.Port)
	e.str("ENV", &c.Server.Env)
	e.str("APP_VERSION", &c.Server.Version)

	e.str("GOOGLE_CLOUD_PROJECT", &c.Gemini.ProjectID)
	e.str("GOOGLE_CLOUD_LOCATION", &c.Gemini.Location)
	e.str("GEMINI_MODEL", &c.Gemini.Model)
	e.strAllowEmpty("GEMINI_FALLBACK_MODEL", &c.Gemini.FallbackModel)
	e.str("GEMINI_EMBEDDING_MODEL", &c.Gemini.EmbeddingModel)
	e.str("GEMINI_EXTRACTOR_MODEL", &c.Gemini.ExtractorModel)
	e.float32("GEMINI_TEMPERATURE", &c.Gemini.Temperature)
	e.int("GEMINI_MAX_TOKENS", &c.Gemini.MaxTokens)

	e.str("QDRANT_HOST", &c.Qdrant.Host)
	e.int("QDRANT_PORT", &c.Qdrant.Port)
	e.str("QDRANT_COLLECTION", &c.Qdrant.Collection)
	e.uint64("QDRANT_DIMENSION", &c.Qdrant.Dimension)

	e.str("REDIS_ADDR", &c.Redis.Addr)
	e.int("USER_TOKEN_LIMIT", &c.Redis.TokenLimit)
	e.duration("USAGE_WINDOW", &c.Redis.UsageWindow)

	e.duration("PIPELINE_DEADLINE", &c.Pipeline.Deadline)
	e.int("KNOWLEDGE_TOP_K", &c.Pipeline.TopK)
	e.float64("DEFAULT_CONFIDENCE", &c.Pipeline.DefaultConfidence)
	e.float64("COST_PER_1K_TOKENS", &c.Pipeline.CostPer1KTokens)

	e.int("RETRY_MAX_ATTEMPTS", &c.Resilience.MaxAttempts)
	e.duration("RETRY_BASE_DELAY", &c.Resilience.BaseDelay)
	e.duration("RETRY_MAX_DELAY", &c.Resilience.MaxDelay)
	e.int("BREAKER_FAILURE_THRESHOLD", &c.Resilience.FailureThreshold)
	e.duration("BREAKER_RECOVERY_TIMEOUT", &c.Resilience.RecoveryTimeout)

	e.str("LOG_MODE", &c.Logging.Mode)
	e.str("LOG_LEVEL", &c.Logging.Level)

	return errors.Join(e.errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %q", c.Server.Port))
	}
	if c.Gemini.ProjectID == "" {
		errs = append(errs, errors.New("GOOGLE_CLOUD_PROJECT is required"))
	}
	if c.Gemini.Model == "" {
		errs = append(errs, errors.New("gemini model is required"))
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %v", c.Gemini.Temperature))
	}
	if c.Qdrant.Host != "" && c.Qdrant.Dimension == 0 {
		errs = append(errs, errors.New("qdrant dimension must be positive"))
	}
	if c.Pipeline.Deadline <= 0 {
		errs = append(errs, errors.New("pipeline deadline must be positive"))
	}
	if c.Pipeline.DefaultConfidence <= 0 || c.Pipeline.DefaultConfidence > 1 {
		errs = append(errs, fmt.Errorf("default confidence must be in (0, 1], got %v", c.Pipeline.DefaultConfidence))
	}
	if c.Resilience.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Resilience.FailureThreshold < 1 {
		errs = append(errs, errors.New("breaker failure threshold must be at least 1"))
	}
	return errors.Join(errs...)
}

// QdrantEnabled reports whether knowledge retrieval should be wired.
func (c *Config) QdrantEnabled() bool { return c.Qdrant.Host != "" }

// RedisEnabled reports whether usage limiting should be wired.
func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

type envReader struct {
	get  func(string) string
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(e.get(key))
	return v, v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

// strAllowEmpty lets "none" clear a value that has a non-empty default.
func (e *envReader) strAllowEmpty(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		if strings.EqualFold(v, "none") {
			v = ""
		}
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) uint64(key string, dst *uint64) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) float64(key string, dst *float64) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (e *envReader) float32(key string, dst *float32) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = float32(f)
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
