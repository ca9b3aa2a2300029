package repository

import (
	"context"
	"sommelier-core/internal/domain/entity"
)

// CompletionService returns a non-empty completion or an *entity.CompletionError.
type CompletionService interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, params entity.ModelParams) (*entity.Completion, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type VectorMatch struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

type VectorIndex interface {
	Query(ctx context.Context, vector []float32, filter map[string]string, topK int) ([]VectorMatch, error)
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
}

// KnowledgeSource is what the engine sees of retrieval; it never fails.
type KnowledgeSource interface {
	Retrieve(ctx context.Context, query string, profile *entity.TasteProfile, topK int) []entity.KnowledgeItem
}

// MetricsSink must not block the caller.
type MetricsSink interface {
	Record(ctx context.Context, rec entity.UsageRecord)
}

type UsageLimiter interface {
	CheckLimit(ctx context.Context, userID string) (bool, error)
	Increment(ctx context.Context, userID string, tokens int) error
}

// MentionExtractor locates wine references in free text.
type MentionExtractor interface {
	ExtractMentions(ctx context.Context, text string) []entity.WineMention
}
