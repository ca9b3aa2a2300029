package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Queries and knowledge snippets are embedded with the same task type.
const embeddingTaskType = "SEMANTIC_SIMILARITY"

var ErrNoEmbedding = errors.New("embedding response was empty")

// Embedder turns knowledge snippets and recommendation queries into vectors sized for
// the knowledge collection.
type Embedder struct {
	client    *genai.Client
	model     string // e.g., "text-embedding-004"
	dimension int32
}

// NewEmbedderFromClient shares the completion client's connection. A dimension of 0
// leaves the model's native size.
func NewEmbedderFromClient(c *genai.Client, model string, dimension int) *Embedder {
	return &Embedder{
		client:    c,
		model:     model,
		dimension: int32(dimension),
	}
}

func (e *Embedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), e.config())
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", e.model, err)
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil || len(res.Embeddings[0].Values) == 0 {
		return nil, ErrNoEmbedding
	}
	values := res.Embeddings[0].Values
	if e.dimension > 0 && len(values) != int(e.dimension) {
		return nil, fmt.Errorf("embed with %s: got %d dimensions, collection expects %d", e.model, len(values), e.dimension)
	}
	return values, nil
}

func (e *Embedder) config() *genai.EmbedContentConfig {
	cfg := &genai.EmbedContentConfig{
		TaskType:     embeddingTaskType,
		AutoTruncate: true,
	}
	if e.dimension > 0 {
		cfg.OutputDimensionality = genai.Ptr(e.dimension)
	}
	return cfg
}
