package usecase

import (
	"context"
	"sync"
	"time"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
	"sommelier-core/internal/resilience"
)

func fastRetry() resilience.RetryOptions {
	return resilience.RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}
}

type completionFunc func(ctx context.Context, system, user string, params entity.ModelParams) (*entity.Completion, error)

type fakeCompletion struct {
	mu     sync.Mutex
	fn     completionFunc
	calls  int
	models []string
	system string
	user   string
}

func (f *fakeCompletion) Complete(ctx context.Context, system, user string, params entity.ModelParams) (*entity.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.models = append(f.models, params.Model)
	f.system, f.user = system, user
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, system, user, params)
}

func (f *fakeCompletion) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func respondWith(text string, tokens int) completionFunc {
	return func(_ context.Context, _, _ string, p entity.ModelParams) (*entity.Completion, error) {
		return &entity.Completion{Text: text, TokensUsed: tokens, Model: p.Model}, nil
	}
}

func failWith(err error) completionFunc {
	return func(context.Context, string, string, entity.ModelParams) (*entity.Completion, error) {
		return nil, err
	}
}

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type upsertCall struct {
	id       string
	vector   []float32
	metadata map[string]string
}

type fakeIndex struct {
	mu        sync.Mutex
	matches   []repository.VectorMatch
	queryErr  error
	upsertErr error
	topK      int
	upserts   []upsertCall
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, _ map[string]string, topK int) ([]repository.VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topK = topK
	return f.matches, f.queryErr
}

func (f *fakeIndex) Upsert(_ context.Context, id string, vector []float32, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{id: id, vector: vector, metadata: metadata})
	return nil
}

type staticKnowledge []entity.KnowledgeItem

func (s staticKnowledge) Retrieve(context.Context, string, *entity.TasteProfile, int) []entity.KnowledgeItem {
	return s
}

type panickingKnowledge struct{}

func (panickingKnowledge) Retrieve(context.Context, string, *entity.TasteProfile, int) []entity.KnowledgeItem {
	panic("vector store exploded")
}

type recordingSink struct {
	records chan entity.UsageRecord
}

func newRecordingSink() *recordingSink {
	return &recordingSink{records: make(chan entity.UsageRecord, 8)}
}

func (s *recordingSink) Record(_ context.Context, rec entity.UsageRecord) {
	s.records <- rec
}
