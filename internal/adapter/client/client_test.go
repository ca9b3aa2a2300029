package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/resilience"
)

func TestClassifyGenAIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want entity.CompletionErrorKind
	}{
		{"quota", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Quota exceeded for project"}, entity.CompletionQuotaExceeded},
		{"rate limited", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Too many requests"}, entity.CompletionRateLimited},
		{"pointer api error", &genai.APIError{Code: 503, Message: "The model is overloaded"}, entity.CompletionRateLimited},
		{"wrapped api error", fmt.Errorf("generate: %w", genai.APIError{Code: 504, Message: "upstream"}), entity.CompletionTimeout},
		{"deadline status", genai.APIError{Code: 400, Status: "DEADLINE_EXCEEDED"}, entity.CompletionTimeout},
		{"context deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), entity.CompletionTimeout},
		{"bad request", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad prompt"}, entity.CompletionUnknown},
		{"transport", errors.New("connection reset by peer"), entity.CompletionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGenAIError(context.Background(), tt.err)
			assert.Equal(t, tt.want, entity.CompletionKind(got))

			var ce *entity.CompletionError
			require.ErrorAs(t, got, &ce)
			assert.Equal(t, tt.err, ce.Cause)
		})
	}
}

func TestClassifyGenAIError_RateLimitHint(t *testing.T) {
	err := classifyGenAIError(context.Background(), genai.APIError{Code: 429, Message: "slow down"})

	var ce *entity.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, defaultRateLimitWait, ce.RetryAfterHint())
	assert.True(t, ce.Retryable())
}

func TestClassifyGenAIError_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := classifyGenAIError(ctx, errors.New("stream closed"))
	assert.Equal(t, entity.CompletionTimeout, entity.CompletionKind(err))
}

func TestDecodeMentions(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		got, err := decodeMentions(`[{"phrase":"Ridge Monte Bello","vintage":2016,"varietal":"Cabernet Sauvignon","sentence":"Open the Ridge."}]`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, entity.WineMention{Phrase: "Ridge Monte Bello", Vintage: 2016, Varietal: "Cabernet Sauvignon", Sentence: "Open the Ridge."}, got[0])
	})

	t.Run("fenced and filtered", func(t *testing.T) {
		raw := "```json\n[{\"phrase\":\" Krug \",\"varietal\":\"Champagne\"},{\"phrase\":\"\",\"varietal\":\"Merlot\"},{\"phrase\":\"X\"}]\n```"
		got, err := decodeMentions(raw)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Krug", got[0].Phrase)
	})

	t.Run("empty array", func(t *testing.T) {
		got, err := decodeMentions("[]")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := decodeMentions("The Ridge is lovely.")
		assert.Error(t, err)
	})
}

type fixedExtractor []entity.WineMention

func (f fixedExtractor) ExtractMentions(context.Context, string) []entity.WineMention { return f }

var regexResult = fixedExtractor{{Phrase: "Cloudy Bay", Varietal: "Sauvignon Blanc"}}

func TestGeminiExtractor_UsesModelOutput(t *testing.T) {
	x := newGeminiExtractor(func(ctx context.Context, text string) (string, error) {
		return `[{"phrase":"Krug","varietal":"Champagne"}]`, nil
	}, regexResult, nil, time.Second, nil)

	got := x.ExtractMentions(context.Background(), "Open the Krug Champagne.")

	require.Len(t, got, 1)
	assert.Equal(t, "Krug", got[0].Phrase)
}

func TestGeminiExtractor_FallsBack(t *testing.T) {
	tests := []struct {
		name     string
		generate func(ctx context.Context, text string) (string, error)
	}{
		{"call error", func(context.Context, string) (string, error) { return "", errors.New("unavailable") }},
		{"invalid json", func(context.Context, string) (string, error) { return "Krug is lovely.", nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newGeminiExtractor(tt.generate, regexResult, nil, time.Second, nil)
			assert.Equal(t, []entity.WineMention(regexResult), x.ExtractMentions(context.Background(), "text"))
		})
	}
}

func TestGeminiExtractor_HangingModelIsBounded(t *testing.T) {
	x := newGeminiExtractor(func(ctx context.Context, text string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, regexResult, nil, 20*time.Millisecond, nil)

	begin := time.Now()
	got := x.ExtractMentions(context.Background(), "text")

	assert.Less(t, time.Since(begin), time.Second)
	assert.Equal(t, []entity.WineMention(regexResult), got)
}

func TestGeminiExtractor_OpenBreakerSkipsModel(t *testing.T) {
	var calls atomic.Int32
	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{Name: "extraction", FailureThreshold: 1, RecoveryTimeout: time.Hour})
	x := newGeminiExtractor(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", errors.New("model overloaded")
	}, regexResult, cb, time.Second, nil)

	x.ExtractMentions(context.Background(), "text")
	got := x.ExtractMentions(context.Background(), "text")

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, resilience.StateOpen, cb.State())
	assert.Equal(t, []entity.WineMention(regexResult), got)
}
