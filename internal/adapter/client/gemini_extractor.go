package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
	"sommelier-core/internal/resilience"
)

const extractorInstruction = `Extract every specific wine the text recommends as a JSON array.
Each element is an object with "phrase" (producer or label as written), "vintage" (integer, 0 if absent),
"varietal" (grape or sparkling style) and "sentence" (the sentence it appears in).
Return [] when no wine is named. Do not explain.`

const DefaultExtractTimeout = 3 * time.Second

// GeminiExtractor asks the model to locate wine mentions and falls back to
// another extractor when the call or the JSON fails, the breaker is open, or
// the call outlives its timeout.
type GeminiExtractor struct {
	generate func(ctx context.Context, text string) (string, error)
	fallback repository.MentionExtractor
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	log      *zap.Logger
}

func NewGeminiExtractor(client *genai.Client, model string, fallback repository.MentionExtractor, breaker *resilience.CircuitBreaker, timeout time.Duration, log *zap.Logger) *GeminiExtractor {
	e := newGeminiExtractor(nil, fallback, breaker, timeout, log)
	e.generate = func(ctx context.Context, text string) (string, error) {
		cfg := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(extractorInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0),
		}
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(text), cfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return e
}

func newGeminiExtractor(generate func(context.Context, string) (string, error), fallback repository.MentionExtractor, breaker *resilience.CircuitBreaker, timeout time.Duration, log *zap.Logger) *GeminiExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}
	return &GeminiExtractor{
		generate: generate,
		fallback: fallback,
		breaker:  breaker,
		timeout:  timeout,
		log:      log.With(zap.String("component", "gemini_extractor")),
	}
}

func (e *GeminiExtractor) ExtractMentions(ctx context.Context, text string) []entity.WineMention {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := resilience.Execute(callCtx, e.breaker, func(ctx context.Context) (string, error) {
		return e.generate(ctx, text)
	})
	if err != nil {
		e.log.Debug("mention extraction call failed", zap.Error(err))
		return e.useFallback(ctx, text)
	}
	mentions, err := decodeMentions(raw)
	if err != nil {
		e.log.Debug("mention extraction returned invalid json", zap.Error(err))
		return e.useFallback(ctx, text)
	}
	return mentions
}

func (e *GeminiExtractor) useFallback(ctx context.Context, text string) []entity.WineMention {
	if e.fallback == nil {
		return nil
	}
	return e.fallback.ExtractMentions(ctx, text)
}

// decodeMentions accepts a bare JSON array, optionally inside a markdown fence,
// and drops entries without a phrase or varietal.
func decodeMentions(raw string) ([]entity.WineMention, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed []entity.WineMention
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return nil, err
	}
	out := make([]entity.WineMention, 0, len(parsed))
	for _, m := range parsed {
		m.Phrase = strings.TrimSpace(m.Phrase)
		m.Varietal = strings.TrimSpace(m.Varietal)
		if m.Phrase == "" || m.Varietal == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
