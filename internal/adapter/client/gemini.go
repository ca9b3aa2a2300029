package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"sommelier-core/internal/domain/entity"

	"google.golang.org/genai"
)

const defaultRateLimitWait = 5 * time.Second

type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClientFromClient binds one model to a shared Vertex client.
func NewGeminiClientFromClient(c *genai.Client, model string) *GeminiClient {
	return &GeminiClient{
		client: c,
		model:  model,
	}
}

func (g *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params entity.ModelParams) (*entity.Completion, error) {
	model := params.Model
	if model == "" {
		model = g.model
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if params.Temperature > 0 {
		cfg.Temperature = genai.Ptr(params.Temperature)
	}
	if params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(params.MaxTokens)
	}

	result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(userPrompt), cfg)
	if err != nil {
		return nil, classifyGenAIError(ctx, err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, entity.NewCompletionUnknown("model returned no text", entity.ErrEmptyCompletion)
	}

	tokens := 0
	if result.UsageMetadata != nil {
		tokens = int(result.UsageMetadata.TotalTokenCount)
	}
	return &entity.Completion{
		Text:       text,
		TokensUsed: tokens,
		Model:      model,
	}, nil
}

// classifyGenAIError maps SDK and transport errors onto completion failure kinds.
func classifyGenAIError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return entity.NewCompletionTimeout(err)
	}

	code, status, msg := 0, "", err.Error()
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status, msg = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status, msg = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	}
	return classifyStatus(code, status, msg, err)
}

func classifyStatus(code int, status, msg string, cause error) error {
	lower := strings.ToLower(msg)
	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		if strings.Contains(lower, "quota") {
			ce := entity.NewQuotaExceeded(msg)
			ce.Cause = cause
			return ce
		}
		ce := entity.NewRateLimited(defaultRateLimitWait, msg)
		ce.Cause = cause
		return ce
	case code == http.StatusServiceUnavailable || strings.Contains(lower, "overloaded"):
		ce := entity.NewRateLimited(defaultRateLimitWait, msg)
		ce.Cause = cause
		return ce
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout || status == "DEADLINE_EXCEEDED":
		return entity.NewCompletionTimeout(cause)
	default:
		return entity.NewCompletionUnknown(msg, cause)
	}
}
