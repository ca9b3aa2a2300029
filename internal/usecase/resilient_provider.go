package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
	"sommelier-core/internal/resilience"
)

// ResilientProvider wraps a CompletionService with a circuit breaker and
// retries, then tries a secondary model once if the primary is exhausted.
type ResilientProvider struct {
	service       repository.CompletionService
	breaker       *resilience.CircuitBreaker
	retry         resilience.RetryOptions
	fallbackModel string // "" disables the second tier
	log           *zap.Logger
}

func NewResilientProvider(service repository.CompletionService, breaker *resilience.CircuitBreaker, retry resilience.RetryOptions, fallbackModel string, log *zap.Logger) *ResilientProvider {
	if log == nil {
		log = zap.NewNop()
	}
	p := &ResilientProvider{
		service:       service,
		breaker:       breaker,
		fallbackModel: fallbackModel,
		log:           log.With(zap.String("component", "resilient_provider")),
	}
	retry.RetryIf = isRetryable
	retry.OnRetry = func(attempt int, err error) {
		p.log.Warn("completion attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.String("kind", string(entity.CompletionKind(err))),
			zap.Error(err),
		)
	}
	p.retry = retry
	return p
}

func (r *ResilientProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, params entity.ModelParams) (*entity.Completion, error) {
	res := resilience.Retry(ctx, func(ctx context.Context) (*entity.Completion, error) {
		return resilience.Execute(ctx, r.breaker, func(ctx context.Context) (*entity.Completion, error) {
			return r.service.Complete(ctx, systemPrompt, userPrompt, params)
		})
	}, r.retry)
	if res.Success {
		return res.Value, nil
	}
	err := normalizeCompletionError(res.Err)

	if !r.shouldFallback(ctx, err, params.Model) {
		return nil, err
	}
	r.log.Warn("primary model exhausted, switching to fallback model",
		zap.String("primary", params.Model),
		zap.String("fallback", r.fallbackModel),
		zap.Int("attempts", res.Attempts),
		zap.Error(err),
	)

	fallbackParams := params
	fallbackParams.Model = r.fallbackModel
	resp, ferr := resilience.Execute(ctx, r.breaker, func(ctx context.Context) (*entity.Completion, error) {
		return r.service.Complete(ctx, systemPrompt, userPrompt, fallbackParams)
	})
	if ferr != nil {
		return nil, fmt.Errorf("both primary and fallback failed: %w", normalizeCompletionError(ferr))
	}
	return resp, nil
}

func (r *ResilientProvider) shouldFallback(ctx context.Context, err error, primary string) bool {
	if r.fallbackModel == "" || r.fallbackModel == primary || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	return entity.CompletionKind(err) != entity.CompletionQuotaExceeded
}

// isRetryable retries rate limits, timeouts and network-shaped failures only.
func isRetryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var ce *entity.CompletionError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "deadline")
}

// normalizeCompletionError types whatever came back so callers can branch on kind.
func normalizeCompletionError(err error) error {
	var ce *entity.CompletionError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce) && ce.Kind == entity.CompletionTimeout:
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return entity.NewCompletionTimeout(err)
	case errors.As(err, &ce), errors.Is(err, resilience.ErrCircuitOpen):
		return err
	default:
		return entity.NewCompletionUnknown("", err)
	}
}
