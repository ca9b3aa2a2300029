package entity

import (
	"errors"
	"fmt"
	"time"
)

// Standard domain errors
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded: too many tokens used")
	ErrInvalidRequest    = errors.New("invalid request parameters")
	ErrRetrievalFailed   = errors.New("knowledge retrieval failed")
	ErrValidationFailed  = errors.New("response failed validation")
	ErrNoRecommendations = errors.New("no recommendations could be parsed")
	ErrEmptyCompletion   = errors.New("empty completion")
)

type CompletionErrorKind string

const (
	CompletionRateLimited   CompletionErrorKind = "rate_limited"
	CompletionTimeout       CompletionErrorKind = "timeout"
	CompletionQuotaExceeded CompletionErrorKind = "quota_exceeded"
	CompletionUnknown       CompletionErrorKind = "unknown"
)

// CompletionError is the typed failure of a CompletionService call.
type CompletionError struct {
	Kind       CompletionErrorKind
	RetryAfter time.Duration
	Message    string
	Cause      error
}

func (e *CompletionError) Error() string {
	if e == nil {
		return "completion failed"
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Kind == CompletionRateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("completion %s (retry after %s): %s", e.Kind, e.RetryAfter, msg)
	}
	return fmt.Sprintf("completion %s: %s", e.Kind, msg)
}

func (e *CompletionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Retryable reports whether another attempt may succeed.
func (e *CompletionError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Kind == CompletionRateLimited || e.Kind == CompletionTimeout
}

func NewRateLimited(retryAfter time.Duration, msg string) *CompletionError {
	return &CompletionError{Kind: CompletionRateLimited, RetryAfter: retryAfter, Message: msg}
}

func NewCompletionTimeout(cause error) *CompletionError {
	return &CompletionError{Kind: CompletionTimeout, Message: "completion timed out", Cause: cause}
}

func NewQuotaExceeded(msg string) *CompletionError {
	return &CompletionError{Kind: CompletionQuotaExceeded, Message: msg}
}

func NewCompletionUnknown(msg string, cause error) *CompletionError {
	return &CompletionError{Kind: CompletionUnknown, Message: msg, Cause: cause}
}

// CompletionKind extracts the failure kind, defaulting to unknown for foreign errors.
func CompletionKind(err error) CompletionErrorKind {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return CompletionUnknown
}

// RetryAfterHint exposes the provider's suggested wait to the retry loop.
func (e *CompletionError) RetryAfterHint() time.Duration {
	if e == nil {
		return 0
	}
	return e.RetryAfter
}
