package providers

import (
	"context"
	"errors"
	"time"
)

// ErrAITimeout marks a provider read timeout. The orchestrator retries once
// and then falls back to an alternate provider; any other provider error is
// not retried.
var ErrAITimeout = errors.New("ai provider timed out")

// ErrAINotConfigured marks a missing credential or unusable provider
// configuration. Never retried.
var ErrAINotConfigured = errors.New("ai provider not configured")

// EmptyCompletion is returned by adapters when a provider produced no text,
// so that callers always receive a parseable string instead of an error.
const EmptyCompletion = "[]"

// AIProvider is the uniform capability contract over the LLM backends: a
// cheap validator verdict and a full card-generation completion.
type AIProvider interface {
	// Name returns the provider key used in source_detail tags.
	Name() string

	// Validate performs the short verdict call.
	Validate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error)

	// Generate performs the full card-generation completion.
	Generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error)
}
