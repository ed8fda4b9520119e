package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
)

// Provider abstracts one LLM backend. Generate failures are already
// classified (rate limit, model not found, auth, timeout) so the bridge can
// walk its fallback ladder on the right signals.
type Provider interface {
	Name() string
	Generate(ctx context.Context, model, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
	// FallbackModels is the fixed preference-ordered candidate list used
	// after the explicit override and the cached last-working model.
	FallbackModels() []string
}

// ErrModelNotFound signals that the requested model does not exist on the
// provider; the bridge reacts by querying the live model list once.
var ErrModelNotFound = errors.New("model not found")

// classifyGenerateError maps raw provider errors onto the upstream taxonomy.
// Providers speak different dialects, so this falls back to substring checks.
func classifyGenerateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrUpstreamTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota"):
		return models.ErrUpstreamRateLimited
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "not_found"),
		strings.Contains(msg, "404"):
		return ErrModelNotFound
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "permission"),
		strings.Contains(msg, "api key"):
		return models.ErrUpstreamAuthFailed
	case strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "timeout"):
		return models.ErrUpstreamTimeout
	}
	return models.ErrUpstreamError
}
