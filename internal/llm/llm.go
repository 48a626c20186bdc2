package llm

import (
	"context"
	"fmt"
	"strings"

	"clara-backend/internal/shared/telemetry"
)

// Provider identifies an AI backend. Routing is by this explicit value,
// chosen at job creation, never by runtime type inspection.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ParseProvider maps a raw string onto a known Provider.
func ParseProvider(raw string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai", "":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return "", fmt.Errorf("unknown provider %q", raw)
	}
}

// Client abstracts AI backends behind a single completion operation.
// Implementations return the raw text reply; recovering structured data
// from it is the caller's concern.
type Client interface {
	Complete(ctx context.Context, systemPrompt, content, model string) (string, error)
}

// ProviderError wraps a backend failure (network, auth, rate limit) with
// the provider it came from.
type ProviderError struct {
	Provider Provider
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return string(e.Provider) + ": provider error"
	}
	return string(e.Provider) + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DefaultMaxContentChars caps user content sent upstream. Long documents
// are cut here to respect provider context limits.
const DefaultMaxContentChars = 100000

// TruncationMarker is appended to content cut at the character limit.
// Downstream extraction must tolerate it appearing in model echo.
const TruncationMarker = "\n\n[Content truncated due to length]"

// TruncateContent enforces the character limit on user content. When the
// cut happens it is logged so dropped evidence is never invisible.
func TruncateContent(provider Provider, content string, limit int) string {
	if limit <= 0 {
		limit = DefaultMaxContentChars
	}
	if len(content) <= limit {
		return content
	}
	telemetry.Warn("llm.content_truncated", map[string]any{
		"provider":    string(provider),
		"limit":       limit,
		"content_len": len(content),
		"dropped":     len(content) - limit,
	})
	return content[:limit] + TruncationMarker
}
