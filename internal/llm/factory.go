package llm

import (
	"log/slog"
	"net/http"

	"github.com/loomworks/mcpagent/internal/errors"
)

// Provider names accepted by the factory.
const (
	ProviderOpenRouter = "openrouter"
	ProviderMistral    = "mistral"
	ProviderGemini     = "gemini"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string

	// BaseURL overrides the provider's default endpoint. Useful for tests
	// and proxies.
	BaseURL string

	HTTPClient *http.Client
}

// New builds a Client for the named provider.
func New(log *slog.Logger, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, &errors.ConfigurationError{Field: "api key", Reason: "not set"}
	}

	if cfg.Model == "" {
		return nil, &errors.ConfigurationError{Field: "model", Reason: "not set"}
	}

	switch cfg.Provider {
	case ProviderOpenRouter:
		base := cfg.BaseURL
		if base == "" {
			base = OpenRouterBaseURL
		}

		return NewOpenAIClient(log, cfg.HTTPClient, base, cfg.APIKey, cfg.Model), nil

	case ProviderMistral:
		base := cfg.BaseURL
		if base == "" {
			base = MistralBaseURL
		}

		return NewOpenAIClient(log, cfg.HTTPClient, base, cfg.APIKey, cfg.Model), nil

	case ProviderGemini:
		base := cfg.BaseURL
		if base == "" {
			base = GeminiBaseURL
		}

		return NewGeminiClient(log, cfg.HTTPClient, base, cfg.APIKey, cfg.Model), nil

	default:
		return nil, &errors.ConfigurationError{
			Field:  "provider",
			Reason: "unknown provider " + cfg.Provider,
		}
	}
}
