package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/loomworks/mcpagent/internal/errors"
)

// Environment variables consumed.
const (
	EnvProvider    = "MCPAGENT_PROVIDER"
	EnvModel       = "MCPAGENT_MODEL"
	EnvServerURL   = "MCP_SERVER_URL"
	EnvServerCmd   = "MCP_SERVER_COMMAND"
	EnvServerToken = "MCP_SERVER_TOKEN"
	EnvTimeout     = "MCPAGENT_TIMEOUT_SECONDS"
	EnvMaxTurns    = "MCPAGENT_MAX_TURNS"

	EnvOpenRouterKey = "OPENROUTER_API_KEY"
	EnvMistralKey    = "MISTRAL_API_KEY"
	EnvGeminiKey     = "GEMINI_API_KEY"
)

// Config is everything read from the environment at process start.
type Config struct {
	// Provider selects the text-generation endpoint: openrouter, mistral,
	// or gemini.
	Provider string
	APIKey   string
	Model    string

	// Exactly one of ServerURL and ServerCommand is set: the MCP endpoint
	// to POST to, or the server command to spawn on stdio.
	ServerURL     string
	ServerCommand string
	ServerArgs    []string

	// ServerToken is the bearer token for HTTP servers. Optional.
	ServerToken string

	Timeout  time.Duration
	MaxTurns int
}

// providerKeyVars maps provider names to their API key variables.
var providerKeyVars = map[string]string{
	"openrouter": EnvOpenRouterKey,
	"mistral":    EnvMistralKey,
	"gemini":     EnvGeminiKey,
}

// Load reads and validates the environment. A .env file in the working
// directory is loaded first when present; real environment variables win
// over file entries. Validation failures are ConfigurationErrors and are
// reported before any network activity.
func Load() (*Config, error) {
	// Overload is not used: the process environment takes precedence.
	_ = godotenv.Load()

	cfg := &Config{
		Provider:    strings.ToLower(strings.TrimSpace(os.Getenv(EnvProvider))),
		Model:       strings.TrimSpace(os.Getenv(EnvModel)),
		ServerURL:   strings.TrimSpace(os.Getenv(EnvServerURL)),
		ServerToken: os.Getenv(EnvServerToken),
		Timeout:     30 * time.Second,
	}

	if cfg.Provider == "" {
		return nil, &errors.ConfigurationError{Field: EnvProvider, Reason: "not set"}
	}

	keyVar, ok := providerKeyVars[cfg.Provider]
	if !ok {
		return nil, &errors.ConfigurationError{
			Field:  EnvProvider,
			Reason: "unknown provider " + cfg.Provider,
		}
	}

	cfg.APIKey = os.Getenv(keyVar)
	if cfg.APIKey == "" {
		return nil, &errors.ConfigurationError{Field: keyVar, Reason: "not set"}
	}

	if cfg.Model == "" {
		return nil, &errors.ConfigurationError{Field: EnvModel, Reason: "not set"}
	}

	if command := strings.TrimSpace(os.Getenv(EnvServerCmd)); command != "" {
		fields := strings.Fields(command)
		cfg.ServerCommand = fields[0]
		cfg.ServerArgs = fields[1:]
	}

	switch {
	case cfg.ServerURL == "" && cfg.ServerCommand == "":
		return nil, &errors.ConfigurationError{
			Field:  EnvServerURL,
			Reason: "neither " + EnvServerURL + " nor " + EnvServerCmd + " is set",
		}

	case cfg.ServerURL != "" && cfg.ServerCommand != "":
		return nil, &errors.ConfigurationError{
			Field:  EnvServerURL,
			Reason: EnvServerURL + " and " + EnvServerCmd + " are mutually exclusive",
		}
	}

	if raw := os.Getenv(EnvTimeout); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return nil, &errors.ConfigurationError{Field: EnvTimeout, Reason: "must be a positive integer"}
		}

		cfg.Timeout = time.Duration(seconds) * time.Second
	}

	if raw := os.Getenv(EnvMaxTurns); raw != "" {
		turns, err := strconv.Atoi(raw)
		if err != nil || turns <= 0 {
			return nil, &errors.ConfigurationError{Field: EnvMaxTurns, Reason: "must be a positive integer"}
		}

		cfg.MaxTurns = turns
	}

	return cfg, nil
}

// RedactSecret renders a secret safe for logs and error messages: enough
// to recognize which credential it is, never enough to use it.
func RedactSecret(secret string) string {
	if secret == "" {
		return ""
	}

	if len(secret) <= 8 {
		return "…"
	}

	return secret[:4] + "…" + secret[len(secret)-2:]
}
