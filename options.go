package mcpagent

import (
	"log/slog"
	"net/http"
	"time"
)

// ServerConfig selects how the MCP server is reached.
type ServerConfig interface {
	isServerConfig()
}

// StdioServerConfig spawns the server command as a subprocess and speaks
// newline-delimited JSON over its pipes.
type StdioServerConfig struct {
	Command string
	Args    []string
	// Env entries are appended to the current process environment.
	Env []string
}

func (StdioServerConfig) isServerConfig() {}

// HTTPServerConfig reaches an already-running streamable-HTTP endpoint.
type HTTPServerConfig struct {
	URL string
	// Token is sent as a bearer token when non-empty.
	Token string
	// WaitReady polls the endpoint until it answers before initializing.
	WaitReady bool
}

func (HTTPServerConfig) isServerConfig() {}

// ProviderConfig selects and configures the text-generation endpoint.
type ProviderConfig struct {
	// Name is one of openrouter, mistral, gemini.
	Name   string
	APIKey string
	Model  string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string
}

// Options configures a Session.
type Options struct {
	// Server is required.
	Server ServerConfig

	// Provider is required for Ask; Connect without it still serves
	// Tools and Resources.
	Provider ProviderConfig

	// SystemPrompt seeds the transcript when non-empty.
	SystemPrompt string

	// MaxTurns bounds model round-trips per query. Zero means the default.
	MaxTurns int

	// ResultLimit bounds how many bytes of a tool result enter the
	// transcript. Zero means the default.
	ResultLimit int

	// RequestTimeout bounds each MCP request. Zero means the default.
	RequestTimeout time.Duration

	// HTTPClient is used for all outbound HTTP. Nil means a default client.
	HTTPClient *http.Client

	// Logger receives structured logs. Nil means no logging.
	Logger *slog.Logger
}
