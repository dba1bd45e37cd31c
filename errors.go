package mcpagent

import "github.com/loomworks/mcpagent/internal/errors"

// Re-export error types from internal package

// ConfigurationError indicates a required credential or endpoint is missing.
type ConfigurationError = errors.ConfigurationError

// TransportError indicates a connection, framing, or HTTP status failure.
type TransportError = errors.TransportError

// ProcessError indicates the spawned MCP server process failed.
type ProcessError = errors.ProcessError

// RemoteError is a JSON-RPC error returned by the server.
type RemoteError = errors.RemoteError

// AgentError is the base interface for all errors produced by this module.
type AgentError = errors.AgentError

// Re-export sentinel errors from internal package.
var (
	// ErrRequestTimeout indicates no matching response arrived in time.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrTransportClosed indicates the transport failed with requests outstanding.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrConnClosed indicates the connection was closed and cannot be reused.
	ErrConnClosed = errors.ErrConnClosed

	// ErrTurnBudgetExceeded indicates a query hit the tool loop's ceiling.
	ErrTurnBudgetExceeded = errors.ErrTurnBudgetExceeded

	// ErrSessionClosed indicates the session has been closed and cannot be
	// reused. Sessions are single-use, create a new one with Connect().
	ErrSessionClosed = errors.ErrSessionClosed
)

// IsMethodNotFound reports whether err is the server's method-not-found
// error, the soft signal that an optional method is unimplemented.
func IsMethodNotFound(err error) bool {
	return errors.IsMethodNotFound(err)
}
