package errors

import (
	"errors"
	"fmt"
)

// CodeMethodNotFound is the JSON-RPC error code servers return for
// methods they do not implement. Callers probing optional methods
// (resources/list) treat it as "feature unavailable" rather than fatal.
const CodeMethodNotFound = -32601

// AgentError is the base interface for all errors produced by this module.
type AgentError interface {
	error
	IsAgentError() bool
}

// Compile-time verification that all error types implement AgentError.
var (
	_ AgentError = (*ConfigurationError)(nil)
	_ AgentError = (*TransportError)(nil)
	_ AgentError = (*ProcessError)(nil)
	_ AgentError = (*RemoteError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrRequestTimeout indicates no matching response arrived within the
	// request window. Distinct from an error answer: the server never spoke.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrTransportClosed indicates the transport failed or closed while
	// requests were still outstanding.
	ErrTransportClosed = errors.New("transport closed")

	// ErrConnClosed indicates the connection has been closed and cannot be
	// reused. Connections are single-use; dial a new one.
	ErrConnClosed = errors.New("connection closed")

	// ErrNotConnected indicates the transport has not been started.
	ErrNotConnected = errors.New("transport not connected")

	// ErrAlreadyInitialized indicates Initialize was called twice on the
	// same client.
	ErrAlreadyInitialized = errors.New("client already initialized")

	// ErrNotInitialized indicates an operation was attempted before the
	// initialize handshake completed.
	ErrNotInitialized = errors.New("client not initialized")

	// ErrTurnBudgetExceeded indicates the tool loop hit its iteration
	// ceiling without the model producing a final answer. Fatal for the
	// query, not for the session.
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrSessionClosed indicates the session has been closed and cannot be
	// reused. Sessions are single-use; create a new one with Connect().
	ErrSessionClosed = errors.New("session closed: sessions are single-use, create a new one with Connect()")
)

// ConfigurationError indicates a required credential or endpoint is missing
// or malformed. Reported before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// IsAgentError implements AgentError.
func (e *ConfigurationError) IsAgentError() bool { return true }

// TransportError indicates a connection, framing, or HTTP status failure.
// Not retried automatically.
type TransportError struct {
	Op     string // what was being attempted, e.g. "post", "dial"
	Status int    // HTTP status code when applicable, else 0
	Body   string // response body excerpt when applicable
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error: %s: status %d: %s", e.Op, e.Status, e.Body)
	}

	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAgentError implements AgentError.
func (e *TransportError) IsAgentError() bool { return true }

// ProcessError indicates the spawned MCP server process failed.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("server process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("server process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsAgentError implements AgentError.
func (e *ProcessError) IsAgentError() bool { return true }

// RemoteError is a JSON-RPC error returned by the server, propagated
// verbatim to the caller.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// IsAgentError implements AgentError.
func (e *RemoteError) IsAgentError() bool { return true }

// IsMethodNotFound reports whether err is a RemoteError carrying the
// method-not-found code.
func IsMethodNotFound(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Code == CodeMethodNotFound
	}

	return false
}
