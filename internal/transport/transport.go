package transport

import (
	"context"
	"encoding/json"
)

// Transport moves opaque JSON records between the client and an MCP server,
// regardless of framing. Implementations handle their own record boundaries:
// newline-delimited JSON for the stdio transport, one-record-per-response for
// the HTTP transport.
//
// The interface is satisfied by StdioTransport and HTTPTransport, and by mock
// transports in tests.
type Transport interface {
	// Start establishes the transport (spawns the subprocess or verifies
	// the endpoint is configured). Must be called before Send or Records.
	Start(ctx context.Context) error

	// Send transmits one complete JSON record.
	Send(ctx context.Context, data []byte) error

	// Records returns channels delivering incoming records and transport
	// errors. Both channels are closed when the transport stops. Malformed
	// records are skipped, not delivered as errors.
	Records(ctx context.Context) (<-chan json.RawMessage, <-chan error)

	// Close tears the transport down. Safe to call more than once.
	Close() error
}
