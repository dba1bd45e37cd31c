package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loomworks/mcpagent/internal/errors"
	"github.com/loomworks/mcpagent/internal/transport"
)

// DefaultCallTimeout bounds how long a single request waits for its
// matching response.
const DefaultCallTimeout = 30 * time.Second

// Conn is a correlated JSON-RPC connection over a record transport.
//
// The Conn handles:
//   - Allocating strictly increasing numeric request ids
//   - Routing responses to the waiting caller by id
//   - Per-request timeout enforcement
//   - Failing all outstanding requests when the transport closes
//
// A Conn must be started with Start() before use and manages its own
// goroutine for reading and routing records. Conns are single-use: once
// closed, dial a new one.
type Conn struct {
	log       *slog.Logger
	transport transport.Transport
	timeout   time.Duration

	nextID atomic.Int64

	// Request tracking
	pendingMu sync.Mutex
	pending   map[int64]chan *Response

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewConn creates a connection over the given transport. A zero timeout
// falls back to DefaultCallTimeout.
func NewConn(log *slog.Logger, t transport.Transport, timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &Conn{
		log:       log.With("component", "rpc"),
		transport: t,
		timeout:   timeout,
		pending:   make(map[int64]chan *Response, 8),
		done:      make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Conn) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// setFatalError stores a fatal error and broadcasts to all waiters.
func (c *Conn) setFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the transport error that stopped the connection, if any.
func (c *Conn) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the connection stops.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Start begins reading records from the transport and routing responses.
//
// Start must be called before Call or Notify.
func (c *Conn) Start(ctx context.Context) {
	c.log.Debug("Starting connection read loop")

	records, errs := c.transport.Records(ctx)

	c.wg.Add(1)

	go c.readLoop(ctx, records, errs)
}

// Close stops the connection and the underlying transport. All outstanding
// calls fail with ErrTransportClosed. Safe to call multiple times.
func (c *Conn) Close() error {
	c.log.Debug("Closing connection")

	c.closeDone()
	err := c.transport.Close()
	c.wg.Wait()

	return err
}

// Call sends a request and waits for the matching response's result.
//
// The request id is allocated at send time and never reused. The caller
// suspends until the matching response arrives, the per-request timeout
// elapses (ErrRequestTimeout), the transport fails (ErrTransportClosed or
// the transport's own error), or the context is cancelled. A response
// carrying an error member surfaces as *errors.RemoteError.
//
// No automatic retry is performed on any failure.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, c.closedErr()
	default:
	}

	id := c.nextID.Add(1)

	c.log.Debug("Sending request", "id", id, "method", method)

	responseChan := make(chan *Response, 1)

	c.pendingMu.Lock()
	c.pending[id] = responseChan
	c.pendingMu.Unlock()

	data, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		c.removePending(id)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.transport.Send(ctx, data); err != nil {
		c.removePending(id)

		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp := <-responseChan:
		if resp.Error != nil {
			c.log.Warn("Request returned error",
				"id", id, "method", method,
				"code", resp.Error.Code, "message", resp.Error.Message,
			)

			return nil, &errors.RemoteError{Code: resp.Error.Code, Message: resp.Error.Message}
		}

		c.log.Debug("Request resolved", "id", id, "method", method)

		return resp.Result, nil

	case <-c.done:
		// Connection stopped (possibly a transport error) - fail fast.
		c.removePending(id)

		return nil, c.closedErr()

	case <-time.After(c.timeout):
		c.removePending(id)

		c.log.Warn("Request timed out", "id", id, "method", method, "timeout", c.timeout)

		return nil, fmt.Errorf("%s: %w after %s", method, errors.ErrRequestTimeout, c.timeout)

	case <-ctx.Done():
		c.removePending(id)

		c.log.Debug("Request cancelled", "id", id, "method", method)

		return nil, ctx.Err()
	}
}

// Notify sends an id-less request. No response is expected or awaited.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}

	c.log.Debug("Sending notification", "method", method)

	data, err := json.Marshal(newNotification(method, params))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := c.transport.Send(ctx, data); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	return nil
}

func (c *Conn) closedErr() error {
	if err := c.FatalError(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrTransportClosed, err)
	}

	return errors.ErrConnClosed
}

func (c *Conn) removePending(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop reads records from the transport and routes responses.
func (c *Conn) readLoop(
	ctx context.Context,
	records <-chan json.RawMessage,
	errs <-chan error,
) {
	defer c.wg.Done()
	defer c.failPending()
	defer c.log.Debug("Connection read loop stopped")

	for {
		select {
		case record, ok := <-records:
			if !ok {
				c.log.Debug("Record channel closed")
				c.closeDone()

				return
			}

			c.handleRecord(record)

		case err, ok := <-errs:
			if !ok {
				c.log.Debug("Error channel closed")
				c.closeDone()

				return
			}

			if err != nil {
				c.log.Debug("Transport error", "error", err)
				c.setFatalError(err)

				return
			}

		case <-c.done:
			return

		case <-ctx.Done():
			c.closeDone()

			return
		}
	}
}

// handleRecord decodes one record and resolves the matching pending call.
func (c *Conn) handleRecord(record json.RawMessage) {
	var resp Response

	if err := json.Unmarshal(record, &resp); err != nil {
		c.log.Debug("Skipping undecodable record", "error", err)

		return
	}

	if resp.ID == nil {
		// Server-originated notification or request; this client issues
		// requests only, so log and move on.
		c.log.Debug("Ignoring record without id")

		return
	}

	id := *resp.ID

	// Claim the pending call atomically so a late duplicate cannot
	// resolve it twice.
	c.pendingMu.Lock()

	responseChan, exists := c.pending[id]
	if exists {
		delete(c.pending, id)
	}

	c.pendingMu.Unlock()

	if !exists {
		// Either a response to an already timed-out call or a server bug.
		// Dropped, but loudly enough to diagnose protocol mismatches.
		c.log.Warn("No pending call for response", "id", id)

		return
	}

	// Channel is buffered and we own the pending entry; never blocks.
	responseChan <- &resp
}

// failPending wakes every outstanding caller after the read loop exits.
// Callers observe the fatal error through the done channel.
func (c *Conn) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if len(c.pending) > 0 {
		c.log.Warn("Failing outstanding calls", "count", len(c.pending))
	}

	clear(c.pending)
}
