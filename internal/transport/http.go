package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/loomworks/mcpagent/internal/errors"
)

const (
	// sessionHeader carries the server-assigned session identifier.
	sessionHeader = "Mcp-Session-Id"
	// maxBodyExcerpt bounds error-body excerpts in TransportError.
	maxBodyExcerpt = 512
	// defaultReadyInterval is the poll interval for WaitReady.
	defaultReadyInterval = 250 * time.Millisecond
)

// HTTPTransport exchanges JSON records with a streamable-HTTP MCP endpoint.
// Each Send is one POST; the response body carries at most one record,
// either as plain JSON or as the first data record of an event stream.
//
// The server assigns a session identifier on the first response. It is
// captured exactly once and attached to every later request; later attempts
// by the server to change it within the same transport are ignored. Since
// capture happens on the first response, the first call on a fresh transport
// (initialize) necessarily goes out without the header.
type HTTPTransport struct {
	log      *slog.Logger
	endpoint string
	token    string
	client   *http.Client

	sessionMu sync.Mutex
	sessionID string

	records chan json.RawMessage
	errs    chan error

	closeOnce sync.Once
	done      chan struct{}
}

// Compile-time verification that HTTPTransport implements Transport.
var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for the given MCP endpoint URL.
// The bearer token may be empty for unauthenticated servers. A nil client
// falls back to a default with a conservative timeout.
func NewHTTPTransport(log *slog.Logger, endpoint, token string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &HTTPTransport{
		log:      log.With("component", "http_transport"),
		endpoint: endpoint,
		token:    token,
		client:   client,
		records:  make(chan json.RawMessage, 16),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Start validates the endpoint URL. No connection is held open between
// requests, so there is nothing else to establish.
func (t *HTTPTransport) Start(_ context.Context) error {
	parsed, err := url.Parse(t.endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &errors.TransportError{Op: "parse endpoint", Err: fmt.Errorf("invalid endpoint %q", t.endpoint)}
	}

	t.log.Info("HTTP transport ready", "endpoint", parsed.Redacted())

	return nil
}

// WaitReady polls the endpoint until it answers any HTTP response or the
// context expires. Any status counts as ready: a 4xx from the server still
// proves the server is up, which is all the readiness check asserts.
func (t *HTTPTransport) WaitReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultReadyInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempt := 0

	for {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, nil)
		if err != nil {
			return &errors.TransportError{Op: "readiness request", Err: err}
		}

		resp, err := t.client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()

			t.log.Debug("Endpoint ready", "attempts", attempt, "status", resp.StatusCode)

			return nil
		}

		t.log.Debug("Endpoint not ready yet", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return &errors.TransportError{Op: "readiness poll", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// Send POSTs one record to the endpoint and feeds any response record into
// the Records channel.
//
// A 2xx response with a JSON body yields one record. A 2xx event-stream
// response yields the first well-formed data record, if any. An empty body
// (servers answer notifications with 202 Accepted) yields none. Any other
// status is a TransportError.
func (t *HTTPTransport) Send(ctx context.Context, data []byte) error {
	select {
	case <-t.done:
		return errors.ErrTransportClosed
	default:
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(data))
	if err != nil {
		return &errors.TransportError{Op: "build request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	if session := t.currentSessionID(); session != "" {
		req.Header.Set(sessionHeader, session)
	}

	t.log.Debug("Posting record", "data_len", len(data))

	resp, err := t.client.Do(req)
	if err != nil {
		return &errors.TransportError{Op: "post", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	t.captureSessionID(resp.Header.Get(sessionHeader))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))

		return &errors.TransportError{
			Op:     "post",
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(excerpt)),
		}
	}

	record, err := t.extractRecord(resp)
	if err != nil {
		return err
	}

	if record == nil {
		return nil
	}

	select {
	case t.records <- record:
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// extractRecord pulls the response record out of the body, honoring the
// Content-Type the server chose.
func (t *HTTPTransport) extractRecord(resp *http.Response) (json.RawMessage, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	switch mediaType {
	case "text/event-stream":
		return firstEventRecord(t.log, resp.Body), nil

	default:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &errors.TransportError{Op: "read body", Err: err}
		}

		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 {
			return nil, nil
		}

		if !json.Valid(trimmed) {
			t.log.Debug("Skipping malformed response body", "body", string(trimmed))

			return nil, nil
		}

		return json.RawMessage(trimmed), nil
	}
}

// Records returns the channels Send feeds. The channels are never closed;
// consumers should select against their own shutdown signal.
func (t *HTTPTransport) Records(_ context.Context) (<-chan json.RawMessage, <-chan error) {
	return t.records, t.errs
}

// SessionID returns the captured session identifier, or "" before
// initialize has completed.
func (t *HTTPTransport) SessionID() string {
	return t.currentSessionID()
}

// Close marks the transport closed. In-flight requests finish on their own;
// later Sends fail with ErrTransportClosed.
func (t *HTTPTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
	})

	return nil
}

func (t *HTTPTransport) currentSessionID() string {
	t.sessionMu.Lock()
	defer t.sessionMu.Unlock()

	return t.sessionID
}

// captureSessionID stores the server-assigned session id the first time one
// appears. A later, different id is a protocol smell and is ignored.
func (t *HTTPTransport) captureSessionID(id string) {
	if id == "" {
		return
	}

	t.sessionMu.Lock()
	defer t.sessionMu.Unlock()

	switch {
	case t.sessionID == "":
		t.sessionID = id
		t.log.Info("Captured session identifier")

	case t.sessionID != id:
		t.log.Warn("Server attempted to change session identifier, ignoring")
	}
}
