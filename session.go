package mcpagent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/mcpagent/internal/errors"
	"github.com/loomworks/mcpagent/internal/llm"
	"github.com/loomworks/mcpagent/internal/loop"
	"github.com/loomworks/mcpagent/internal/mcpclient"
	"github.com/loomworks/mcpagent/internal/rpc"
	"github.com/loomworks/mcpagent/internal/transport"
)

// Session owns one MCP connection, the server's tool catalog, and the
// conversation transcript. The transcript grows monotonically for the
// session's lifetime and is owned exclusively by the session: queries run
// one at a time.
//
// Sessions are single-use. After Close, create a new one with Connect.
type Session struct {
	log    *slog.Logger
	conn   *rpc.Conn
	client *mcpclient.Client
	runner *loop.Runner

	catalog []*mcp.Tool

	mu         sync.Mutex
	transcript []llm.Message
	closed     bool
}

// Connect dials the MCP server, performs the initialize handshake, and
// fetches the tool catalog.
//
// Configuration failures surface before any network activity. A provider
// is only required for Ask: a session connected without one still serves
// Tools and Resources.
func Connect(ctx context.Context, opts *Options) (*Session, error) {
	if opts == nil || opts.Server == nil {
		return nil, &errors.ConfigurationError{Field: "server", Reason: "not set"}
	}

	log := opts.Logger
	if log == nil {
		log = NopLogger()
	}

	tr, err := buildTransport(ctx, log, opts)
	if err != nil {
		return nil, err
	}

	if err := tr.Start(ctx); err != nil {
		return nil, err
	}

	conn := rpc.NewConn(log, tr, opts.RequestTimeout)
	conn.Start(ctx)

	client := mcpclient.NewClient(log, conn)

	if err := client.Initialize(ctx); err != nil {
		_ = conn.Close()

		return nil, err
	}

	catalog, err := client.ListTools(ctx)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	session := &Session{
		log:     log.With("component", "session"),
		conn:    conn,
		client:  client,
		catalog: catalog,
	}

	if opts.SystemPrompt != "" {
		session.transcript = append(session.transcript, llm.SystemMessage(opts.SystemPrompt))
	}

	if opts.Provider.Name != "" {
		model, err := llm.New(log, llm.Config{
			Provider:   opts.Provider.Name,
			APIKey:     opts.Provider.APIKey,
			Model:      opts.Provider.Model,
			BaseURL:    opts.Provider.BaseURL,
			HTTPClient: opts.HTTPClient,
		})
		if err != nil {
			_ = conn.Close()

			return nil, err
		}

		session.runner = loop.NewRunner(log, model, client, opts.MaxTurns, opts.ResultLimit)
	}

	session.log.Info("Session established", "tools", len(catalog))

	return session, nil
}

// buildTransport constructs the transport for the configured server.
func buildTransport(ctx context.Context, log *slog.Logger, opts *Options) (transport.Transport, error) {
	switch server := opts.Server.(type) {
	case StdioServerConfig:
		if server.Command == "" {
			return nil, &errors.ConfigurationError{Field: "server command", Reason: "not set"}
		}

		return transport.NewStdioTransport(log, server.Command, server.Args, server.Env), nil

	case HTTPServerConfig:
		if server.URL == "" {
			return nil, &errors.ConfigurationError{Field: "server url", Reason: "not set"}
		}

		tr := transport.NewHTTPTransport(log, server.URL, server.Token, opts.HTTPClient)

		if server.WaitReady {
			if err := tr.WaitReady(ctx, 0); err != nil {
				return nil, err
			}
		}

		return tr, nil

	default:
		return nil, &errors.ConfigurationError{
			Field:  "server",
			Reason: fmt.Sprintf("unsupported server config %T", opts.Server),
		}
	}
}

// Ask runs one query through the tool-invocation loop and returns the
// model's final answer.
//
// The transcript keeps the query's turns only when the query succeeds; a
// failed query (turn budget, model error) leaves the transcript as it was,
// and the session stays usable for the next query.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", errors.ErrSessionClosed
	}

	if s.runner == nil {
		return "", &errors.ConfigurationError{Field: "provider", Reason: "not set"}
	}

	base := append([]llm.Message(nil), s.transcript...)
	base = append(base, llm.UserMessage(question))

	outcome, err := s.runner.Run(ctx, base, s.catalog)
	if err != nil {
		return "", err
	}

	s.transcript = outcome.Transcript

	return outcome.Answer, nil
}

// Tools returns the catalog fetched at connect time. Read-only for the
// session's duration.
func (s *Session) Tools() []*mcp.Tool {
	return s.catalog
}

// Resources lists the server's resources. The second return is false when
// the server does not implement resources/list.
func (s *Session) Resources(ctx context.Context) ([]*mcp.Resource, bool, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, false, errors.ErrSessionClosed
	}

	return s.client.ListResources(ctx)
}

// ServerInfo returns the server identity from the initialize handshake.
func (s *Session) ServerInfo() *mcp.Implementation {
	return s.client.ServerInfo()
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]llm.Message(nil), s.transcript...)
}

// Close shuts the session down: the connection closes and, for stdio
// servers, the subprocess is killed. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	s.log.Debug("Closing session")

	return s.conn.Close()
}
