package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/mcpagent/internal/errors"
	"github.com/loomworks/mcpagent/internal/rpc"
)

const (
	// protocolVersion is the MCP revision this client speaks.
	protocolVersion = "2025-03-26"

	clientName    = "mcpagent"
	clientVersion = "0.1.0"
)

// Client issues MCP operations over a correlated JSON-RPC connection.
//
// Initialize must complete before any other operation. Clients are not
// shared across logical sessions; the owning session holds the only
// reference for the connection's lifetime.
type Client struct {
	log  *slog.Logger
	conn *rpc.Conn

	mu          sync.Mutex
	initialized bool
	serverInfo  *mcp.Implementation
}

// NewClient creates a client over an already-started connection.
func NewClient(log *slog.Logger, conn *rpc.Conn) *Client {
	return &Client{
		log:  log.With("component", "mcp_client"),
		conn: conn,
	}
}

// initializeResult is the slice of the server's initialize response this
// client consumes.
type initializeResult struct {
	ProtocolVersion string              `json:"protocolVersion"`
	ServerInfo      *mcp.Implementation `json:"serverInfo"`
}

// Initialize performs the MCP handshake: the initialize request followed by
// the initialized notification. It must be the first call on the
// connection; the transport captures the server-assigned session identifier
// from its response.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()

	if c.initialized {
		c.mu.Unlock()

		return errors.ErrAlreadyInitialized
	}

	c.mu.Unlock()

	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}

	raw, err := c.conn.Call(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	var result initializeResult

	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode initialize result: %w", err)
	}

	c.mu.Lock()
	c.initialized = true
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	if result.ServerInfo != nil {
		c.log.Info("Initialized MCP session",
			"server", result.ServerInfo.Name,
			"server_version", result.ServerInfo.Version,
			"protocol_version", result.ProtocolVersion,
		)
	}

	if err := c.conn.Notify(ctx, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	return nil
}

// ServerInfo returns the server identity from the initialize handshake,
// or nil before Initialize.
func (c *Client) ServerInfo() *mcp.Implementation {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.serverInfo
}

func (c *Client) requireInitialized() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return errors.ErrNotInitialized
	}

	return nil
}

// ListTools fetches the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	if err := c.requireInitialized(); err != nil {
		return nil, err
	}

	raw, err := c.conn.Call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	var result struct {
		Tools []*mcp.Tool `json:"tools"`
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tool catalog: %w", err)
	}

	c.log.Debug("Fetched tool catalog", "tools", len(result.Tools))

	return result.Tools, nil
}

// CallTool executes a named tool with the given arguments.
//
// A nil args map is sent as an empty object, which is how recovered
// malformed model arguments reach the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if err := c.requireInitialized(); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}

	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	raw, err := c.conn.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}

	result, err := decodeToolResult(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", name, err)
	}

	return result, nil
}

// ListResources fetches the server's resource listing. Servers are not
// required to implement it: a method-not-found error yields
// (nil, false, nil) so callers can treat the feature as unavailable
// rather than failed.
func (c *Client) ListResources(ctx context.Context) ([]*mcp.Resource, bool, error) {
	if err := c.requireInitialized(); err != nil {
		return nil, false, err
	}

	raw, err := c.conn.Call(ctx, "resources/list", nil)
	if err != nil {
		if errors.IsMethodNotFound(err) {
			c.log.Debug("Server does not implement resources/list")

			return nil, false, nil
		}

		return nil, false, fmt.Errorf("resources/list: %w", err)
	}

	var result struct {
		Resources []*mcp.Resource `json:"resources"`
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("decode resource listing: %w", err)
	}

	return result.Resources, true, nil
}
