package mcpagent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedMCPServer is a streamable-HTTP MCP endpoint with a search tool.
type scriptedMCPServer struct {
	t *testing.T

	// toolCalls records the arguments of every tools/call.
	toolCalls []map[string]any
}

func (s *scriptedMCPServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			ID     *int64          `json:"id"`
		}
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))

		if req.ID == nil {
			w.WriteHeader(http.StatusAccepted)

			return
		}

		reply := func(result any) {
			w.Header().Set("Content-Type", "application/json")
			require.NoError(s.t, json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      *req.ID,
				"result":  result,
			}))
		}

		switch req.Method {
		case "initialize":
			w.Header().Set("Mcp-Session-Id", "sess-42")
			reply(map[string]any{
				"protocolVersion": "2025-03-26",
				"serverInfo":      map[string]any{"name": "scripted", "version": "1.0.0"},
			})
		case "tools/list":
			reply(map[string]any{
				"tools": []map[string]any{{
					"name":        "search",
					"description": "Search the workspace",
					"inputSchema": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"query": map[string]any{"type": "string"},
						},
					},
				}},
			})
		case "tools/call":
			var params struct {
				Arguments map[string]any `json:"arguments"`
			}
			require.NoError(s.t, json.Unmarshal(req.Params, &params))
			s.toolCalls = append(s.toolCalls, params.Arguments)

			reply(map[string]any{
				"content": []map[string]any{{"type": "text", "text": "3 pages match"}},
			})
		case "resources/list":
			w.Header().Set("Content-Type", "application/json")
			require.NoError(s.t, json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      *req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found"},
			}))
		default:
			s.t.Fatalf("unexpected method %q", req.Method)
		}
	}
}

// scriptedProvider answers the chat completions dialect: first a search
// invocation, then a plain answer.
type scriptedProvider struct {
	t     *testing.T
	calls int
}

func (p *scriptedProvider) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(p.t, "/chat/completions", r.URL.Path)

		p.calls++

		message := map[string]any{"role": "assistant", "content": "The roadmap is on 3 pages."}
		if p.calls == 1 {
			message = map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []map[string]any{{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      "search",
						"arguments": `{"query":"roadmap"}`,
					},
				}},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(p.t, json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": message}},
		}))
	}
}

func startSession(t *testing.T, provider *scriptedProvider) (*Session, *scriptedMCPServer) {
	t.Helper()

	mcpServer := &scriptedMCPServer{t: t}
	server := httptest.NewServer(mcpServer.handler())
	t.Cleanup(server.Close)

	opts := &Options{
		Server:       HTTPServerConfig{URL: server.URL, Token: "secret", WaitReady: true},
		SystemPrompt: "You answer from the workspace only.",
	}

	if provider != nil {
		llmServer := httptest.NewServer(provider.handler())
		t.Cleanup(llmServer.Close)

		opts.Provider = ProviderConfig{
			Name:    "openrouter",
			APIKey:  "test-key",
			Model:   "test/model",
			BaseURL: llmServer.URL,
		}
	}

	session, err := Connect(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session, mcpServer
}

func TestConnect_HandshakeAndCatalog(t *testing.T) {
	session, _ := startSession(t, nil)

	info := session.ServerInfo()
	require.NotNil(t, info)
	assert.Equal(t, "scripted", info.Name)

	tools := session.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
}

func TestConnect_RequiresServer(t *testing.T) {
	_, err := Connect(context.Background(), &Options{})

	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "server", configErr.Field)
}

func TestSession_AskRunsToolLoop(t *testing.T) {
	provider := &scriptedProvider{t: t}
	session, mcpServer := startSession(t, provider)

	answer, err := session.Ask(context.Background(), "Which pages mention the roadmap?")
	require.NoError(t, err)
	assert.Equal(t, "The roadmap is on 3 pages.", answer)

	require.Len(t, mcpServer.toolCalls, 1)
	assert.Equal(t, map[string]any{"query": "roadmap"}, mcpServer.toolCalls[0])

	// system prompt, user, assistant invocation, tool result, final answer
	transcript := session.Transcript()
	require.Len(t, transcript, 5)
	assert.Equal(t, RoleSystem, transcript[0].Role)
	assert.Equal(t, RoleUser, transcript[1].Role)
	assert.Equal(t, RoleAssistant, transcript[2].Role)
	assert.Equal(t, RoleTool, transcript[3].Role)
	assert.Equal(t, "3 pages match", transcript[3].Content)
	assert.Equal(t, RoleAssistant, transcript[4].Role)
}

func TestSession_AskWithoutProvider(t *testing.T) {
	session, _ := startSession(t, nil)

	_, err := session.Ask(context.Background(), "anything")

	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "provider", configErr.Field)
}

func TestSession_FailedQueryLeavesTranscript(t *testing.T) {
	mcpSrv := &scriptedMCPServer{t: t}
	server := httptest.NewServer(mcpSrv.handler())
	t.Cleanup(server.Close)

	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(llmServer.Close)

	session, err := Connect(context.Background(), &Options{
		Server:       HTTPServerConfig{URL: server.URL},
		Provider:     ProviderConfig{Name: "openrouter", APIKey: "k", Model: "m", BaseURL: llmServer.URL},
		SystemPrompt: "prompt",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	_, err = session.Ask(context.Background(), "question")
	require.Error(t, err)

	transcript := session.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, RoleSystem, transcript[0].Role)
}

func TestSession_ResourcesUnsupported(t *testing.T) {
	session, _ := startSession(t, nil)

	resources, ok, err := session.Resources(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, resources)
}

func TestSession_Close(t *testing.T) {
	session, _ := startSession(t, nil)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	_, err := session.Ask(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, _, err = session.Resources(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}
