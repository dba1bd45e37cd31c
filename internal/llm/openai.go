package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/mcpagent/internal/errors"
)

// Chat-completions endpoints for the providers speaking this dialect.
const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	MistralBaseURL    = "https://api.mistral.ai/v1"
)

const maxErrorBodyExcerpt = 512

// OpenAIClient speaks the OpenAI-compatible chat completions dialect.
// OpenRouter and Mistral both serve it; only the base URL differs.
type OpenAIClient struct {
	log     *slog.Logger
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// Compile-time verification that OpenAIClient implements Client.
var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(log *slog.Logger, client *http.Client, baseURL, apiKey, model string) *OpenAIClient {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	return &OpenAIClient{
		log:     log.With("component", "llm", "dialect", "openai"),
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
}

type oaToolCall struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Function oaFunction `json:"function"`
}

type oaFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type oaRequest struct {
	Model    string      `json:"model"`
	Messages []oaMessage `json:"messages"`
	Tools    []oaTool    `json:"tools,omitempty"`
}

type oaTool struct {
	Type     string        `json:"type"`
	Function oaToolFuncDef `json:"function"`
}

type oaToolFuncDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type oaResponse struct {
	Choices []struct {
		Message oaMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, tools []*mcp.Tool) (*Reply, error) {
	payload := oaRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &errors.TransportError{Op: "build completion request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("Requesting completion", "model", c.model, "messages", len(messages), "tools", len(tools))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &errors.TransportError{Op: "completion", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyExcerpt))

		return nil, &errors.TransportError{
			Op:     "completion",
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(excerpt)),
		}
	}

	var decoded oaResponse

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	msg := decoded.Choices[0].Message
	reply := &Reply{Text: msg.Content}

	for _, call := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	c.log.Debug("Completion received", "tool_calls", len(reply.ToolCalls))

	return reply, nil
}

func toOpenAIMessages(messages []Message) []oaMessage {
	out := make([]oaMessage, 0, len(messages))

	for _, msg := range messages {
		converted := oaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		if msg.Role == RoleTool {
			converted.ToolCallID = msg.ToolCallID
			converted.Name = msg.ToolName
		}

		for _, call := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, oaToolCall{
				ID:   call.ID,
				Type: "function",
				Function: oaFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}

		out = append(out, converted)
	}

	return out
}

func toOpenAITools(tools []*mcp.Tool) []oaTool {
	if len(tools) == 0 {
		return nil
	}

	out := make([]oaTool, 0, len(tools))

	for _, tool := range tools {
		out = append(out, oaTool{
			Type: "function",
			Function: oaToolFuncDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaToMap(tool.InputSchema),
			},
		})
	}

	return out
}
