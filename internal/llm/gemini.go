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
	"github.com/oklog/ulid/v2"

	"github.com/loomworks/mcpagent/internal/errors"
)

// GeminiBaseURL is the generateContent API root.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient speaks the Gemini generateContent dialect.
//
// Gemini does not assign ids to the function calls it emits, so this client
// mints a ULID per call (the transcript's back-references require one).
type GeminiClient struct {
	log     *slog.Logger
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// Compile-time verification that GeminiClient implements Client.
var _ Client = (*GeminiClient)(nil)

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(log *slog.Logger, client *http.Client, baseURL, apiKey, model string) *GeminiClient {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	return &GeminiClient{
		log:     log.With("component", "llm", "dialect", "gemini"),
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResp `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTools   `json:"tools,omitempty"`
}

type geminiTools struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Complete implements Client.
func (c *GeminiClient) Complete(ctx context.Context, messages []Message, tools []*mcp.Tool) (*Reply, error) {
	payload := c.buildRequest(messages, tools)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &errors.TransportError{Op: "build completion request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

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

	var decoded geminiResponse

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	if len(decoded.Candidates) == 0 {
		return nil, fmt.Errorf("completion response has no candidates")
	}

	reply := &Reply{}

	for _, part := range decoded.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				args = []byte("{}")
			}

			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:        ulid.Make().String(),
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})

		case part.Text != "":
			if reply.Text != "" {
				reply.Text += "\n"
			}

			reply.Text += part.Text
		}
	}

	c.log.Debug("Completion received", "tool_calls", len(reply.ToolCalls))

	return reply, nil
}

func (c *GeminiClient) buildRequest(messages []Message, tools []*mcp.Tool) *geminiRequest {
	payload := &geminiRequest{}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			payload.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: msg.Content}},
			}

		case RoleUser:
			payload.Contents = append(payload.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})

		case RoleAssistant:
			content := geminiContent{Role: "model"}

			if msg.Content != "" {
				content.Parts = append(content.Parts, geminiPart{Text: msg.Content})
			}

			for _, call := range msg.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
					args = map[string]any{}
				}

				content.Parts = append(content.Parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: call.Name, Args: args},
				})
			}

			payload.Contents = append(payload.Contents, content)

		case RoleTool:
			payload.Contents = append(payload.Contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResp{
						Name:     msg.ToolName,
						Response: map[string]any{"content": msg.Content},
					},
				}},
			})
		}
	}

	if len(tools) > 0 {
		decls := make([]geminiFuncDecl, 0, len(tools))

		for _, tool := range tools {
			decls = append(decls, geminiFuncDecl{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaToMap(tool.InputSchema),
			})
		}

		payload.Tools = []geminiTools{{FunctionDeclarations: decls}}
	}

	return payload
}
