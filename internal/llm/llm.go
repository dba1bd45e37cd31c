package llm

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in the conversation transcript.
type Message struct {
	Role    string
	Content string

	// ToolCalls is set on assistant turns that request tool invocations.
	ToolCalls []ToolCall

	// ToolCallID and ToolName back-reference the invocation a tool-result
	// turn answers.
	ToolCallID string
	ToolName   string
}

// ToolCall is a tool invocation requested by the model. Arguments is kept
// as the raw JSON string the provider emitted; parsing it, and recovering
// when it does not parse, is the loop's concern.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Reply is the model's answer for one completion call: final text,
// requested tool invocations, or both.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Client is a text-generation endpoint that understands tool catalogs.
type Client interface {
	// Complete sends the transcript plus the tool catalog and returns the
	// model's reply. Implementations convert the catalog to their own
	// function-calling schema.
	Complete(ctx context.Context, messages []Message, tools []*mcp.Tool) (*Reply, error)
}

// SystemMessage builds a system turn.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn from a reply.
func AssistantMessage(reply *Reply) Message {
	return Message{Role: RoleAssistant, Content: reply.Text, ToolCalls: reply.ToolCalls}
}

// ToolResultMessage builds a tool-result turn answering the given call.
func ToolResultMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}
