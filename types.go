package mcpagent

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/mcpagent/internal/llm"
	"github.com/loomworks/mcpagent/internal/mcpclient"
)

// Re-export MCP SDK wire types for the public API.
type (
	// Tool is an MCP tool descriptor: name, description, input schema.
	Tool = mcp.Tool

	// Resource is an MCP resource descriptor.
	Resource = mcp.Resource

	// Implementation identifies an MCP server or client.
	Implementation = mcp.Implementation

	// Schema is a JSON Schema object describing tool input.
	Schema = jsonschema.Schema
)

// Re-export transcript and tool-result types.
type (
	// Message is one turn in a session's transcript.
	Message = llm.Message

	// ToolCall is a tool invocation requested by the model.
	ToolCall = llm.ToolCall

	// ToolResult is a decoded tools/call result.
	ToolResult = mcpclient.ToolResult

	// ContentBlock is one typed content entry in a tool result.
	ContentBlock = mcpclient.ContentBlock

	// Normalized is the tagged outcome of probing a tool payload for a
	// list of items.
	Normalized = mcpclient.Normalized
)

// Transcript roles.
const (
	RoleSystem    = llm.RoleSystem
	RoleUser      = llm.RoleUser
	RoleAssistant = llm.RoleAssistant
	RoleTool      = llm.RoleTool
)

// Normalize locates the list of items inside a tool payload, if any.
// All result-shape sniffing lives behind this one function.
func Normalize(raw []byte) Normalized {
	return mcpclient.Normalize(raw)
}
