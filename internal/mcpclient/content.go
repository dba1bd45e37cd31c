package mcpclient

import (
	"bytes"
	"encoding/json"
)

// ContentBlock is one typed content entry in a tool result.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// ToolResult is a decoded tools/call result. Raw retains the full wire
// payload for callers that need more than the content blocks.
type ToolResult struct {
	Content []ContentBlock
	IsError bool
	Raw     json.RawMessage
}

// decodeToolResult parses a tools/call result payload. Unknown content
// shapes are tolerated: Raw always carries the original payload.
func decodeToolResult(raw json.RawMessage) (*ToolResult, error) {
	var wire struct {
		Content []ContentBlock `json:"content"`
		IsError bool           `json:"isError"`
	}

	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	kept := make(json.RawMessage, len(raw))
	copy(kept, raw)

	return &ToolResult{
		Content: wire.Content,
		IsError: wire.IsError,
		Raw:     kept,
	}, nil
}

// FirstText returns the first text content block, or a compact JSON
// serialization of the whole result when no text block exists.
func (r *ToolResult) FirstText() string {
	for _, block := range r.Content {
		if block.Type == "text" {
			return block.Text
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, r.Raw); err != nil {
		return string(r.Raw)
	}

	return compact.String()
}

// Normalized is the tagged result of probing a tool payload for a list of
// items. Exactly one consumer-facing shape exists: either Items was found
// under one of the known layouts, or the payload is Unrecognized and Raw
// is all there is.
type Normalized struct {
	Items []json.RawMessage
	Raw   json.RawMessage
}

// Recognized reports whether a list of items was located.
func (n Normalized) Recognized() bool {
	return n.Items != nil
}

// listKeys are the layouts external tools have been observed to use for
// item lists, probed in order.
var listKeys = []string{"results", "pages", "data"}

// Normalize locates the list of items inside a tool payload: a top-level
// array, or an array under one of the known wrapper keys. All shape
// sniffing lives here so downstream consumers never re-implement it.
func Normalize(raw json.RawMessage) Normalized {
	trimmed := bytes.TrimSpace(raw)
	norm := Normalized{Raw: raw}

	if len(trimmed) == 0 {
		return norm
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			norm.Items = nonNil(items)
		}

		return norm
	}

	if trimmed[0] != '{' {
		return norm
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return norm
	}

	for _, key := range listKeys {
		candidate, ok := wrapper[key]
		if !ok {
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(candidate, &items); err == nil {
			norm.Items = nonNil(items)

			return norm
		}
	}

	return norm
}

// nonNil keeps an empty-but-found list distinguishable from "no list".
func nonNil(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}

	return items
}
