package llm

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// schemaToMap converts a tool's input schema to the generic JSON object
// both provider dialects embed in their function declarations. A nil
// schema becomes an empty object schema, which providers require over a
// missing one.
func schemaToMap(schema any) map[string]any {
	empty := map[string]any{"type": "object", "properties": map[string]any{}}

	if schema == nil {
		return empty
	}
	if s, ok := schema.(*jsonschema.Schema); ok && s == nil {
		return empty
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return empty
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return empty
	}

	return out
}
