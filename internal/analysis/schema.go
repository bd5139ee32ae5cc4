package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Urgency levels accepted in an assessment.
var urgencyLevels = []string{"routine", "soon", "urgent"}

// assessmentSchema returns the JSON schema the assistant reply must satisfy.
func assessmentSchema() map[string]any {
	list := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string", "minLength": 1},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":         map[string]any{"type": "string", "minLength": 1},
			"concerns":        list,
			"recommendations": list,
			"urgency":         map[string]any{"type": "string", "enum": urgencyLevels},
		},
		"required": []string{"summary", "concerns", "recommendations", "urgency"},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("assessment.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("assessment.json")
}

// extractJSONObject cuts the outermost {...} out of a reply that may carry prose or code fences.
func extractJSONObject(text string) ([]byte, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(text[start : end+1]), true
}

// decodeAssessment validates raw against the schema and decodes it.
func decodeAssessment(schema *jsonschema.Schema, raw []byte) (Assessment, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Assessment{}, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return Assessment{}, fmt.Errorf("%w: schema: %v", ErrInvalidResponse, err)
	}
	var out Assessment
	if err := json.Unmarshal(raw, &out); err != nil {
		return Assessment{}, fmt.Errorf("%w: unmarshal: %v", ErrInvalidResponse, err)
	}
	return out, nil
}
