// internal/server/schema.go
package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// generateRequestSchema constrains POST /api/generate bodies.
var generateRequestSchema = map[string]any{
	"type":     "object",
	"required": []string{"prompt"},
	"properties": map[string]any{
		"prompt":             map[string]any{"type": "string", "minLength": 1},
		"frames":             map[string]any{"type": "integer", "minimum": 1, "maximum": 12},
		"quick":              map[string]any{"type": "boolean"},
		"customInstructions": map[string]any{"type": "string"},
		"concepts": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"revision": map[string]any{
			"type":     "object",
			"required": []string{"instruction", "baseHtml"},
			"properties": map[string]any{
				"instruction": map[string]any{"type": "string", "minLength": 1},
				"baseHtml":    map[string]any{"type": "string", "minLength": 1},
			},
		},
	},
	"additionalProperties": false,
}

var generateSchemaLoader = gojsonschema.NewGoLoader(generateRequestSchema)

// validateGenerateRequest checks body against generateRequestSchema.
func validateGenerateRequest(body []byte) error {
	result, err := gojsonschema.Validate(generateSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("JSON validation failed: %s", strings.Join(errs, ", "))
}
