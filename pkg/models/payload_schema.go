package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Per-entity payload schemas, checked at record creation. The workflow engine
// itself only reads the fields the stage definitions name; the schemas keep
// obviously malformed domain payloads out of the store.
var payloadSchemas = map[EntityType]map[string]any{
	EntityTypeTransfer: {
		"type": "object",
		"properties": map[string]any{
			"from":         map[string]any{"type": "string"},
			"to":           map[string]any{"type": "string"},
			"from_dept_id": map[string]any{"type": "string"},
			"to_dept_id":   map[string]any{"type": "string"},
			"assets": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"name", "quantity"},
					"properties": map[string]any{
						"name":     map[string]any{"type": "string", "minLength": 1},
						"unit":     map[string]any{"type": "string"},
						"size":     map[string]any{"type": "string"},
						"quantity": map[string]any{"type": "number", "minimum": 0},
					},
				},
			},
		},
		"required": []any{"from", "to"},
	},
	EntityTypeRequest: {
		"type": "object",
		"properties": map[string]any{
			"asset_data": map[string]any{"type": "object"},
			"reason":     map[string]any{"type": "string"},
			"amount":     map[string]any{"type": "number", "minimum": 0},
		},
	},
	EntityTypeReport: {
		"type": "object",
		"properties": map[string]any{
			"title":      map[string]any{"type": "string"},
			"rows":       map[string]any{"type": "array"},
			"block_name": map[string]any{"type": "string"},
		},
	},
	EntityTypeProposal: {
		"type": "object",
		"properties": map[string]any{
			"content":              map[string]any{"type": "string", "minLength": 1},
			"maintenanceOpinion":   map[string]any{"type": "string"},
			"estimatedCompletion":  map[string]any{"type": "string"},
			"attachments":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"proposalTime":         map[string]any{"type": "string"},
			"maintenanceStartTime": map[string]any{"type": "string"},
		},
		"required": []any{"content"},
	},
}

// ValidatePayload checks a record payload against the schema for its entity
// type. A nil payload is valid for types without required fields.
func ValidatePayload(entityType EntityType, payload map[string]any) error {
	schema, ok := payloadSchemas[entityType]
	if !ok {
		return fmt.Errorf("no payload schema for entity type %q", entityType)
	}

	if payload == nil {
		payload = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("payload schema validation failed: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid payload: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
