package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Response-shape schemas (JSON-Schema draft 2020-12 subset, as generic maps).
// Every JSON body coming back from the document service is validated against
// one of these before unmarshalling, so an unexpected shape becomes a
// transport error instead of a silent zero value. The OCR status schema sits
// on the poll hot path, so each schema is compiled once and reused.

var documentListSchema = sync.OnceValue(func() *jsonschema.Schema {
	return compileSchema(map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":            map[string]any{"type": "integer"},
				"filename":      map[string]any{"type": "string"},
				"originalName":  map[string]any{"type": "string"},
				"mimeType":      map[string]any{"type": "string"},
				"size":          map[string]any{"type": "integer"},
				"createdAt":     map[string]any{"type": "string"},
				"extractedText": map[string]any{"type": []string{"string", "null"}},
				"path":          map[string]any{"type": "string"},
			},
			"required": []string{"id", "filename"},
		},
	})
})

var startOCRSchema = sync.OnceValue(func() *jsonschema.Schema {
	return compileSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"accepted":       map[string]any{"type": "boolean"},
			"documentId":     map[string]any{"type": "integer"},
			"statusEndpoint": map[string]any{"type": "string"},
		},
		"required": []string{"accepted", "documentId"},
	})
})

var ocrStatusSchema = sync.OnceValue(func() *jsonschema.Schema {
	return compileSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":        map[string]any{"type": "string", "minLength": 1},
			"progress":      map[string]any{"type": "number", "minimum": 0},
			"message":       map[string]any{"type": "string"},
			"error":         map[string]any{"type": "string"},
			"startedAt":     map[string]any{"type": "string"},
			"updatedAt":     map[string]any{"type": "string"},
			"finishedAt":    map[string]any{"type": "string"},
			"extractedText": map[string]any{"type": []string{"string", "null"}},
		},
		"required": []string{"status"},
	})
})

var sessionSchema = sync.OnceValue(func() *jsonschema.Schema {
	return compileSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":        map[string]any{"type": "integer"},
			"questions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"answers":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"id", "questions", "answers"},
	})
})

var initializeSchema = sync.OnceValue(func() *jsonschema.Schema {
	return compileSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"llmSession": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "integer"},
				},
				"required": []string{"id"},
			},
		},
		"required": []string{"llmSession"},
	})
})

var askSchema = sync.OnceValue(func() *jsonschema.Schema {
	return compileSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"llmSession": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"answers": map[string]any{
						"type":     "array",
						"items":    map[string]any{"type": "string"},
						"minItems": 1,
					},
				},
				"required": []string{"answers"},
			},
		},
		"required": []string{"llmSession"},
	})
})

// compileSchema compiles a static schema map. The maps above are fixed at
// build time, so a failure here is a programming error.
func compileSchema(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// validateAgainstSchema validates data against a compiled schema.
func validateAgainstSchema(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
