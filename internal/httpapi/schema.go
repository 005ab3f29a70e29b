package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Request bodies are validated against these schemas before any state is
// touched, so handlers only ever see well-shaped input. Semantic checks
// (existence, uniqueness) stay inside the store's transactions.

const idField = `{"type": "integer", "minimum": 1}`
const nullableIDField = `{"type": ["integer", "null"], "minimum": 1}`

var schemaSources = map[string]string{
	"create-item": `{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"},
			"on_list": {"type": "boolean"},
			"store": ` + nullableIDField + `
		},
		"additionalProperties": false
	}`,
	"create-section": `{
		"type": "object",
		"required": ["store", "name"],
		"properties": {
			"store": ` + idField + `,
			"name": {"type": "string"}
		},
		"additionalProperties": false
	}`,
	"create-store": `{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"},
			"item": ` + nullableIDField + `
		},
		"additionalProperties": false
	}`,
	"delete-item":    deleteSchema,
	"delete-section": deleteSchema,
	"delete-store":   deleteSchema,
	"item-in-store": `{
		"type": "object",
		"required": ["item", "store"],
		"properties": {
			"item": ` + idField + `,
			"store": ` + idField + `,
			"section": ` + nullableIDField + `
		},
		"additionalProperties": false
	}`,
	"item-not-in-store": `{
		"type": "object",
		"required": ["item", "store"],
		"properties": {
			"item": ` + idField + `,
			"store": ` + idField + `
		},
		"additionalProperties": false
	}`,
	"item-off":       onOffSchema,
	"item-on":        onOffSchema,
	"rename-item":    renameSchema,
	"rename-section": renameSchema,
	"rename-store":   renameSchema,
	"reorder-sections": `{
		"type": "object",
		"required": ["store", "sections"],
		"properties": {
			"store": ` + idField + `,
			"sections": {"type": "array", "items": ` + idField + `}
		},
		"additionalProperties": false
	}`,
}

const deleteSchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {"id": ` + idField + `},
	"additionalProperties": false
}`

const onOffSchema = `{
	"type": "object",
	"required": ["item"],
	"properties": {"item": ` + idField + `},
	"additionalProperties": false
}`

const renameSchema = `{
	"type": "object",
	"required": ["id", "name"],
	"properties": {
		"id": ` + idField + `,
		"name": {"type": "string"}
	},
	"additionalProperties": false
}`

type schemaSet struct {
	compiled map[string]*jsonschema.Schema
}

func compileSchemas() (*schemaSet, error) {
	compiler := jsonschema.NewCompiler()
	for name, source := range schemaSources {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name+".json", doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	compiled := make(map[string]*jsonschema.Schema, len(schemaSources))
	for name := range schemaSources {
		schema, err := compiler.Compile(name + ".json")
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		compiled[name] = schema
	}
	return &schemaSet{compiled: compiled}, nil
}

func (s *schemaSet) validate(name string, body []byte) error {
	schema, ok := s.compiled[name]
	if !ok {
		return fmt.Errorf("no schema for %s", name)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
