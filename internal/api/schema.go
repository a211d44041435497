package api

import (
	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects a strict, inlined JSON schema for T
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// NewJSONSchema wraps the schema of T for a json_schema response_format
func NewJSONSchema[T any](name, description string) *JSONSchema {
	return &JSONSchema{
		Name:        name,
		Description: description,
		Schema:      GenerateSchema[T](),
		Strict:      true,
	}
}
