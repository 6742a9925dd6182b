package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	invjs "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError describes a value that does not satisfy a JSON schema.
type ValidationError struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ValidationError) Error() string { return "validation error: " + e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// SchemaFor derives a JSON schema object from the type of v. Nested types are
// inlined so the result is self-contained, and additional properties are
// disallowed, which keeps the schema usable for strict provider modes.
func SchemaFor(v any) map[string]any {
	if v == nil {
		return EmptyObjectSchema()
	}

	r := &invjs.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return EmptyObjectSchema()
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return EmptyObjectSchema()
	}

	delete(schema, "$schema")
	delete(schema, "$id")

	return schema
}

// EmptyObjectSchema returns the schema of an object without parameters.
func EmptyObjectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

var compiled sync.Map // canonical schema JSON -> *jsonschema.Schema

func compile(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	key := string(raw)
	if s, ok := compiled.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	s, err := jsonschema.CompileString("schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	actual, _ := compiled.LoadOrStore(key, s)

	return actual.(*jsonschema.Schema), nil
}

// Validate checks a decoded JSON value against schema. A nil or empty schema
// accepts everything.
func Validate(schema map[string]any, value any) error {
	if len(schema) == 0 {
		return nil
	}

	s, err := compile(schema)
	if err != nil {
		return err
	}

	if err := s.Validate(value); err != nil {
		return &ValidationError{Message: err.Error(), Err: err}
	}

	return nil
}

// DecodeJSON parses raw JSON text into generic values, keeping numbers as
// float64 the way encoding/json does.
func DecodeJSON(raw string) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(&v); err != nil {
		return nil, &ValidationError{Message: "invalid JSON: " + err.Error(), Err: err}
	}
	if dec.More() {
		return nil, &ValidationError{Message: "invalid JSON: trailing data"}
	}
	return v, nil
}
