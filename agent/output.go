package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/model"
)

// OutputType describes a structured final answer: the JSON schema offered
// to the model and the decoder applied once the answer validates.
type OutputType struct {
	name   string
	schema map[string]any
	decode func(v any) (any, error)
}

// OutputTypeFor derives the output type from the Go type T. Final outputs
// are decoded into a value of type T.
func OutputTypeFor[T any]() *OutputType {
	var zero T

	name := reflect.TypeOf(zero).Name()
	if name == "" {
		name = "final_output"
	}

	return &OutputType{
		name:   name,
		schema: util.SchemaFor(&zero),
		decode: func(v any) (any, error) {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			var out T
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// OutputSchema creates an output type from a raw JSON schema. Final outputs
// are returned as the decoded JSON value (map, slice or scalar).
func OutputSchema(name string, schema map[string]any) *OutputType {
	return &OutputType{
		name:   name,
		schema: schema,
		decode: func(v any) (any, error) { return v, nil },
	}
}

// Name returns the schema name.
func (o *OutputType) Name() string { return o.name }

// Schema returns the JSON schema.
func (o *OutputType) Schema() map[string]any { return o.schema }

// ModelSchema returns the schema in the form passed to models.
func (o *OutputType) ModelSchema() *model.OutputSchema {
	return &model.OutputSchema{Name: o.name, Schema: o.schema}
}

// Parse decodes raw model text, validates it against the schema and converts
// it to the output type.
func (o *OutputType) Parse(raw string) (any, error) {
	v, err := util.DecodeJSON(stripFence(raw))
	if err != nil {
		return nil, err
	}

	if err := util.Validate(o.schema, v); err != nil {
		return nil, err
	}

	out, err := o.decode(v)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", o.name, err)
	}

	return out, nil
}

// stripFence removes a surrounding markdown code fence, which some models
// emit around JSON answers.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
