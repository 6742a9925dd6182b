package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupArgs struct {
	UserID string `json:"user_id" jsonschema:"description=The user to look up"`
	Limit  int    `json:"limit,omitempty"`
}

func TestSchemaFor_Struct(t *testing.T) {
	schema := SchemaFor(lookupArgs{})

	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "user_id")
	assert.Contains(t, props, "limit")
	assert.ElementsMatch(t, []any{"user_id"}, schema["required"])
	assert.NotContains(t, schema, "$schema")
}

func TestValidate(t *testing.T) {
	schema := SchemaFor(lookupArgs{})

	require.NoError(t, Validate(schema, map[string]any{"user_id": "u1", "limit": float64(3)}))

	err := Validate(schema, map[string]any{"limit": float64(3)})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	assert.Error(t, Validate(schema, map[string]any{"user_id": 42.0}))
	assert.NoError(t, Validate(nil, "anything"))
}

func TestDecodeJSON(t *testing.T) {
	v, err := DecodeJSON(`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)

	_, err = DecodeJSON(`{"a": `)
	assert.Error(t, err)

	_, err = DecodeJSON(`{} {}`)
	assert.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name | upper}}!", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ADA!", out)

	out, err = RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", out)

	out, err = RenderTemplate(`{{default "guest" .missing}}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "guest", out)
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Billing Agent":   "billing_agent",
		"RefundAgent":     "refund_agent",
		"triage":          "triage",
		"SQL-Expert v2":   "sql_expert_v2",
		"  spaced  out  ": "spaced_out",
	}
	for in, want := range cases {
		if got := SnakeCase(in); got != want {
			t.Fatalf("SnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
