package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherSchema() *JSONSchema {
	return NewObjectSchema().
		AddProperty("city", NewStringSchema().WithDescription("city name")).
		AddProperty("days", &JSONSchema{Type: SchemaTypeInteger}).
		AddProperty("units", &JSONSchema{Type: SchemaTypeString, Enum: []any{"metric", "imperial"}}).
		AddRequired("city")
}

func TestJSONSchemaValidate_Object(t *testing.T) {
	schema := weatherSchema()

	tests := []struct {
		name    string
		value   any
		wantErr string
	}{
		{
			name:  "valid full",
			value: map[string]any{"city": "Oslo", "days": float64(3), "units": "metric"},
		},
		{
			name:  "valid minimal",
			value: map[string]any{"city": "Oslo"},
		},
		{
			name:    "missing required",
			value:   map[string]any{"days": float64(3)},
			wantErr: "city",
		},
		{
			name:    "wrong type",
			value:   map[string]any{"city": 42},
			wantErr: "expected string",
		},
		{
			name:    "enum violation",
			value:   map[string]any{"city": "Oslo", "units": "kelvin"},
			wantErr: "enum",
		},
		{
			name:    "not an object",
			value:   "Oslo",
			wantErr: "expected object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJSONSchemaValidate_StringConstraints(t *testing.T) {
	minLen := 2
	maxLen := 5
	schema := &JSONSchema{Type: SchemaTypeString, MinLength: &minLen, MaxLength: &maxLen}

	assert.NoError(t, schema.Validate("abc"))
	assert.Error(t, schema.Validate("a"))
	assert.Error(t, schema.Validate("abcdef"))
}

func TestJSONSchemaValidate_NumericRange(t *testing.T) {
	min := 1.0
	max := 10.0
	schema := &JSONSchema{Type: SchemaTypeNumber, Minimum: &min, Maximum: &max}

	assert.NoError(t, schema.Validate(5.5))
	assert.NoError(t, schema.Validate(float64(1)))
	assert.Error(t, schema.Validate(0.5))
	assert.Error(t, schema.Validate(float64(11)))
}

func TestJSONSchemaValidate_IntegerRejectsFraction(t *testing.T) {
	schema := &JSONSchema{Type: SchemaTypeInteger}

	assert.NoError(t, schema.Validate(float64(3)))
	assert.Error(t, schema.Validate(3.5))
}

func TestJSONSchemaValidate_Array(t *testing.T) {
	schema := NewArraySchema(NewStringSchema())

	assert.NoError(t, schema.Validate([]any{"a", "b"}))
	err := schema.Validate([]any{"a", 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected string")
}

func TestJSONSchemaValidate_NilSchemaAcceptsAnything(t *testing.T) {
	var schema *JSONSchema
	assert.NoError(t, schema.Validate(map[string]any{"anything": true}))
}

func TestJSONSchemaRoundTrip(t *testing.T) {
	data, err := weatherSchema().ToJSON()
	require.NoError(t, err)

	parsed, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, SchemaTypeObject, parsed.Type)
	assert.Contains(t, parsed.Properties, "city")
	assert.Equal(t, []string{"city"}, parsed.Required)
}
