package types

import (
	"encoding/json"
	"fmt"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
	SchemaTypeNull    SchemaType = "null"
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
)

// JSONSchema represents a JSON Schema definition.
type JSONSchema struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	Type SchemaType `json:"type,omitempty"`

	// Object properties
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`

	// Array items
	Items *JSONSchema `json:"items,omitempty"`

	// Enum
	Enum []any `json:"enum,omitempty"`

	// String constraints
	MinLength *int `json:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty"`

	// Numeric constraints
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// Default value
	Default any `json:"default,omitempty"`
}

// NewObjectSchema creates a new object schema.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{
		Type:       SchemaTypeObject,
		Properties: make(map[string]*JSONSchema),
	}
}

// NewStringSchema creates a new string schema.
func NewStringSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeString}
}

// NewNumberSchema creates a new number schema.
func NewNumberSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeNumber}
}

// NewBooleanSchema creates a new boolean schema.
func NewBooleanSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeBoolean}
}

// NewArraySchema creates a new array schema.
func NewArraySchema(items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: SchemaTypeArray, Items: items}
}

// AddProperty adds a property to an object schema.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired adds required field names.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	s.Required = append(s.Required, names...)
	return s
}

// WithDescription sets the description.
func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

// ToJSON serializes the schema to JSON.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON deserializes a schema from JSON.
func FromJSON(data []byte) (*JSONSchema, error) {
	var schema JSONSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}
	return &schema, nil
}

// Validate checks a decoded JSON value against the schema. It covers the
// subset of JSON Schema used for tool parameters: type tags, required
// properties, enums, string length and numeric range constraints.
func (s *JSONSchema) Validate(value any) error {
	if s == nil {
		return nil
	}
	return s.validate("$", value)
}

func (s *JSONSchema) validate(path string, value any) error {
	if value == nil {
		if s.Type == SchemaTypeNull || s.Type == "" {
			return nil
		}
		return fmt.Errorf("%s: expected %s, got null", path, s.Type)
	}

	if len(s.Enum) > 0 {
		for _, allowed := range s.Enum {
			if fmt.Sprintf("%v", allowed) == fmt.Sprintf("%v", value) {
				return nil
			}
		}
		return fmt.Errorf("%s: value %v not in enum", path, value)
	}

	switch s.Type {
	case SchemaTypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, value)
		}
		for _, req := range s.Required {
			if _, present := obj[req]; !present {
				return fmt.Errorf("%s: missing required property %q", path, req)
			}
		}
		for name, prop := range s.Properties {
			v, present := obj[name]
			if !present {
				continue
			}
			if err := prop.validate(path+"."+name, v); err != nil {
				return err
			}
		}
	case SchemaTypeArray:
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, value)
		}
		if s.Items != nil {
			for i, item := range arr {
				if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
					return err
				}
			}
		}
	case SchemaTypeString:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", path, value)
		}
		if s.MinLength != nil && len(str) < *s.MinLength {
			return fmt.Errorf("%s: string shorter than minLength %d", path, *s.MinLength)
		}
		if s.MaxLength != nil && len(str) > *s.MaxLength {
			return fmt.Errorf("%s: string longer than maxLength %d", path, *s.MaxLength)
		}
	case SchemaTypeNumber, SchemaTypeInteger:
		num, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s: expected %s, got %T", path, s.Type, value)
		}
		if s.Type == SchemaTypeInteger && num != float64(int64(num)) {
			return fmt.Errorf("%s: expected integer, got %v", path, num)
		}
		if s.Minimum != nil && num < *s.Minimum {
			return fmt.Errorf("%s: value %v below minimum %v", path, num, *s.Minimum)
		}
		if s.Maximum != nil && num > *s.Maximum {
			return fmt.Errorf("%s: value %v above maximum %v", path, num, *s.Maximum)
		}
	case SchemaTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %T", path, value)
		}
	}
	return nil
}
