package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildSchema renders the field specs as a JSON Schema object.
func buildSchema(fields []FieldSpec) map[string]any {
	props := make(map[string]any, len(fields))
	required := []string{}
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func fieldSchema(f FieldSpec) map[string]any {
	var s map[string]any
	switch f.Kind {
	case KindNumber, KindInteger:
		s = map[string]any{"type": string(f.Kind)}
		if f.Range != nil {
			s["minimum"] = f.Range.Min
			s["maximum"] = f.Range.Max
		}
	case KindEnum:
		s = map[string]any{"type": "string", "enum": f.Literals()}
	case KindDate:
		s = map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
	case KindTimestamp:
		s = map[string]any{"type": "string", "format": "date-time"}
	case KindStringList:
		s = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case KindObjectList:
		item := buildSchema(f.Items)
		s = map[string]any{"type": "array", "items": item}
	default:
		s = map[string]any{"type": "string"}
	}
	if f.MaxItems > 0 {
		s["maxItems"] = f.MaxItems
	}
	if f.Description != "" {
		s["description"] = f.Description
	}
	return s
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	url := name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Validate checks a decoded JSON object against the contract's schema.
func (c Contract) Validate(v any) error {
	if c.schema == nil {
		return fmt.Errorf("contract %s has no compiled schema", c.Domain)
	}
	if err := c.schema.Validate(v); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// ValidateJSON decodes data and validates it against the contract's schema.
func (c Contract) ValidateJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return c.Validate(v)
}
