package toolexecutor

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// Schema validates raw tool arguments and describes them for adapters.
type Schema interface {
	// Validate never fails; problems are reported in the result.
	Validate(args map[string]interface{}) ValidationResult

	// JSONSchema returns the schema document shown to models.
	JSONSchema() map[string]interface{}
}

// ValidationResult is the outcome of Schema.Validate.
type ValidationResult struct {
	Valid  bool
	Args   map[string]interface{}
	Errors []FieldError
}

// ToolParameter declares one top-level argument of an object schema.
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
}

var validParameterTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// JSONSchema is a Schema compiled with gojsonschema.
type JSONSchema struct {
	doc      map[string]interface{}
	schema   *gojsonschema.Schema
	defaults map[string]interface{}
}

// NewJSONSchema compiles a raw JSON Schema document.
func NewJSONSchema(doc map[string]interface{}) (*JSONSchema, error) {
	if doc == nil {
		doc = map[string]interface{}{"type": "object"}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &JSONSchema{
		doc:      doc,
		schema:   compiled,
		defaults: collectDefaults(doc),
	}, nil
}

// ObjectSchema builds an object schema from a parameter list. Unknown
// properties are rejected.
func ObjectSchema(params []ToolParameter) (*JSONSchema, error) {
	properties := make(map[string]interface{}, len(params))
	required := []string{}

	for _, param := range params {
		if param.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		if !validParameterTypes[param.Type] {
			return nil, fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
		}
		if _, exists := properties[param.Name]; exists {
			return nil, fmt.Errorf("duplicate parameter %s", param.Name)
		}

		paramSchema := map[string]interface{}{
			"type": param.Type,
		}
		if param.Description != "" {
			paramSchema["description"] = param.Description
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		if len(param.Enum) > 0 {
			enum := make([]interface{}, len(param.Enum))
			for i, v := range param.Enum {
				enum[i] = v
			}
			paramSchema["enum"] = enum
		}

		properties[param.Name] = paramSchema
		if param.Required {
			required = append(required, param.Name)
		}
	}

	doc := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	return NewJSONSchema(doc)
}

// MustObjectSchema is ObjectSchema for static declarations; it panics on error.
func MustObjectSchema(params []ToolParameter) *JSONSchema {
	s, err := ObjectSchema(params)
	if err != nil {
		panic(err)
	}
	return s
}

// JSONSchema implements Schema.
func (s *JSONSchema) JSONSchema() map[string]interface{} {
	return s.doc
}

// Validate implements Schema. The returned Args are a fresh top-level copy of
// args with declared defaults filled in for absent properties.
func (s *JSONSchema) Validate(args map[string]interface{}) ValidationResult {
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return ValidationResult{
			Errors: []FieldError{{Field: rootField, Message: err.Error()}},
		}
	}

	if !result.Valid() {
		fieldErrors := make([]FieldError, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			fieldErrors = append(fieldErrors, toFieldError(desc))
		}
		sort.Slice(fieldErrors, func(i, j int) bool {
			if fieldErrors[i].Field != fieldErrors[j].Field {
				return fieldErrors[i].Field < fieldErrors[j].Field
			}
			return fieldErrors[i].Message < fieldErrors[j].Message
		})
		return ValidationResult{Errors: fieldErrors}
	}

	validated := make(map[string]interface{}, len(args)+len(s.defaults))
	for k, v := range args {
		validated[k] = v
	}
	for k, v := range s.defaults {
		if _, ok := validated[k]; !ok {
			validated[k] = v
		}
	}

	return ValidationResult{Valid: true, Args: validated}
}

const rootField = "(root)"

// toFieldError reports "required" failures against the missing property
// rather than the enclosing object.
func toFieldError(desc gojsonschema.ResultError) FieldError {
	field := desc.Field()
	if desc.Type() == "required" {
		if property, ok := desc.Details()["property"].(string); ok && property != "" {
			if field == rootField || field == "" {
				field = property
			} else {
				field = field + "." + property
			}
		}
	}
	return FieldError{Field: field, Message: desc.Description()}
}

func collectDefaults(doc map[string]interface{}) map[string]interface{} {
	defaults := map[string]interface{}{}
	properties, ok := doc["properties"].(map[string]interface{})
	if !ok {
		return defaults
	}
	for name, raw := range properties {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if def, ok := prop["default"]; ok {
			defaults[name] = def
		}
	}
	return defaults
}

// anySchema accepts every argument object. Used when a tool declares no schema.
type anySchema struct{}

func (anySchema) Validate(args map[string]interface{}) ValidationResult {
	validated := make(map[string]interface{}, len(args))
	for k, v := range args {
		validated[k] = v
	}
	return ValidationResult{Valid: true, Args: validated}
}

func (anySchema) JSONSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
