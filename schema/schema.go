package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidationError reports a JSON value rejected by a schema, with the
// violating field path and the offending value.
type ValidationError struct {
	Field   string `json:"field"`   // Field path that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Schema is a named shape for structured generation output. Name must be
// unique within one dispatch set; Description guides the model's selection.
// Parameters is a minimal JSON Schema object (type, properties, required,
// enum) in map form. A Schema is immutable once constructed.
type Schema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// New constructs a Schema from an explicit parameter specification.
func New(name, description string, parameters map[string]any) *Schema {
	return &Schema{Name: name, Description: description, Parameters: parameters}
}

// FromStruct derives the parameter specification from a Go struct using
// reflection. Field names follow json tags; `description` tags become field
// descriptions; pointer and omitempty fields are optional.
//
// Example:
//
//	type WeatherArgs struct {
//	  City string `json:"city" description:"City to look up"`
//	}
//	s := schema.FromStruct("getWeather", "Look up current weather", WeatherArgs{})
func FromStruct(name, description string, structType any) *Schema {
	return New(name, description, createParameters(structType))
}

func createParameters(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := map[string]any{
			"type": jsonType(field.Type),
		}

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		if enum := field.Tag.Get("enum"); enum != "" {
			values := strings.Split(enum, ",")
			anyValues := make([]any, len(values))
			for i, v := range values {
				anyValues[i] = strings.TrimSpace(v)
			}
			fieldSchema["enum"] = anyValues
		}

		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(field.Tag.Get("json")) && field.Type.Kind() != reflect.Ptr {
			required = append(required, fieldName)
		}
	}

	parameters := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		parameters["required"] = required
	}

	return parameters
}

// Validate checks value against the schema's parameter specification:
// required fields present, field types matching, enum membership. The first
// violation is returned as a *ValidationError naming the field path.
func (s *Schema) Validate(value map[string]any) error {
	for _, fieldName := range requiredFields(s.Parameters) {
		if _, exists := value[fieldName]; !exists {
			return &ValidationError{
				Field:   fieldName,
				Message: "required field is missing",
			}
		}
	}

	properties, _ := s.Parameters["properties"].(map[string]any)
	for fieldName, fieldValue := range value {
		propSchema, exists := properties[fieldName]
		if !exists {
			continue // Allow extra fields
		}

		propMap, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}

		expectedType, _ := propMap["type"].(string)
		if !isValidType(fieldValue, expectedType) {
			return &ValidationError{
				Field:   fieldName,
				Value:   fieldValue,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, fieldValue),
			}
		}

		if enum, ok := propMap["enum"]; ok {
			if err := validateEnum(fieldName, fieldValue, enum); err != nil {
				return err
			}
		}
	}

	return nil
}

// requiredFields tolerates both []string (constructed in Go) and []any
// (round-tripped through JSON).
func requiredFields(parameters map[string]any) []string {
	switch req := parameters["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, r := range req {
			if name, ok := r.(string); ok {
				fields = append(fields, name)
			}
		}
		return fields
	default:
		return nil
	}
}

func validateEnum(fieldName string, value any, enum any) error {
	values, ok := enum.([]any)
	if !ok {
		return nil
	}
	for _, allowed := range values {
		if value == allowed {
			return nil
		}
	}
	return &ValidationError{
		Field:   fieldName,
		Value:   value,
		Message: fmt.Sprintf("value %v is not one of the allowed enum values", value),
	}
}

// jsonType returns the JSON schema type for a given Go type.
func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true // nil is valid for any type
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON unmarshaling produces float64 for numbers
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true // Unknown types are assumed valid
	}
}
