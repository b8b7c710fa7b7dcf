package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrNotFound is returned when no schema definition exists under a name.
	ErrNotFound = errors.New("schema not found")

	// ErrInvalidDefinition is returned when a schema document cannot be compiled.
	ErrInvalidDefinition = errors.New("invalid schema definition")
)

// Constraint names reported in ValidationError.Constraint.
const (
	ConstraintType                 = "type"
	ConstraintRequired             = "required"
	ConstraintConst                = "const"
	ConstraintEnum                 = "enum"
	ConstraintFormat               = "format"
	ConstraintMinimum              = "minimum"
	ConstraintMaximum              = "maximum"
	ConstraintMinLength            = "minLength"
	ConstraintMinItems             = "minItems"
	ConstraintAdditionalProperties = "additionalProperties"
	ConstraintOneOf                = "oneOf"
)

// ValidationError represents a single violated constraint.
type ValidationError struct {
	Schema     string `json:"schema"`
	Field      string `json:"field,omitempty"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s (schema %s)", e.Field, e.Message, e.Schema)
	}
	return fmt.Sprintf("%s (schema %s)", e.Message, e.Schema)
}

// MultiValidationError aggregates multiple validation errors.
type MultiValidationError struct {
	Errors []*ValidationError
}

func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ValidationDetailer surfaces structured validation details for API error responses.
// Implemented by all validation error types so consumers extract details without
// type-asserting against concrete structs.
type ValidationDetailer interface {
	Details() map[string]interface{}
}

// Details returns the structured fields from this single validation error.
func (e *ValidationError) Details() map[string]interface{} {
	d := map[string]interface{}{
		"constraint": e.Constraint,
	}
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

// Details aggregates the failed field names and constraints from all child errors.
func (e *MultiValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	var fields []string
	violations := make([]map[string]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		if ve.Field != "" {
			fields = append(fields, ve.Field)
		}
		violations = append(violations, map[string]string{
			"field":      ve.Field,
			"constraint": ve.Constraint,
			"message":    ve.Message,
		})
	}
	if len(fields) > 0 {
		d["fields"] = fields
	}
	d["violations"] = violations
	return d
}

// Constraints returns the distinct constraint names that were violated, in report order.
func (e *MultiValidationError) Constraints() []string {
	seen := make(map[string]bool, len(e.Errors))
	var out []string
	for _, ve := range e.Errors {
		if seen[ve.Constraint] {
			continue
		}
		seen[ve.Constraint] = true
		out = append(out, ve.Constraint)
	}
	return out
}

// NewRequiredFieldError creates an error for missing required fields.
func NewRequiredFieldError(schema, field string) *ValidationError {
	return &ValidationError{
		Schema:     schema,
		Field:      field,
		Constraint: ConstraintRequired,
		Message:    "required field is missing",
	}
}

// NewTypeMismatchError creates an error for type mismatches.
func NewTypeMismatchError(schema, field, expected, actual string) *ValidationError {
	return &ValidationError{
		Schema:     schema,
		Field:      field,
		Constraint: ConstraintType,
		Message:    fmt.Sprintf("expected %s, got %s", expected, actual),
	}
}

// NewUnknownFieldError creates an error for a property forbidden by additionalProperties.
func NewUnknownFieldError(schema, field string) *ValidationError {
	return &ValidationError{
		Schema:     schema,
		Field:      field,
		Constraint: ConstraintAdditionalProperties,
		Message:    "unknown field not allowed",
	}
}
