package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Validate checks instance against a compiled schema.
// It returns nil when the instance is valid and a *MultiValidationError listing every
// violated constraint otherwise. Instances are expected in the shape produced by
// encoding/json (maps, slices, strings, bool, nil, float64 or json.Number).
func Validate(s *Schema, instance interface{}) error {
	w := &walker{}
	w.validate(s, "", instance)
	if len(w.errs) > 0 {
		return &MultiValidationError{Errors: w.errs}
	}
	return nil
}

// IsValid is the predicate form of Validate.
func IsValid(s *Schema, instance interface{}) bool {
	return Validate(s, instance) == nil
}

type walker struct {
	errs []*ValidationError
}

func (w *walker) fail(s *Schema, path, constraint, msg string) {
	w.errs = append(w.errs, &ValidationError{
		Schema:     s.name,
		Field:      path,
		Constraint: constraint,
		Message:    msg,
	})
}

func (w *walker) validate(s *Schema, path string, value interface{}) {
	if s.Type != "" && !matchesType(s.Type, value) {
		w.errs = append(w.errs, NewTypeMismatchError(s.name, path, s.Type, jsonTypeName(value)))
		return
	}

	if s.Const != nil && !jsonEqual(s.Const, value) {
		w.fail(s, path, ConstraintConst, fmt.Sprintf("value must equal %v", s.Const))
		return
	}

	if len(s.Enum) > 0 {
		found := false
		for _, allowed := range s.Enum {
			if jsonEqual(allowed, value) {
				found = true
				break
			}
		}
		if !found {
			w.fail(s, path, ConstraintEnum, fmt.Sprintf("value %v not in enum %v", value, s.Enum))
			return
		}
	}

	switch v := value.(type) {
	case map[string]interface{}:
		w.validateObject(s, path, v)
	case []interface{}:
		w.validateArray(s, path, v)
	case string:
		w.validateString(s, path, v)
	default:
		if num, ok := toFloat(value); ok {
			w.validateNumber(s, path, num)
		}
	}

	if len(s.OneOf) > 0 {
		w.validateOneOf(s, path, value)
	}
}

func (w *walker) validateObject(s *Schema, path string, obj map[string]interface{}) {
	for _, name := range s.Required {
		if _, exists := obj[name]; !exists {
			w.errs = append(w.errs, NewRequiredFieldError(s.name, joinPath(path, name)))
		}
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if prop, declared := s.Properties[key]; declared {
			w.validate(prop, joinPath(path, key), obj[key])
			continue
		}
		if s.AdditionalProperties == nil {
			continue
		}
		if s.AdditionalProperties.Forbidden {
			w.errs = append(w.errs, NewUnknownFieldError(s.name, joinPath(path, key)))
			continue
		}
		if s.AdditionalProperties.Schema != nil {
			w.validate(s.AdditionalProperties.Schema, joinPath(path, key), obj[key])
		}
	}
}

func (w *walker) validateArray(s *Schema, path string, items []interface{}) {
	if s.MinItems != nil && len(items) < *s.MinItems {
		w.fail(s, path, ConstraintMinItems, fmt.Sprintf("array has %d items, minimum is %d", len(items), *s.MinItems))
	}
	if s.Items == nil {
		return
	}
	for i, item := range items {
		w.validate(s.Items, fmt.Sprintf("%s[%d]", path, i), item)
	}
}

func (w *walker) validateString(s *Schema, path string, str string) {
	if s.MinLength != nil && len([]rune(str)) < *s.MinLength {
		w.fail(s, path, ConstraintMinLength, fmt.Sprintf("string length %d is less than minimum %d", len([]rune(str)), *s.MinLength))
	}
	if s.formatChecker != nil && !s.formatChecker.IsFormat(str) {
		w.fail(s, path, ConstraintFormat, fmt.Sprintf("value %q is not a valid %s", str, s.Format))
	}
}

func (w *walker) validateNumber(s *Schema, path string, num float64) {
	if s.Minimum != nil && num < *s.Minimum {
		w.fail(s, path, ConstraintMinimum, fmt.Sprintf("value %v is less than minimum %v", num, *s.Minimum))
	}
	if s.Maximum != nil && num > *s.Maximum {
		w.fail(s, path, ConstraintMaximum, fmt.Sprintf("value %v exceeds maximum %v", num, *s.Maximum))
	}
}

// validateOneOf requires exactly one branch to accept the value.
func (w *walker) validateOneOf(s *Schema, path string, value interface{}) {
	matched := 0
	for _, branch := range s.OneOf {
		sub := &walker{}
		sub.validate(branch, path, value)
		if len(sub.errs) == 0 {
			matched++
		}
	}
	switch {
	case matched == 0:
		w.fail(s, path, ConstraintOneOf, "value does not match any alternative")
	case matched > 1:
		w.fail(s, path, ConstraintOneOf, fmt.Sprintf("value matches %d alternatives, expected exactly one", matched))
	}
}

func matchesType(typ string, value interface{}) bool {
	switch typ {
	case TypeObject:
		_, ok := value.(map[string]interface{})
		return ok
	case TypeArray:
		_, ok := value.([]interface{})
		return ok
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeNull:
		return value == nil
	case TypeNumber:
		_, ok := toFloat(value)
		return ok
	case TypeInteger:
		return isInteger(value)
	default:
		return false
	}
}

// toFloat converts the numeric shapes produced by encoding/json and yaml.v3.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// isInteger accepts any number without a fractional part, so 1e3 is an integer.
func isInteger(value interface{}) bool {
	switch v := value.(type) {
	case int, int32, int64, uint64:
		return true
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return true
		}
	}
	f, ok := toFloat(value)
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return false
	}
	return f == math.Trunc(f)
}

// jsonEqual compares a schema literal with an instance value. Numbers compare by value.
func jsonEqual(expected, actual interface{}) bool {
	ef, eNum := toFloat(expected)
	af, aNum := toFloat(actual)
	if eNum || aNum {
		return eNum && aNum && ef == af
	}
	return reflect.DeepEqual(expected, actual)
}

// jsonTypeName returns a human-readable type name for JSON values.
func jsonTypeName(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case bool:
		return "boolean"
	case float64, json.Number:
		if isInteger(v) {
			return "integer"
		}
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
