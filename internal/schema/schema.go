package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// JSON types understood by the validator.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// Definition is a named schema document as it was shipped with the binary.
type Definition struct {
	// Name is the schema name, taken from the file name without extension.
	Name string `json:"name"`

	// Source is the raw YAML document.
	Source []byte `json:"-"`

	// Fingerprint is SHA-256 hash of Source.
	Fingerprint string `json:"fingerprint"`
}

// ComputeFingerprint calculates SHA-256 hash of the definition.
func ComputeFingerprint(definition []byte) string {
	hash := sha256.Sum256(definition)
	return hex.EncodeToString(hash[:])
}

// Schema is one compiled node of a JSON-schema style document.
//
// Only the subset of the vocabulary used by the collector is supported:
// type, properties, required, additionalProperties, items, minItems, const, enum,
// minimum, maximum, minLength, format, oneOf and name references via $ref.
type Schema struct {
	Title                string                `yaml:"title,omitempty"`
	Description          string                `yaml:"description,omitempty"`
	Type                 string                `yaml:"type,omitempty"`
	Format               string                `yaml:"format,omitempty"`
	Const                interface{}           `yaml:"const,omitempty"`
	Enum                 []interface{}         `yaml:"enum,omitempty"`
	Minimum              *float64              `yaml:"minimum,omitempty"`
	Maximum              *float64              `yaml:"maximum,omitempty"`
	MinLength            *int                  `yaml:"minLength,omitempty"`
	MinItems             *int                  `yaml:"minItems,omitempty"`
	Properties           map[string]*Schema    `yaml:"properties,omitempty"`
	Required             []string              `yaml:"required,omitempty"`
	AdditionalProperties *AdditionalProperties `yaml:"additionalProperties,omitempty"`
	Items                *Schema               `yaml:"items,omitempty"`
	OneOf                []*Schema             `yaml:"oneOf,omitempty"`
	Ref                  string                `yaml:"$ref,omitempty"`

	// name of the top-level document this node belongs to, used in error reports.
	name          string
	formatChecker FormatChecker
}

// Name returns the name of the document the schema was compiled from.
func (s *Schema) Name() string {
	return s.name
}

// AdditionalProperties is either a boolean (false forbids unknown keys)
// or a schema every unknown key must satisfy.
//
//	additionalProperties: false
//	additionalProperties:
//	  type: string
type AdditionalProperties struct {
	Forbidden bool
	Schema    *Schema
}

// UnmarshalYAML accepts both the boolean and the schema form.
func (a *AdditionalProperties) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var allowed bool
		if err := value.Decode(&allowed); err != nil {
			return fmt.Errorf("additionalProperties must be a boolean or a schema: %w", err)
		}
		a.Forbidden = !allowed
		return nil
	}

	var s Schema
	if err := value.Decode(&s); err != nil {
		return err
	}
	a.Schema = &s
	return nil
}

// parseDocument decodes a YAML (or JSON) schema document.
func parseDocument(source []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(source, &s); err != nil {
		return nil, fmt.Errorf("%w: failed to parse document: %v", ErrInvalidDefinition, err)
	}
	return &s, nil
}

// resolver returns the compiled schema registered under a $ref name.
type resolver func(name string) (*Schema, error)

// compile checks a parsed node recursively, binds format checkers and resolves references.
// A node carrying $ref is replaced by the referenced document.
func compile(docName string, s *Schema, path string, formats *FormatRegistry, resolve resolver) (*Schema, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: %s: empty schema", ErrInvalidDefinition, displayPath(path))
	}

	if s.Ref != "" {
		if resolve == nil {
			return nil, fmt.Errorf("%w: %s: $ref %q cannot be resolved", ErrInvalidDefinition, displayPath(path), s.Ref)
		}
		return resolve(s.Ref)
	}

	s.name = docName

	switch s.Type {
	case "", TypeObject, TypeArray, TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeNull:
	default:
		return nil, fmt.Errorf("%w: %s: unsupported type %q", ErrInvalidDefinition, displayPath(path), s.Type)
	}

	if s.Format != "" {
		if s.Type != TypeString {
			return nil, fmt.Errorf("%w: %s: format requires type string", ErrInvalidDefinition, displayPath(path))
		}
		checker, err := formats.GetChecker(s.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, displayPath(path), err)
		}
		s.formatChecker = checker
	}

	if (s.Minimum != nil || s.Maximum != nil) && s.Type != TypeInteger && s.Type != TypeNumber {
		return nil, fmt.Errorf("%w: %s: minimum/maximum require a numeric type", ErrInvalidDefinition, displayPath(path))
	}
	if s.Minimum != nil && s.Maximum != nil && *s.Minimum > *s.Maximum {
		return nil, fmt.Errorf("%w: %s: minimum (%v) cannot exceed maximum (%v)", ErrInvalidDefinition, displayPath(path), *s.Minimum, *s.Maximum)
	}
	if s.MinLength != nil && *s.MinLength < 0 {
		return nil, fmt.Errorf("%w: %s: minLength cannot be negative", ErrInvalidDefinition, displayPath(path))
	}

	for _, req := range s.Required {
		if _, ok := s.Properties[req]; !ok {
			return nil, fmt.Errorf("%w: %s: required field %q is not declared in properties", ErrInvalidDefinition, displayPath(path), req)
		}
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child, err := compile(docName, s.Properties[name], joinPath(path, name), formats, resolve)
		if err != nil {
			return nil, err
		}
		s.Properties[name] = child
	}

	if s.AdditionalProperties != nil && s.AdditionalProperties.Schema != nil {
		child, err := compile(docName, s.AdditionalProperties.Schema, joinPath(path, "*"), formats, resolve)
		if err != nil {
			return nil, err
		}
		s.AdditionalProperties.Schema = child
	}

	if s.Items != nil {
		child, err := compile(docName, s.Items, path+"[]", formats, resolve)
		if err != nil {
			return nil, err
		}
		s.Items = child
	}

	for i, branch := range s.OneOf {
		child, err := compile(docName, branch, fmt.Sprintf("%s<oneOf %d>", path, i), formats, resolve)
		if err != nil {
			return nil, err
		}
		s.OneOf[i] = child
	}

	return s, nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
