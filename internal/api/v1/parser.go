package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/aevon-lab/indexer-metrics-collector/internal/schema"
)

var (
	// ErrMalformedInput is returned when the body is not a JSON object.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnknownEventType is returned when the type discriminator is absent or unrecognized.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrSchemaViolation matches every *SchemaViolationError via errors.Is.
	ErrSchemaViolation = errors.New("schema violation")
)

// SchemaViolationError lists the constraints an event body violated.
type SchemaViolationError struct {
	EventType  EventType
	Violations *schema.MultiValidationError
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaViolation, e.Violations.Error())
}

func (e *SchemaViolationError) Is(target error) bool {
	return target == ErrSchemaViolation
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Violations
}

// Details implements schema.ValidationDetailer.
func (e *SchemaViolationError) Details() map[string]interface{} {
	d := e.Violations.Details()
	d["schema"] = string(e.EventType)
	return d
}

// Parser turns raw request bodies into events.
type Parser struct {
	registry *schema.Registry
}

// NewParser creates a parser validating against the schemas in reg.
func NewParser(reg *schema.Registry) *Parser {
	return &Parser{registry: reg}
}

// Parse decodes, discriminates and validates raw. Once the body has passed
// its variant schema, building the event cannot fail.
func (p *Parser) Parse(raw []byte) (Event, error) {
	doc, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	tag, _ := doc["type"].(string)
	eventType := EventType(tag)
	switch eventType {
	case TypeIndexerNotified, TypeIndexerCompleted:
	default:
		if _, present := doc["type"]; !present {
			return nil, fmt.Errorf("%w: missing type", ErrUnknownEventType)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnknownEventType, doc["type"])
	}

	s, err := p.registry.Get(string(eventType))
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", eventType, err)
	}
	if err := schema.Validate(s, doc); err != nil {
		var multi *schema.MultiValidationError
		if !errors.As(err, &multi) {
			return nil, err
		}
		return nil, &SchemaViolationError{EventType: eventType, Violations: multi}
	}

	if eventType == TypeIndexerNotified {
		return NewIndexerNotified(
			doc["uri"].(string),
			toInt64(doc["byteLength"]),
			mustParseTime(doc["startTime"]),
		), nil
	}

	indexing := doc["indexing"].(map[string]interface{})
	return NewIndexerCompleted(
		doc["uri"].(string),
		toInt64(doc["byteLength"]),
		mustParseTime(indexing["startTime"]),
		mustParseTime(indexing["endTime"]),
	), nil
}

func decodeObject(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after JSON value", ErrMalformedInput)
	}

	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedInput)
	}
	return doc, nil
}

// toInt64 converts a schema-checked integer. The schema bounds it to the exact float range.
func toInt64(v interface{}) int64 {
	n := v.(json.Number)
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return int64(math.Round(f))
}

// mustParseTime parses a schema-checked date-time string.
func mustParseTime(v interface{}) time.Time {
	t, err := time.Parse(time.RFC3339, v.(string))
	if err != nil {
		panic(fmt.Sprintf("date-time passed validation but failed to parse: %v", err))
	}
	return t
}
