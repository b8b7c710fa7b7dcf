package v1

import (
	"encoding/json"
	"time"
)

// EventType is the value of the "type" discriminator on the wire.
type EventType string

const (
	TypeIndexerNotified  EventType = "IndexerNotified"
	TypeIndexerCompleted EventType = "IndexerCompleted"
)

// TimeLayout is the canonical rendering of event timestamps: UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Event is a lifecycle event emitted by the indexing pipeline.
// The set of implementations is closed: IndexerNotified and IndexerCompleted.
type Event interface {
	// EventType returns the discriminator of the variant.
	EventType() EventType

	// Accept dispatches the event to the matching Visitor method.
	Accept(v Visitor) error

	isEvent()
}

// Visitor handles every event variant. Adding a variant adds a method here,
// so every consumer stops compiling until it handles the new case.
type Visitor interface {
	VisitNotified(e IndexerNotified) error
	VisitCompleted(e IndexerCompleted) error
}

// IndexerNotified means the indexer was told about a new item and is about to retrieve it.
// An IndexerCompleted event for the same URI is expected once indexing is done.
type IndexerNotified struct {
	// URI of the item to be indexed.
	URI string

	// ByteLength is the size of the item in bytes.
	ByteLength int64

	// StartTime is when the indexer was notified.
	StartTime time.Time
}

// NewIndexerNotified builds a notified event with its timestamp normalized.
func NewIndexerNotified(uri string, byteLength int64, startTime time.Time) IndexerNotified {
	return IndexerNotified{
		URI:        uri,
		ByteLength: byteLength,
		StartTime:  normalizeTime(startTime),
	}
}

func (IndexerNotified) EventType() EventType { return TypeIndexerNotified }

func (e IndexerNotified) Accept(v Visitor) error { return v.VisitNotified(e) }

func (IndexerNotified) isEvent() {}

// MarshalJSON renders the event in its wire form.
func (e IndexerNotified) MarshalJSON() ([]byte, error) {
	return json.Marshal(notifiedWire{
		Type:       TypeIndexerNotified,
		URI:        e.URI,
		ByteLength: e.ByteLength,
		StartTime:  FormatTime(e.StartTime),
	})
}

// Indexing describes a finished indexing run.
type Indexing struct {
	StartTime time.Time
	EndTime   time.Time
}

// IndexerCompleted means the indexer successfully finished indexing an item.
type IndexerCompleted struct {
	URI        string
	ByteLength int64
	Indexing   Indexing
}

// NewIndexerCompleted builds a completed event with its timestamps normalized.
func NewIndexerCompleted(uri string, byteLength int64, startTime, endTime time.Time) IndexerCompleted {
	return IndexerCompleted{
		URI:        uri,
		ByteLength: byteLength,
		Indexing: Indexing{
			StartTime: normalizeTime(startTime),
			EndTime:   normalizeTime(endTime),
		},
	}
}

func (IndexerCompleted) EventType() EventType { return TypeIndexerCompleted }

func (e IndexerCompleted) Accept(v Visitor) error { return v.VisitCompleted(e) }

func (IndexerCompleted) isEvent() {}

// Duration is the time indexing took. It is negative when the producer's clocks disagree.
func (e IndexerCompleted) Duration() time.Duration {
	return e.Indexing.EndTime.Sub(e.Indexing.StartTime)
}

// MarshalJSON renders the event in its wire form.
func (e IndexerCompleted) MarshalJSON() ([]byte, error) {
	return json.Marshal(completedWire{
		Type:       TypeIndexerCompleted,
		URI:        e.URI,
		ByteLength: e.ByteLength,
		Indexing: indexingWire{
			StartTime: FormatTime(e.Indexing.StartTime),
			EndTime:   FormatTime(e.Indexing.EndTime),
		},
	})
}

// FormatTime renders t in the canonical TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

type notifiedWire struct {
	Type       EventType `json:"type"`
	URI        string    `json:"uri"`
	ByteLength int64     `json:"byteLength"`
	StartTime  string    `json:"startTime"`
}

type indexingWire struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type completedWire struct {
	Type       EventType    `json:"type"`
	URI        string       `json:"uri"`
	ByteLength int64        `json:"byteLength"`
	Indexing   indexingWire `json:"indexing"`
}
