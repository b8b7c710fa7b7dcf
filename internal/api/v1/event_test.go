package v1

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEvent_Constructors_NormalizeTimes(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	start := time.Date(2023, 1, 1, 2, 0, 0, 123456789, loc)

	e := NewIndexerNotified("https://x/a", 10, start)

	if e.StartTime.Location() != time.UTC {
		t.Errorf("StartTime location = %v, want UTC", e.StartTime.Location())
	}
	if got := FormatTime(e.StartTime); got != "2023-01-01T00:00:00.123Z" {
		t.Errorf("FormatTime(StartTime) = %q, want 2023-01-01T00:00:00.123Z", got)
	}
	if e.StartTime.Nanosecond() != 123000000 {
		t.Errorf("StartTime should be truncated to milliseconds, got %d ns", e.StartTime.Nanosecond())
	}
}

func TestEvent_MarshalJSON(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "notified",
			event: NewIndexerNotified("https://x/a", 1000000, start),
			want:  `{"type":"IndexerNotified","uri":"https://x/a","byteLength":1000000,"startTime":"2023-01-01T00:00:00.000Z"}`,
		},
		{
			name:  "completed",
			event: NewIndexerCompleted("https://x/a", 5, start, start.Add(time.Minute)),
			want:  `{"type":"IndexerCompleted","uri":"https://x/a","byteLength":5,"indexing":{"startTime":"2023-01-01T00:00:00.000Z","endTime":"2023-01-01T00:01:00.000Z"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Marshal() unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

type recordingVisitor struct {
	notified  []IndexerNotified
	completed []IndexerCompleted
}

func (v *recordingVisitor) VisitNotified(e IndexerNotified) error {
	v.notified = append(v.notified, e)
	return nil
}

func (v *recordingVisitor) VisitCompleted(e IndexerCompleted) error {
	v.completed = append(v.completed, e)
	return nil
}

func TestEvent_AcceptDispatchesByVariant(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		NewIndexerNotified("https://x/a", 1, start),
		NewIndexerCompleted("https://x/a", 1, start, start.Add(time.Second)),
		NewIndexerNotified("https://x/b", 2, start),
	}

	v := &recordingVisitor{}
	for _, e := range events {
		if err := e.Accept(v); err != nil {
			t.Fatalf("Accept() unexpected error: %v", err)
		}
	}

	if len(v.notified) != 2 || len(v.completed) != 1 {
		t.Fatalf("dispatch counts = %d notified / %d completed, want 2 / 1", len(v.notified), len(v.completed))
	}
	if v.notified[1].URI != "https://x/b" {
		t.Errorf("second notified URI = %q", v.notified[1].URI)
	}
	if v.completed[0].EventType() != TypeIndexerCompleted {
		t.Errorf("EventType() = %s", v.completed[0].EventType())
	}
}

func TestIndexerCompleted_Duration(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	e := NewIndexerCompleted("https://x/a", 1, start, start.Add(60*time.Second))
	if e.Duration() != time.Minute {
		t.Errorf("Duration() = %v, want 1m", e.Duration())
	}

	reversed := NewIndexerCompleted("https://x/a", 1, start.Add(time.Second), start)
	if reversed.Duration() >= 0 {
		t.Errorf("Duration() = %v, want negative", reversed.Duration())
	}
}
