package histogram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SerializedType is the type tag of a serialized histogram.
const SerializedType = "histogram"

// ErrFormatMismatch is returned when a serialized histogram cannot be restored.
var ErrFormatMismatch = errors.New("serialized histogram format mismatch")

// SerializedHistogram is the durable form of a Histogram.
type SerializedHistogram struct {
	Type       string                     `json:"type"`
	Name       string                     `json:"name"`
	Help       string                     `json:"help"`
	LabelNames []string                   `json:"labelNames"`
	Buckets    []float64                  `json:"buckets"`
	Entries    map[string]SerializedEntry `json:"entries"`
}

// SerializedEntry is the state of one label combination.
type SerializedEntry struct {
	Labels       map[string]string `json:"labels"`
	BucketCounts []uint64          `json:"bucketCounts"`
	Sum          float64           `json:"sum"`
	Count        uint64            `json:"count"`
}

// entryKey renders a label combination as `name:"value",name:"value"` in label-name order.
// Values are quoted so distinct combinations never share a key. Restoring never parses
// it back; labels are taken from the entry itself.
func entryKey(labelNames []string, values []string) string {
	parts := make([]string, len(labelNames))
	for i, name := range labelNames {
		parts[i] = name + ":" + strconv.Quote(values[i])
	}
	return strings.Join(parts, ",")
}

// Serialize captures the full state of h.
func Serialize(h *Histogram) SerializedHistogram {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := SerializedHistogram{
		Type:       SerializedType,
		Name:       h.name,
		Help:       h.help,
		LabelNames: h.LabelNames(),
		Buckets:    h.Buckets(),
		Entries:    make(map[string]SerializedEntry, len(h.series)),
	}
	for key, acc := range h.series {
		values := key.Values(len(h.labelNames))
		labels := make(map[string]string, len(values))
		for i, v := range values {
			labels[h.labelNames[i]] = v
		}
		out.Entries[entryKey(h.labelNames, values)] = SerializedEntry{
			Labels:       labels,
			BucketCounts: append([]uint64(nil), acc.BucketCounts...),
			Sum:          acc.Sum,
			Count:        acc.Count,
		}
	}
	return out
}

// Deserialize rebuilds a histogram from s, restoring persisted counts as they are.
func Deserialize(s SerializedHistogram) (*Histogram, error) {
	if s.Type != SerializedType {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrFormatMismatch, s.Type)
	}

	h, err := New(Opts{
		Name:       s.Name,
		Help:       s.Help,
		Buckets:    s.Buckets,
		LabelNames: s.LabelNames,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormatMismatch, err)
	}

	seen := make(map[Key]string, len(s.Entries))
	for entryName, entry := range s.Entries {
		if err := checkEntry(h, entry); err != nil {
			return nil, fmt.Errorf("%w: %s: entry %q: %v", ErrFormatMismatch, s.Name, entryName, err)
		}
		key, err := h.keyFor(Labels(entry.Labels))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: entry %q: %v", ErrFormatMismatch, s.Name, entryName, err)
		}
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s: entries %q and %q share labels", ErrFormatMismatch, s.Name, other, entryName)
		}
		seen[key] = entryName

		h.restore(key, &Accumulator{
			BucketCounts: append([]uint64(nil), entry.BucketCounts...),
			Sum:          entry.Sum,
			Count:        entry.Count,
		})
	}
	return h, nil
}

func checkEntry(h *Histogram, entry SerializedEntry) error {
	if want := len(h.buckets) + 1; len(entry.BucketCounts) != want {
		return fmt.Errorf("expected %d bucket counts, got %d", want, len(entry.BucketCounts))
	}
	for i := 1; i < len(entry.BucketCounts); i++ {
		if entry.BucketCounts[i] < entry.BucketCounts[i-1] {
			return fmt.Errorf("bucket counts are not cumulative at index %d", i)
		}
	}
	if last := entry.BucketCounts[len(entry.BucketCounts)-1]; last != entry.Count {
		return fmt.Errorf("+Inf bucket %d differs from count %d", last, entry.Count)
	}
	return nil
}

// Encode serializes h into an opaque storage blob.
func Encode(h *Histogram) ([]byte, error) {
	blob, err := json.Marshal(Serialize(h))
	if err != nil {
		return nil, fmt.Errorf("failed to encode histogram %s: %w", h.Name(), err)
	}
	return blob, nil
}

// Decode restores a histogram from a blob written by Encode.
func Decode(blob []byte) (*Histogram, error) {
	var s SerializedHistogram
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormatMismatch, err)
	}
	return Deserialize(s)
}
