// Package histogram implements cumulative-bucket histograms with label dimensions
// and their storage encoding.
package histogram

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInvalidOpts is returned by New for an unusable histogram definition.
	ErrInvalidOpts = errors.New("invalid histogram options")

	// ErrLabelMismatch is returned when observed labels do not name exactly the label names.
	ErrLabelMismatch = errors.New("label mismatch")

	// ErrInvalidValue is returned for NaN and infinite observations.
	ErrInvalidValue = errors.New("invalid observation value")
)

// keySeparator cannot appear in valid UTF-8; keyFor rejects any other label value.
const keySeparator = "\xff"

// DefBuckets are the default buckets of the Prometheus client.
var DefBuckets = prometheus.DefBuckets

// LinearBuckets creates count buckets, each width wide, the lowest with upper bound start.
func LinearBuckets(start, width float64, count int) []float64 {
	return prometheus.LinearBuckets(start, width, count)
}

// ExponentialBuckets creates count buckets, the lowest with upper bound start and
// each following bound factor times the previous one.
func ExponentialBuckets(start, factor float64, count int) []float64 {
	return prometheus.ExponentialBuckets(start, factor, count)
}

// Labels maps label names to values.
type Labels map[string]string

// Opts describes a histogram.
type Opts struct {
	Name       string
	Help       string
	Buckets    []float64
	LabelNames []string
}

// Key identifies one label combination: the label values in label-name order.
type Key string

func makeKey(values []string) Key {
	return Key(strings.Join(values, keySeparator))
}

// Values splits the key back into label values.
func (k Key) Values(n int) []string {
	if n == 0 {
		return nil
	}
	return strings.SplitN(string(k), keySeparator, n)
}

// Accumulator holds the state of one series.
type Accumulator struct {
	// BucketCounts[i] counts observations <= bound i. The last entry is the +Inf bucket.
	BucketCounts []uint64
	Sum          float64
	Count        uint64
}

func newAccumulator(buckets int) *Accumulator {
	return &Accumulator{BucketCounts: make([]uint64, buckets+1)}
}

func (a *Accumulator) clone() *Accumulator {
	return &Accumulator{
		BucketCounts: append([]uint64(nil), a.BucketCounts...),
		Sum:          a.Sum,
		Count:        a.Count,
	}
}

// Series is one exported label combination.
type Series struct {
	Labels Labels

	// Buckets are the finite upper bounds; BucketCounts has one more entry for +Inf.
	Buckets      []float64
	BucketCounts []uint64
	Sum          float64
	Count        uint64
}

// Histogram is a named cumulative histogram. It is safe for concurrent use.
type Histogram struct {
	name       string
	help       string
	buckets    []float64
	labelNames []string

	mu     sync.RWMutex
	series map[Key]*Accumulator
}

// New validates opts and creates an empty histogram.
func New(opts Opts) (*Histogram, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidOpts)
	}

	buckets := append([]float64(nil), opts.Buckets...)
	if n := len(buckets); n > 0 && math.IsInf(buckets[n-1], +1) {
		buckets = buckets[:n-1]
	}
	for i, b := range buckets {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("%w: %s: bucket %d is not finite", ErrInvalidOpts, opts.Name, i)
		}
		if i > 0 && b <= buckets[i-1] {
			return nil, fmt.Errorf("%w: %s: buckets must be strictly increasing (%v after %v)", ErrInvalidOpts, opts.Name, b, buckets[i-1])
		}
	}

	seen := make(map[string]bool, len(opts.LabelNames))
	for _, name := range opts.LabelNames {
		if name == "" {
			return nil, fmt.Errorf("%w: %s: empty label name", ErrInvalidOpts, opts.Name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s: duplicate label name %q", ErrInvalidOpts, opts.Name, name)
		}
		seen[name] = true
	}

	h := &Histogram{
		name:       opts.Name,
		help:       opts.Help,
		buckets:    buckets,
		labelNames: append([]string(nil), opts.LabelNames...),
		series:     make(map[Key]*Accumulator),
	}
	if len(h.labelNames) == 0 {
		// An unlabeled histogram always exports its single series, even before the first observation.
		h.series[makeKey(nil)] = newAccumulator(len(buckets))
	}
	return h, nil
}

// Name returns the metric name.
func (h *Histogram) Name() string { return h.name }

// Help returns the documentation string.
func (h *Histogram) Help() string { return h.help }

// Buckets returns a copy of the finite upper bounds.
func (h *Histogram) Buckets() []float64 { return append([]float64(nil), h.buckets...) }

// LabelNames returns a copy of the ordered label names.
func (h *Histogram) LabelNames() []string { return append([]string(nil), h.labelNames...) }

// Opts returns the options the histogram was created with.
func (h *Histogram) Opts() Opts {
	return Opts{
		Name:       h.name,
		Help:       h.help,
		Buckets:    h.Buckets(),
		LabelNames: h.LabelNames(),
	}
}

// keyFor resolves labels into a series key.
func (h *Histogram) keyFor(labels Labels) (Key, error) {
	if len(labels) != len(h.labelNames) {
		return "", fmt.Errorf("%w: %s expects labels %v, got %d labels", ErrLabelMismatch, h.name, h.labelNames, len(labels))
	}
	values := make([]string, len(h.labelNames))
	for i, name := range h.labelNames {
		v, ok := labels[name]
		if !ok {
			return "", fmt.Errorf("%w: %s: missing label %q", ErrLabelMismatch, h.name, name)
		}
		if !utf8.ValidString(v) {
			return "", fmt.Errorf("%w: %s: label %q is not valid UTF-8", ErrLabelMismatch, h.name, name)
		}
		values[i] = v
	}
	return makeKey(values), nil
}

// Observe records value in the series selected by labels.
func (h *Histogram) Observe(labels Labels, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, h.name, value)
	}
	key, err := h.keyFor(labels)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	acc, ok := h.series[key]
	if !ok {
		acc = newAccumulator(len(h.buckets))
		h.series[key] = acc
	}
	for i, bound := range h.buckets {
		if value <= bound {
			acc.BucketCounts[i]++
		}
	}
	acc.BucketCounts[len(h.buckets)]++
	acc.Sum += value
	acc.Count++
	return nil
}

// Export returns one Series per label combination, sorted by key. Default labels are
// merged into every series; a series label of the same name wins.
func (h *Histogram) Export(defaultLabels Labels) []Series {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := h.sortedKeys()
	out := make([]Series, 0, len(keys))
	for _, key := range keys {
		acc := h.series[key]

		labels := make(Labels, len(defaultLabels)+len(h.labelNames))
		for k, v := range defaultLabels {
			labels[k] = v
		}
		for i, v := range key.Values(len(h.labelNames)) {
			labels[h.labelNames[i]] = v
		}

		out = append(out, Series{
			Labels:       labels,
			Buckets:      h.Buckets(),
			BucketCounts: append([]uint64(nil), acc.BucketCounts...),
			Sum:          acc.Sum,
			Count:        acc.Count,
		})
	}
	return out
}

// Clone returns a deep copy.
func (h *Histogram) Clone() *Histogram {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c := &Histogram{
		name:       h.name,
		help:       h.help,
		buckets:    h.buckets,
		labelNames: h.labelNames,
		series:     make(map[Key]*Accumulator, len(h.series)),
	}
	for k, acc := range h.series {
		c.series[k] = acc.clone()
	}
	return c
}

func (h *Histogram) sortedKeys() []Key {
	keys := make([]Key, 0, len(h.series))
	for k := range h.series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// restore installs a persisted accumulator without replaying observations.
func (h *Histogram) restore(key Key, acc *Accumulator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.series[key] = acc
}
