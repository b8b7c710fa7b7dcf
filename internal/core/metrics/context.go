// Package metrics holds the aggregate state of a collector: its named histograms
// and the default labels merged into every exported series.
package metrics

import (
	"fmt"

	"github.com/aevon-lab/indexer-metrics-collector/internal/core/histogram"
	"github.com/prometheus/client_golang/prometheus"
)

// Definition binds a histogram to the storage key its state is persisted under.
type Definition struct {
	histogram.Opts
	StorageKey string
}

// Names of the histograms every collector maintains.
const (
	FileSizeBytes           = "file_size_bytes"
	IndexingDurationSeconds = "indexing_duration_seconds"
)

// IndexerDefinitions returns the histograms tracked for indexer events.
func IndexerDefinitions() []Definition {
	return []Definition{
		{
			Opts: histogram.Opts{
				Name:    FileSizeBytes,
				Help:    "file seen with certain size",
				Buckets: append([]float64{1e6}, histogram.LinearBuckets(10e6, 10e6, 10)...),
			},
			StorageKey: "fileSize/histogram",
		},
		{
			Opts: histogram.Opts{
				Name:    IndexingDurationSeconds,
				Help:    "how long did ipfs indexing take from start to completion",
				Buckets: histogram.DefBuckets,
			},
			StorageKey: "indexingDurationSeconds/histogram",
		},
	}
}

// Context is a named, ordered set of histograms plus default labels.
// It implements prometheus.Collector so it can be rendered by any client_golang registry.
type Context struct {
	defaultLabels histogram.Labels
	names         []string
	histograms    map[string]*histogram.Histogram
}

// NewContext creates an empty context. defaultLabels are copied.
func NewContext(defaultLabels map[string]string) *Context {
	labels := make(histogram.Labels, len(defaultLabels))
	for k, v := range defaultLabels {
		labels[k] = v
	}
	return &Context{
		defaultLabels: labels,
		histograms:    make(map[string]*histogram.Histogram),
	}
}

// NewFromDefinitions creates a context with a fresh histogram per definition.
func NewFromDefinitions(defs []Definition, defaultLabels map[string]string) (*Context, error) {
	c := NewContext(defaultLabels)
	for _, def := range defs {
		h, err := histogram.New(def.Opts)
		if err != nil {
			return nil, err
		}
		if err := c.Add(h); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers h under its name. Names must be unique within a context.
func (c *Context) Add(h *histogram.Histogram) error {
	if _, exists := c.histograms[h.Name()]; exists {
		return fmt.Errorf("histogram %s already registered", h.Name())
	}
	c.names = append(c.names, h.Name())
	c.histograms[h.Name()] = h
	return nil
}

// Histogram returns the histogram registered under name, or nil.
func (c *Context) Histogram(name string) *histogram.Histogram {
	return c.histograms[name]
}

// Names returns histogram names in registration order.
func (c *Context) Names() []string {
	return append([]string(nil), c.names...)
}

// DefaultLabels returns a copy of the default labels.
func (c *Context) DefaultLabels() histogram.Labels {
	out := make(histogram.Labels, len(c.defaultLabels))
	for k, v := range c.defaultLabels {
		out[k] = v
	}
	return out
}

// Observe records value in the named histogram.
func (c *Context) Observe(name string, labels histogram.Labels, value float64) error {
	h, ok := c.histograms[name]
	if !ok {
		return fmt.Errorf("histogram %s not registered", name)
	}
	return h.Observe(labels, value)
}

// Export returns the exported series of every histogram, keyed by name.
func (c *Context) Export() map[string][]histogram.Series {
	out := make(map[string][]histogram.Series, len(c.histograms))
	for _, name := range c.names {
		out[name] = c.histograms[name].Export(c.defaultLabels)
	}
	return out
}

// Clone returns a deep copy sharing nothing mutable with c.
func (c *Context) Clone() *Context {
	out := NewContext(c.defaultLabels)
	for _, name := range c.names {
		out.names = append(out.names, name)
		out.histograms[name] = c.histograms[name].Clone()
	}
	return out
}

// Registry returns a fresh registry holding only this context.
func (c *Context) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return reg, nil
}

// desc builds the descriptor of h: series labels are variable, default labels not shadowed
// by a series label are constant.
func (c *Context) desc(h *histogram.Histogram) *prometheus.Desc {
	labelNames := h.LabelNames()
	shadowed := make(map[string]bool, len(labelNames))
	for _, name := range labelNames {
		shadowed[name] = true
	}
	constLabels := prometheus.Labels{}
	for k, v := range c.defaultLabels {
		if !shadowed[k] {
			constLabels[k] = v
		}
	}
	return prometheus.NewDesc(h.Name(), h.Help(), labelNames, constLabels)
}

// Describe implements prometheus.Collector.
func (c *Context) Describe(ch chan<- *prometheus.Desc) {
	for _, name := range c.names {
		ch <- c.desc(c.histograms[name])
	}
}

// Collect implements prometheus.Collector.
func (c *Context) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.names {
		h := c.histograms[name]
		desc := c.desc(h)
		labelNames := h.LabelNames()

		for _, s := range h.Export(nil) {
			values := make([]string, len(labelNames))
			for i, ln := range labelNames {
				values[i] = s.Labels[ln]
			}

			buckets := make(map[float64]uint64, len(s.Buckets))
			for i, bound := range s.Buckets {
				buckets[bound] = s.BucketCounts[i]
			}

			m, err := prometheus.NewConstHistogram(desc, s.Count, s.Sum, buckets, values...)
			if err != nil {
				m = prometheus.NewInvalidMetric(desc, err)
			}
			ch <- m
		}
	}
}
