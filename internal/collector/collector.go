// Package collector folds indexer events into persisted histograms.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	v1 "github.com/aevon-lab/indexer-metrics-collector/internal/api/v1"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/histogram"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/metrics"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Collector owns the live metrics context of one instance and the store it is persisted to.
//
// Submits are serialized by mu and run read-modify-write against the store. Two instances
// sharing a store can interleave those cycles and lose updates; there is no compare-and-swap.
type Collector struct {
	store         storage.KVStore
	defs          []metrics.Definition
	defaultLabels map[string]string

	mu       sync.Mutex
	live     atomic.Pointer[metrics.Context]
	registry *prometheus.Registry
}

// New rehydrates every definition from store and returns a ready collector.
func New(ctx context.Context, store storage.KVStore, defs []metrics.Definition, defaultLabels map[string]string) (*Collector, error) {
	if store == nil {
		return nil, errors.New("collector: store must not be nil")
	}

	c := &Collector{
		store:         store,
		defs:          defs,
		defaultLabels: defaultLabels,
		registry:      prometheus.NewRegistry(),
	}

	mc, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.live.Store(mc)

	if err := c.registry.Register(liveCollector{c}); err != nil {
		return nil, fmt.Errorf("register metrics context: %w", err)
	}

	slog.Info("[Collector] Rehydrated metrics context", "histograms", mc.Names(), "default_labels", defaultLabels)
	return c, nil
}

// Submit folds evt into freshly read persisted state, writes every histogram back and
// only then publishes the result. On error the live context is unchanged.
func (c *Collector) Submit(ctx context.Context, evt v1.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.load(ctx)
	if err != nil {
		return err
	}

	if err := evt.Accept(observer{ctx: next}); err != nil {
		return fmt.Errorf("apply %s: %w", evt.EventType(), err)
	}

	if err := c.persist(ctx, next); err != nil {
		return err
	}

	c.live.Store(next)
	return nil
}

// Metrics returns the live context. Callers must treat it as read-only.
func (c *Collector) Metrics() *metrics.Context {
	return c.live.Load()
}

// Gatherer renders the live context.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// Store returns the backing store.
func (c *Collector) Store() storage.KVStore {
	return c.store
}

// load builds a private context from the persisted state of every definition.
func (c *Collector) load(ctx context.Context) (*metrics.Context, error) {
	mc := metrics.NewContext(c.defaultLabels)
	for _, def := range c.defs {
		h, err := c.restore(ctx, def)
		if err != nil {
			return nil, err
		}
		if err := mc.Add(h); err != nil {
			return nil, err
		}
	}
	return mc, nil
}

// restore returns the persisted histogram for def, or a fresh one when nothing usable is stored.
// The persisted bucket layout wins over the definition's.
func (c *Collector) restore(ctx context.Context, def metrics.Definition) (*histogram.Histogram, error) {
	blob, err := c.store.Get(ctx, def.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return histogram.New(def.Opts)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", def.StorageKey, err)
	}

	h, err := histogram.Decode(blob)
	if err == nil && (h.Name() != def.Name || !slices.Equal(h.LabelNames(), def.LabelNames)) {
		err = fmt.Errorf("%w: stored %s with labels %v", histogram.ErrFormatMismatch, h.Name(), h.LabelNames())
	}
	if err != nil {
		if !errors.Is(err, histogram.ErrFormatMismatch) {
			return nil, err
		}
		slog.Warn("[Collector] Discarding unreadable persisted histogram", "key", def.StorageKey, "error", err)
		return histogram.New(def.Opts)
	}
	return h, nil
}

// persist writes every histogram of mc concurrently and waits for all of them.
func (c *Collector) persist(ctx context.Context, mc *metrics.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, def := range c.defs {
		blob, err := histogram.Encode(mc.Histogram(def.Name))
		if err != nil {
			return fmt.Errorf("encode %s: %w", def.Name, err)
		}
		key := def.StorageKey
		g.Go(func() error {
			if err := c.store.Put(gctx, key, blob); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// observer maps each event variant to the histogram it feeds.
type observer struct {
	ctx *metrics.Context
}

func (o observer) VisitNotified(e v1.IndexerNotified) error {
	return o.ctx.Observe(metrics.FileSizeBytes, nil, float64(e.ByteLength))
}

func (o observer) VisitCompleted(e v1.IndexerCompleted) error {
	return o.ctx.Observe(metrics.IndexingDurationSeconds, nil, e.Duration().Seconds())
}

// liveCollector exposes whichever context is live at scrape time.
type liveCollector struct {
	c *Collector
}

func (l liveCollector) Describe(ch chan<- *prometheus.Desc) {
	l.c.live.Load().Describe(ch)
}

func (l liveCollector) Collect(ch chan<- prometheus.Metric) {
	l.c.live.Load().Collect(ch)
}
