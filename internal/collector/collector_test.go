package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	v1 "github.com/aevon-lab/indexer-metrics-collector/internal/api/v1"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/histogram"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/metrics"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage/memory"
	storagemocks "github.com/aevon-lab/indexer-metrics-collector/internal/mocks/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	fileSizeKey = "fileSize/histogram"
	durationKey = "indexingDurationSeconds/histogram"
	t0          = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
)

func notified(byteLength int64) v1.Event {
	return v1.NewIndexerNotified("https://x/a", byteLength, t0)
}

func completed(d time.Duration) v1.Event {
	return v1.NewIndexerCompleted("https://x/a", 1, t0, t0.Add(d))
}

func newCollector(t *testing.T, store storage.KVStore) *Collector {
	t.Helper()
	c, err := New(context.Background(), store, metrics.IndexerDefinitions(), map[string]string{"env": "test"})
	require.NoError(t, err)
	return c
}

func series(t *testing.T, mc *metrics.Context, name string) histogram.Series {
	t.Helper()
	s := mc.Export()[name]
	require.Len(t, s, 1)
	return s[0]
}

func persisted(t *testing.T, store storage.KVStore, key string) histogram.Series {
	t.Helper()
	blob, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	h, err := histogram.Decode(blob)
	require.NoError(t, err)
	s := h.Export(nil)
	require.Len(t, s, 1)
	return s[0]
}

func TestNew_FreshStore(t *testing.T) {
	c := newCollector(t, memory.NewStore())

	for _, name := range []string{metrics.FileSizeBytes, metrics.IndexingDurationSeconds} {
		s := series(t, c.Metrics(), name)
		require.Zero(t, s.Count)
		require.Equal(t, "test", s.Labels["env"])
	}

	families, err := c.Gatherer().Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)
}

func TestSubmit_Notified(t *testing.T) {
	store := memory.NewStore()
	c := newCollector(t, store)
	before := c.Metrics()

	require.NoError(t, c.Submit(context.Background(), notified(1_000_000)))

	s := series(t, c.Metrics(), metrics.FileSizeBytes)
	require.Equal(t, uint64(1), s.Count)
	require.Equal(t, 1e6, s.Sum)
	require.Equal(t, uint64(1), s.BucketCounts[0])
	require.Zero(t, series(t, c.Metrics(), metrics.IndexingDurationSeconds).Count)

	require.Equal(t, uint64(1), persisted(t, store, fileSizeKey).Count)
	require.Zero(t, persisted(t, store, durationKey).Count)

	// The previously published context is never mutated.
	require.Zero(t, series(t, before, metrics.FileSizeBytes).Count)
}

func TestSubmit_CompletedObservesDuration(t *testing.T) {
	c := newCollector(t, memory.NewStore())

	require.NoError(t, c.Submit(context.Background(), completed(60*time.Second)))

	s := series(t, c.Metrics(), metrics.IndexingDurationSeconds)
	require.Equal(t, uint64(1), s.Count)
	require.Equal(t, 60.0, s.Sum)
	require.Zero(t, series(t, c.Metrics(), metrics.FileSizeBytes).Count)
}

func TestNew_RehydratesPersistedState(t *testing.T) {
	store := memory.NewStore()
	first := newCollector(t, store)
	require.NoError(t, first.Submit(context.Background(), notified(5)))
	require.NoError(t, first.Submit(context.Background(), notified(15_000_000)))

	second := newCollector(t, store)
	require.Equal(t, series(t, first.Metrics(), metrics.FileSizeBytes), series(t, second.Metrics(), metrics.FileSizeBytes))

	require.NoError(t, second.Submit(context.Background(), notified(1)))
	require.Equal(t, uint64(3), persisted(t, store, fileSizeKey).Count)
}

func TestNew_PersistedBucketsWin(t *testing.T) {
	store := memory.NewStore()
	custom, err := histogram.New(histogram.Opts{Name: metrics.FileSizeBytes, Help: "old", Buckets: []float64{10, 20}})
	require.NoError(t, err)
	require.NoError(t, custom.Observe(nil, 15))
	blob, err := histogram.Encode(custom)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), fileSizeKey, blob))

	c := newCollector(t, store)
	s := series(t, c.Metrics(), metrics.FileSizeBytes)
	require.Equal(t, []float64{10, 20}, s.Buckets)
	require.Equal(t, []uint64{0, 1, 1}, s.BucketCounts)
}

func TestNew_UnreadableBlobStartsFresh(t *testing.T) {
	other, err := histogram.New(histogram.Opts{Name: "something_else"})
	require.NoError(t, err)
	otherBlob, err := histogram.Encode(other)
	require.NoError(t, err)

	for name, blob := range map[string][]byte{
		"not json":       []byte("garbage"),
		"wrong type tag": []byte(`{"type":"counter","name":"file_size_bytes"}`),
		"wrong name":     otherBlob,
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.NewStore()
			require.NoError(t, store.Put(context.Background(), fileSizeKey, blob))

			c := newCollector(t, store)
			s := series(t, c.Metrics(), metrics.FileSizeBytes)
			require.Zero(t, s.Count)
			require.Len(t, s.Buckets, 11)

			require.NoError(t, c.Submit(context.Background(), notified(1)))
			require.Equal(t, uint64(1), persisted(t, store, fileSizeKey).Count)
		})
	}
}

func TestNew_StoreReadError(t *testing.T) {
	store := storagemocks.NewKVStore(t)
	store.EXPECT().Get(mock.Anything, fileSizeKey).Return(nil, errors.New("connection refused"))

	_, err := New(context.Background(), store, metrics.IndexerDefinitions(), nil)
	require.ErrorContains(t, err, "connection refused")
}

func TestNew_NilStore(t *testing.T) {
	_, err := New(context.Background(), nil, metrics.IndexerDefinitions(), nil)
	require.Error(t, err)
}

func TestSubmit_FailedWriteLeavesLiveContext(t *testing.T) {
	store := storagemocks.NewKVStore(t)
	store.EXPECT().Get(mock.Anything, fileSizeKey).Return(nil, storage.ErrNotFound)
	store.EXPECT().Get(mock.Anything, durationKey).Return(nil, storage.ErrNotFound)
	store.EXPECT().Put(mock.Anything, fileSizeKey, mock.Anything).Return(errors.New("disk full")).Once()
	store.EXPECT().Put(mock.Anything, durationKey, mock.Anything).Return(nil).Once()

	c := newCollector(t, store)
	before := c.Metrics()

	err := c.Submit(context.Background(), notified(10))
	require.ErrorContains(t, err, "disk full")
	require.Same(t, before, c.Metrics())
	require.Zero(t, series(t, c.Metrics(), metrics.FileSizeBytes).Count)
}

func TestSubmit_ReadErrorAppliesNothing(t *testing.T) {
	store := storagemocks.NewKVStore(t)
	store.EXPECT().Get(mock.Anything, fileSizeKey).Return(nil, storage.ErrNotFound).Once()
	store.EXPECT().Get(mock.Anything, durationKey).Return(nil, storage.ErrNotFound).Once()
	store.EXPECT().Get(mock.Anything, fileSizeKey).Return(nil, errors.New("timeout")).Once()

	c := newCollector(t, store)
	before := c.Metrics()

	require.ErrorContains(t, c.Submit(context.Background(), notified(10)), "timeout")
	require.Same(t, before, c.Metrics())
}

func TestSubmit_SerializedWithinInstance(t *testing.T) {
	store := memory.NewStore()
	c := newCollector(t, store)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Submit(context.Background(), notified(int64(i)))
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, uint64(20), series(t, c.Metrics(), metrics.FileSizeBytes).Count)
	require.Equal(t, uint64(20), persisted(t, store, fileSizeKey).Count)
}

// gatedStore holds every Put until the expected number of Gets has happened, forcing two
// instances to read before either writes. The gate disarms once it opens.
type gatedStore struct {
	*memory.Store
	armed atomic.Bool
	reads sync.WaitGroup
}

func (s *gatedStore) arm(reads int) {
	s.reads.Add(reads)
	s.armed.Store(true)
}

func (s *gatedStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.Store.Get(ctx, key)
	if s.armed.Load() {
		s.reads.Done()
	}
	return v, err
}

func (s *gatedStore) Put(ctx context.Context, key string, value []byte) error {
	if s.armed.Load() {
		s.reads.Wait()
		s.armed.Store(false)
	}
	return s.Store.Put(ctx, key, value)
}

// Two instances sharing a store lose an update when their read-modify-write cycles
// interleave. This is a known consistency boundary; the test pins it down.
func TestSubmit_CrossInstanceLostUpdate(t *testing.T) {
	store := &gatedStore{Store: memory.NewStore()}
	a := newCollector(t, store)
	b := newCollector(t, store)

	store.arm(4)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, c := range []*Collector{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Submit(context.Background(), notified(100))
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.False(t, store.armed.Load())

	// Both submits were accepted, yet the store holds a single observation.
	require.Equal(t, uint64(1), persisted(t, store, fileSizeKey).Count)
	require.Equal(t, uint64(1), series(t, a.Metrics(), metrics.FileSizeBytes).Count)
	require.Equal(t, uint64(1), series(t, b.Metrics(), metrics.FileSizeBytes).Count)
}
