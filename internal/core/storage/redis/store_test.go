package redis

import (
	"context"
	"testing"

	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage"
	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/require"
)

func withStore(t *testing.T, prefix string, action func(s *Store, db *miniredis.Miniredis)) {
	t.Helper()

	db, err := miniredis.Run()
	require.NoError(t, err)
	defer db.Close()

	s := NewStore(redis.NewClient(&redis.Options{Addr: db.Addr()}), prefix)
	defer s.Close()

	action(s, db)
}

func TestStore_GetPut(t *testing.T) {
	withStore(t, "", func(s *Store, db *miniredis.Miniredis) {
		ctx := context.Background()

		_, err := s.Get(ctx, "fileSize/histogram")
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, s.Put(ctx, "fileSize/histogram", []byte(`{"type":"histogram"}`)))

		got, err := s.Get(ctx, "fileSize/histogram")
		require.NoError(t, err)
		require.Equal(t, []byte(`{"type":"histogram"}`), got)

		raw, err := db.Get("collector:fileSize/histogram")
		require.NoError(t, err)
		require.Equal(t, `{"type":"histogram"}`, raw)
	})
}

func TestStore_CustomPrefix(t *testing.T) {
	withStore(t, "staging/", func(s *Store, db *miniredis.Miniredis) {
		require.NoError(t, s.Put(context.Background(), "k", []byte("v")))
		require.True(t, db.Exists("staging/k"))
		require.False(t, db.Exists("collector:k"))
	})
}

func TestStore_Ping(t *testing.T) {
	withStore(t, "", func(s *Store, _ *miniredis.Miniredis) {
		require.NoError(t, s.Ping(context.Background()))
	})
}

func TestOpen(t *testing.T) {
	db, err := miniredis.Run()
	require.NoError(t, err)
	defer db.Close()

	s, err := Open(Options{Addr: db.Addr()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), "k", []byte("v")))
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open(Options{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
