// Package redis provides a storage.KVStore backed by Redis strings.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage"
	"github.com/go-redis/redis"
)

// DefaultKeyPrefix namespaces collector keys inside a shared Redis database.
const DefaultKeyPrefix = "collector:"

// Store keeps one Redis string per storage key.
type Store struct {
	db     *redis.Client
	prefix string
}

// Options configure the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Open connects to Redis and verifies the connection.
func Open(opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	slog.Info("[Redis] Store connected", "addr", opts.Addr, "db", opts.DB)
	return NewStore(client, opts.KeyPrefix), nil
}

// NewStore wraps an existing client. An empty prefix selects DefaultKeyPrefix.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{db: client, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.db.WithContext(ctx).Get(s.prefix + key).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.db.WithContext(ctx).Set(s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.WithContext(ctx).Ping().Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ storage.KVStore = (*Store)(nil)
