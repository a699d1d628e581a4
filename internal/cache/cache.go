// Package cache provides a Redis-backed store for computed profile sets so
// repeated scans over the same trading day skip re-profiling unchanged
// history. Every failure degrades to a cache miss; a flaky Redis slows a
// scan down but never blocks it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/profile"
)

// Config holds connection settings for the profile cache.
type Config struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
	OpTimeout time.Duration `yaml:"op_timeout"`
	Enabled   bool          `yaml:"enabled"`
}

// DefaultConfig ships with the cache disabled; research runs opt in.
func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:6379",
		KeyPrefix: "lodestar",
		TTL:       24 * time.Hour,
		OpTimeout: 250 * time.Millisecond,
		Enabled:   false,
	}
}

// Recorder counts cache outcomes for instrumentation.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// ProfileStore persists profile sets keyed by symbol and trading day. It
// satisfies the strategy package's ProfileCache through Fetch and Store,
// which absorb transport errors, while Get and Put expose them for callers
// that want to distinguish a miss from an outage.
type ProfileStore struct {
	client   redis.Cmdable
	config   Config
	recorder Recorder
}

// New builds a store around a fresh Redis client. The connection is lazy;
// use Ping to verify reachability when a health check needs it.
func New(config Config) *ProfileStore {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &ProfileStore{client: client, config: config}
}

// WithRecorder attaches a hit and miss counter. Call before the store is
// shared; the field is not synchronized.
func (s *ProfileStore) WithRecorder(rec Recorder) *ProfileStore {
	s.recorder = rec
	return s
}

// Ping verifies the Redis connection.
func (s *ProfileStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache ping: %w", err)
	}
	return nil
}

// Get returns the cached profile set for a symbol and trading day, or nil
// when the key is absent.
func (s *ProfileStore) Get(ctx context.Context, symbol string, date time.Time) (*profile.ProfileSet, error) {
	data, err := s.client.Get(ctx, s.key(symbol, date)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var set profile.ProfileSet
	if err := json.Unmarshal([]byte(data), &set); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &set, nil
}

// Put stores a profile set under the symbol and trading day, expiring after
// the configured TTL.
func (s *ProfileStore) Put(ctx context.Context, symbol string, date time.Time, set *profile.ProfileSet) error {
	if set == nil {
		return nil
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(symbol, date), data, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Fetch adapts Get to the strategy package's cache contract: any error is a
// miss.
func (s *ProfileStore) Fetch(symbol string, date time.Time) (*profile.ProfileSet, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout())
	defer cancel()

	set, err := s.Get(ctx, symbol, date)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("profile cache read failed")
		s.recordMiss()
		return nil, false
	}
	if set == nil {
		s.recordMiss()
		return nil, false
	}
	s.recordHit()
	return set, true
}

// Store adapts Put to the strategy package's cache contract: write failures
// are logged and dropped.
func (s *ProfileStore) Store(symbol string, date time.Time, set *profile.ProfileSet) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout())
	defer cancel()

	if err := s.Put(ctx, symbol, date, set); err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("profile cache write failed")
	}
}

// Close releases the underlying client when it owns a connection.
func (s *ProfileStore) Close() error {
	if closer, ok := s.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (s *ProfileStore) recordHit() {
	if s.recorder != nil {
		s.recorder.RecordCacheHit()
	}
}

func (s *ProfileStore) recordMiss() {
	if s.recorder != nil {
		s.recorder.RecordCacheMiss()
	}
}

func (s *ProfileStore) opTimeout() time.Duration {
	if s.config.OpTimeout <= 0 {
		return 250 * time.Millisecond
	}
	return s.config.OpTimeout
}

func (s *ProfileStore) key(symbol string, date time.Time) string {
	return fmt.Sprintf("%s:profile:%s:%s", s.config.KeyPrefix, symbol, date.Format("2006-01-02"))
}
