// Package redisstore implements the skill, week-plan and milestone stores on
// Redis. Records are JSON strings; list queries go through sorted-set indexes
// scored by a global creation sequence; compare-and-swap writes use
// WATCH/MULTI; the event log is a set of Redis streams.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/store"
)

// maxTxAttempts bounds WATCH retries when a watched key changes under us.
const maxTxAttempts = 8

// Store is a Redis-backed store.
type Store struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// Options configures Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, opts Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(rdb, opts.Prefix), nil
}

// New wraps an existing client. Keys are namespaced under prefix.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "questforge"
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Backend exposes s through the store.Backend bundle.
func (s *Store) Backend() *store.Backend {
	return store.NewBackend(&skillRepo{s}, &weekRepo{s}, &milestoneRepo{s}, &eventRepo{s}, s.Close)
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// nextSeq returns the next value of the global creation sequence.
func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	return s.rdb.Incr(ctx, s.key("seq")).Result()
}

// record is the stored envelope: the creation sequence plus the value.
type record[T any] struct {
	Seq   int64 `json:"seq"`
	Value T     `json:"value"`
}

func encode[T any](seq int64, v T) ([]byte, error) {
	return json.Marshal(record[T]{Seq: seq, Value: v})
}

func decode[T any](raw []byte) (record[T], error) {
	var r record[T]
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

// getter is implemented by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// load reads and decodes key. found is false when the key does not exist.
func load[T any](ctx context.Context, c getter, key string) (rec record[T], found bool, err error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	rec, err = decode[T](raw)
	return rec, err == nil, err
}

// loadMany fetches keys with MGET, skipping missing entries.
func loadMany[T any](ctx context.Context, c getter, keys []string) ([]record[T], error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]record[T], 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decode[T]([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// watch runs fn under WATCH on keys, retrying when another client
// modifies a watched key before EXEC.
func (s *Store) watch(ctx context.Context, op string, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxAttempts {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return apperr.StoreFailure(op, err)
	}
	return apperr.Conflict(op, "too much contention on %v", keys)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
