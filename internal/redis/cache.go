package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// genGrace keeps a generation counter alive well past the values stored under it.
const genGrace = 24 * time.Hour

// JSONCache stores values of T as JSON under a per-doctor, per-day key.
// Every key carries a generation; Invalidate bumps it, so a value loaded
// before the bump and written after it is never read back.
type JSONCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewJSONCache[T any](client *redis.Client, prefix string, ttl time.Duration) *JSONCache[T] {
	return &JSONCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *JSONCache[T]) genKey(doctorID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s:gen:%s:%s", c.prefix, doctorID, day.Format(time.DateOnly))
}

func (c *JSONCache[T]) key(doctorID uuid.UUID, day time.Time, gen int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", c.prefix, doctorID, day.Format(time.DateOnly), gen)
}

// Generation returns the current generation, 0 if none was recorded.
func (c *JSONCache[T]) Generation(ctx context.Context, doctorID uuid.UUID, day time.Time) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(doctorID, day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache generation: %w", err)
	}
	return gen, nil
}

// Get reports a miss as (nil, nil).
func (c *JSONCache[T]) Get(ctx context.Context, doctorID uuid.UUID, day time.Time, gen int64) (*T, error) {
	raw, err := c.client.Get(ctx, c.key(doctorID, day, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &v, nil
}

func (c *JSONCache[T]) Set(ctx context.Context, doctorID uuid.UUID, day time.Time, gen int64, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(doctorID, day, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate moves the key to a new generation and drops the previous value.
func (c *JSONCache[T]) Invalidate(ctx context.Context, doctorID uuid.UUID, day time.Time) error {
	genKey := c.genKey(doctorID, day)
	gen, err := c.client.Incr(ctx, genKey).Result()
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}

	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, genKey, c.ttl+genGrace)
		pipe.Del(ctx, c.key(doctorID, day, gen-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
