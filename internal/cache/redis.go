package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 240 * time.Hour

// Options locates the redis instance behind the caches.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL applies to every key written; zero means ten days.
	TTL time.Duration
}

// Client is one redis connection shared by the verdict and opportunity
// caches built from it.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect dials redis and checks it answers before returning.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// jsonStore keeps JSON-encoded values under prefix:id with the client TTL.
type jsonStore[T any] struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func newStore[T any](c *Client, prefix string) jsonStore[T] {
	return jsonStore[T]{rdb: c.rdb, ttl: c.ttl, prefix: prefix}
}

func (s jsonStore[T]) key(id string) string {
	return s.prefix + ":" + id
}

func (s jsonStore[T]) get(ctx context.Context, id string) (*T, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", s.key(id), err)
	}
	return &v, true, nil
}

func (s jsonStore[T]) set(ctx context.Context, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(id), data, s.ttl).Err()
}
