package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps redis.Client but fails safe by swallowing connectivity errors.
// A nil *Client, or one built without a redis client, behaves as an always
// empty cache.
type Client struct {
	client *redis.Client
	prefix string
}

// New wraps an existing redis client. Keys are namespaced with prefix.
func New(rdb *redis.Client, prefix string) *Client {
	return &Client{client: rdb, prefix: prefix}
}

// Enabled reports whether a redis server backs this cache.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Client) key(k string) string {
	return c.prefix + k
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.Enabled() {
		return nil, nil
	}
	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		// redis.Nil and connectivity errors both read as a miss
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	_ = c.client.Set(ctx, c.key(key), value, ttl).Err()
	return nil
}

// Delete removes keys, ignoring redis errors.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	_ = c.client.Del(ctx, full...).Err()
	return nil
}

// GetJSON decodes a cached JSON value into dst. It reports false on a miss
// or on an undecodable entry.
func (c *Client) GetJSON(ctx context.Context, key string, dst any) bool {
	data, _ := c.Get(ctx, key)
	if data == nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// SetJSON encodes v and stores it with TTL.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	if payload, err := json.Marshal(v); err == nil {
		_ = c.Set(ctx, key, payload, ttl)
	}
}

// Version returns the counter stored at key. Missing keys and redis errors
// read as 0.
func (c *Client) Version(ctx context.Context, key string) int64 {
	if !c.Enabled() {
		return 0
	}
	v, err := c.client.Get(ctx, c.key(key)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// Bump increments the counter at versionKey and drops keys in the same
// transaction.
func (c *Client) Bump(ctx context.Context, versionKey string, keys ...string) {
	if !c.Enabled() {
		return
	}
	_, _ = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.key(versionKey))
		for _, k := range keys {
			pipe.Del(ctx, c.key(k))
		}
		return nil
	})
}

// SetJSONIfVersion stores v only while the counter at versionKey still
// equals version. A concurrent Bump aborts the write.
func (c *Client) SetJSONIfVersion(ctx context.Context, key, versionKey string, version int64, v any, ttl time.Duration) bool {
	if !c.Enabled() {
		return false
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return false
	}

	vk := c.key(versionKey)
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vk).Int64()
		if err != nil && !stderrors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(key), payload, ttl)
			return nil
		})
		stored = err == nil
		return err
	}, vk)
	return err == nil && stored
}
