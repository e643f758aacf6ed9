// Package valkey implements the shared cache on Valkey (or any RESP3 Redis).
package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("valkey: cache miss")

const defaultPrefix = "gpspath:"

// Options configures New.
type Options struct {
	Addr   string
	Prefix string // namespace for every key; defaults to "gpspath:"
	// LocalTTL enables server-assisted client-side caching of Get results.
	// Cached trajectories never change under a key, so a long TTL is safe.
	LocalTTL time.Duration
}

// Cache implements ports.CacheService.
type Cache struct {
	client   valkey.Client
	prefix   string
	localTTL time.Duration
}

// New connects to Valkey.
func New(opts Options) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{opts.Addr},
		DisableCache: opts.LocalTTL <= 0,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Cache{client: client, prefix: prefix, localTTL: opts.LocalTTL}, nil
}

func (c *Cache) key(k string) string { return c.prefix + k }

// Get returns the value stored under key, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var res valkey.ValkeyResult
	if c.localTTL > 0 {
		res = c.client.DoCache(ctx, c.client.B().Get().Key(c.key(key)).Cache(), c.localTTL)
	} else {
		res = c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build())
	}
	data, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrMiss
	}
	return data, err
}

// Set stores value for ttlSeconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	cmd := c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build()).Error()
}

// Ping checks the server is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
