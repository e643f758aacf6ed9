// Package memcache is an in-process ports.CacheService used when Valkey is
// not configured or unreachable.
package memcache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrMiss is returned by Get for absent or expired keys.
var ErrMiss = errors.New("cache miss")

type entry struct {
	value   []byte
	expires time.Time
}

// Cache is a size-bounded LRU. Entries expire after the per-key TTL passed
// to Set, capped by the cache-wide TTL given to New.
type Cache struct {
	lru *expirable.LRU[string, entry]
}

// New creates a cache holding at most size entries for at most ttl.
func New(size int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, entry](size, nil, ttl)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.lru.Remove(key)
		return nil, ErrMiss
	}
	return e.value, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	e := entry{value: value}
	if ttlSeconds > 0 {
		e.expires = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len reports the number of live entries.
func (c *Cache) Len() int { return c.lru.Len() }
