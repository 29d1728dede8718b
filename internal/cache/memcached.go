package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	gojson "github.com/goccy/go-json"
)

// maxKeyLen leaves room for the prefix under memcached's 250 byte key limit.
const maxKeyLen = 200

// NewMemcachedClient creates a memcached client. addrs is a comma-separated
// list (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns use package defaults if zero.
func NewMemcachedClient(addrs string, timeout time.Duration, maxIdleConns int) *memcache.Client {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return client
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// MemcachedCache implements Cache on memcached. Values are JSON encoded.
// Several caches can share one client with distinct prefixes.
type MemcachedCache[T any] struct {
	client *memcache.Client
	prefix string
}

// NewMemcachedCache wraps client; keys are stored as prefix + ":" + key.
func NewMemcachedCache[T any](client *memcache.Client, prefix string) *MemcachedCache[T] {
	return &MemcachedCache[T]{client: client, prefix: prefix + ":"}
}

// key escapes spaces and non-ASCII, which memcached rejects, and hashes
// keys that would exceed the length limit.
func (c *MemcachedCache[T]) key(k string) string {
	escaped := url.QueryEscape(k)
	if len(escaped) > maxKeyLen {
		sum := sha256.Sum256([]byte(k))
		escaped = hex.EncodeToString(sum[:])
	}
	return c.prefix + escaped
}

// Get returns false, nil on a miss and false, err on a backend error.
func (c *MemcachedCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if ctx.Err() != nil {
		return zero, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return zero, false, nil
		}
		return zero, false, err
	}
	var data T
	if err := gojson.Unmarshal(item.Value, &data); err != nil {
		return zero, false, err
	}
	return data, true, nil
}

// Set stores value with ttl rounded down to whole seconds.
func (c *MemcachedCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := gojson.Marshal(value)
	if err != nil {
		return err
	}
	expSec := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600 // fallback 1h if invalid
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache[T]) Ping() error {
	return c.client.Ping()
}
