// Package rediskv stores the local fallback collections in Redis so several
// server instances can share one fallback copy.
package rediskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"gymdesk/internal/adapters/storage"
)

// DefaultPrefix namespaces collection keys.
const DefaultPrefix = "gymdesk:"

// KV implements storage.KV on a Redis client.
type KV struct {
	client redis.UniversalClient
	prefix string
}

// Compile-time check that *KV satisfies storage.KV.
var _ storage.KV = (*KV)(nil)

// New creates a KV. An empty prefix uses DefaultPrefix.
// PRE: client is connected
func New(client redis.UniversalClient, prefix string) *KV {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KV{client: client, prefix: prefix}
}

// Get returns the value under key, or nil when the key is absent.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := k.client.Get(ctx, k.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set replaces the value under key. Collections never expire.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := k.client.Set(ctx, k.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity for the health endpoint.
func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx).Err()
}
