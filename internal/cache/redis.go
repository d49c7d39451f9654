package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces snapshot keys.
const DefaultRedisPrefix = "cadence:snapshot:"

// Redis stores snapshots as JSON strings with a TTL, so several engine
// processes can share last-known-good data.
type Redis struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client. A ttl of zero stores snapshots without expiry.
func NewRedis(client goredis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: DefaultRedisPrefix, ttl: ttl}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// key hashes the filter key; filter keys are JSON and can be long.
func (r *Redis) key(filterKey string) string {
	sum := sha256.Sum256([]byte(filterKey))
	return r.prefix + hex.EncodeToString(sum[:])
}

// Save replaces the snapshot for key.
func (r *Redis) Save(ctx context.Context, key string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), data, r.ttl).Err()
}

// Load returns the snapshot for key if present.
func (r *Redis) Load(ctx context.Context, key string) (Snapshot, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}
