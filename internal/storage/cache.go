package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"
)

// Cache is a byte cache with per-entry expiry. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// ErrNoPrefix is returned when clearing a redis cache without a key prefix.
var ErrNoPrefix = errors.New("redis cache has no key prefix")

// BoltCache keeps cache entries in the store's queries bucket.
type BoltCache struct {
	db  *bolt.DB
	now func() time.Time
}

// QueryCache returns the store-backed query cache.
func (s *Store) QueryCache() *BoltCache {
	return &BoltCache{db: s.db, now: time.Now}
}

func (c *BoltCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var entry cachedEntry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(queriesBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}
	if !found || (!entry.ExpiresAt.IsZero() && !c.now().Before(entry.ExpiresAt)) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (c *BoltCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := cachedEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = c.now().Add(ttl)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(queriesBucket), []byte(key), entry)
	})
}

// Purge drops expired entries and returns how many were removed.
func (c *BoltCache) Purge() (int, error) {
	removed := 0
	now := c.now()
	err := c.db.Update(func(tx *bolt.Tx) error {
		cur := tx.Bucket(queriesBucket).Cursor()
		for k, v := cur.First(); k != nil; {
			var entry cachedEntry
			if err := json.Unmarshal(v, &entry); err != nil || (!entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt)) {
				if err := cur.Delete(); err != nil {
					return err
				}
				removed++
				k, v = cur.Seek(k)
				continue
			}
			k, v = cur.Next()
		}
		return nil
	})
	return removed, err
}

// Clear drops every entry.
func (c *BoltCache) Clear(_ context.Context) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(queriesBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("clearing cache: %w", err)
		}
		_, err := tx.CreateBucket(queriesBucket)
		return err
	})
}

const redisScanCount = 100

// RedisCache shares cache entries between portal clients.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to addr. Keys are stored under prefix.
func NewRedisCache(addr, prefix string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{client: client, prefix: prefix}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes every key under the cache prefix. Without a prefix the
// keys cannot be told apart from other data, so nothing is deleted.
func (c *RedisCache) Clear(ctx context.Context) error {
	if c.prefix == "" {
		return ErrNoPrefix
	}
	var keys []string
	iter := c.client.Scan(ctx, 0, c.prefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	for len(keys) > 0 {
		n := min(len(keys), redisScanCount)
		if err := c.client.Del(ctx, keys[:n]...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		keys = keys[n:]
	}
	return nil
}
