package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"finance-agent/internal/models"
)

// RedisStore shares answers across instances. Entries expire through PX; a set
// per ticker lists the fingerprints that mention it.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) entryKey(fp string) string      { return s.prefix + "entry:" + fp }
func (s *RedisStore) entityKey(ticker string) string { return s.prefix + "entity:" + ticker }

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	raw, err := s.client.Get(ctx, s.entryKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) Set(ctx context.Context, entry models.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	ttl := time.Duration(entry.TTL) * time.Millisecond

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(entry.Fingerprint), raw, ttl)
		for _, ticker := range entry.Entities {
			pipe.SAdd(ctx, s.entityKey(ticker), entry.Fingerprint)
			pipe.PExpire(ctx, s.entityKey(ticker), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

func (s *RedisStore) InvalidateEntity(ctx context.Context, ticker string) (int, error) {
	fps, err := s.client.SMembers(ctx, s.entityKey(ticker)).Result()
	if err != nil {
		return 0, fmt.Errorf("read entity index: %w", err)
	}

	keys := make([]string, 0, len(fps)+1)
	for _, fp := range fps {
		keys = append(keys, s.entryKey(fp))
	}
	keys = append(keys, s.entityKey(ticker))

	if len(fps) == 0 {
		return 0, s.client.Del(ctx, keys...).Err()
	}

	// Del counts the index key too when it exists.
	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete cache entries: %w", err)
	}
	if deleted > 0 {
		deleted--
	}
	return int(deleted), nil
}

// PurgeExpired is a no-op: Redis expires entries on its own.
func (s *RedisStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.entryKey("*"), 100).Result()
		if err != nil {
			return 0, fmt.Errorf("scan cache entries: %w", err)
		}
		total += int64(len(keys))
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}
