package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

// unlockScript deletes the lock only while it still belongs to owner.
var unlockScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local ok, lock = pcall(cjson.decode, raw)
if ok and lock["ownerInstanceId"] == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is the KV artifact store and the per-day lock backend.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var (
	_ ports.KVStore = (*RedisStore)(nil)
	_ ports.Locker  = (*RedisStore)(nil)
)

// NewRedisStore connects to url (redis://...) or a bare host:port and pings it.
func NewRedisStore(ctx context.Context, url string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}
	return NewRedisStoreFromClient(client, logger), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger.With("component", "redis")}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// TryLock places the lock with SET NX; the key expires with ttl.
func (r *RedisStore) TryLock(ctx context.Context, key string, lock domain.Lock, ttl time.Duration) (bool, domain.Lock, error) {
	payload, err := json.Marshal(lock)
	if err != nil {
		return false, domain.Lock{}, fmt.Errorf("encode lock: %w", err)
	}

	ok, err := r.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return false, domain.Lock{}, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if ok {
		return true, lock, nil
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller may retry
		return false, domain.Lock{}, nil
	}
	if err != nil {
		return false, domain.Lock{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	var held domain.Lock
	if err := json.Unmarshal(raw, &held); err != nil {
		r.logger.Warn("undecodable lock value", "key", key, "error", err)
	}
	return false, held, nil
}

// Unlock deletes the lock when it is still owned by owner.
func (r *RedisStore) Unlock(ctx context.Context, key, owner string) error {
	if err := unlockScript.Run(ctx, r.client, []string{key}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	return nil
}
