package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"notes-api/internal/config"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Store is the shared cache backend, in memory or redis depending on CACHE_TYPE.
type Store struct {
	*cache.Cache[any]
	redis *redis.Client
}

func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.CacheType {
	case config.CacheTypeRedis:
		return NewRedisStore(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	default:
		return NewMemoryStore(), nil
	}
}

func NewMemoryStore() *Store {
	client := gocache.New(gocache.NoExpiration, 10*time.Minute)
	return &Store{Cache: cache.New[any](go_store.NewGoCache(client))}
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint: errcheck
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info("Successfully connected to Redis", "addr", addr)
	return &Store{Cache: cache.New[any](redis_store.NewRedis(rdb)), redis: rdb}, nil
}

// Health checks the redis connection; the memory store is always healthy.
func (s *Store) Health(ctx context.Context) error {
	if s == nil || s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if s != nil && s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

// getJSON decodes a cached value. The memory store hands back the []byte
// that was stored, redis returns a string.
func getJSON(ctx context.Context, s *Store, key string, dest any) bool {
	value, err := s.Get(ctx, key)
	if err != nil {
		return false
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		log.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func setJSON(ctx context.Context, s *Store, key string, value any, options ...store.Option) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.Set(ctx, key, data, options...)
}

// listQueryKey makes equal query strings map to the same key regardless of parameter order.
func listQueryKey(values url.Values) string {
	return values.Encode()
}
