// Package cache is a thin JSON cache over Redis, used to park coaching
// session state between requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// CacheConfig addresses one Redis instance.
type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheService stores JSON-encoded values with a TTL.
type CacheService struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("cache: bad address %q:%d", cfg.Host, cfg.Port)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}

	return &CacheService{client: client, logger: logger}, nil
}

// Get unmarshals the value at key into dest. ErrMiss when absent.
func (s *CacheService) Get(ctx context.Context, key string, dest any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt entry is as good as absent; drop it so the caller
		// rebuilds instead of failing on every request.
		s.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = s.client.Del(ctx, key).Err()
		return ErrMiss
	}
	return nil
}

// Set stores value at key for ttl. A non-positive ttl means no expiry.
func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Del removes a key. Deleting an absent key is not an error.
func (s *CacheService) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache del %s: %w", key, err)
	}
	return nil
}

func (s *CacheService) Close() error {
	return s.client.Close()
}
