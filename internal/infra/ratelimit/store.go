// Package ratelimit provides the storage shared by the fiber limiters.
package ratelimit

import (
	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"md2pdf/internal/infra/logging"
)

// RedisConfig selects the Redis instance used for limiter counters.
type RedisConfig struct {
	Addr string
	DB   int
}

// NewStore returns a Redis-backed store when Addr is set and falls back to
// process memory otherwise, or when the Redis store cannot be created.
func NewStore(cfg RedisConfig) (store fiber.Storage) {
	if cfg.Addr == "" {
		logging.Info("Using in-memory rate limit store")
		return memoryStorage.New()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
			store = memoryStorage.New()
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Addr},
		Database: cfg.DB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.Addr, "db", cfg.DB)
	return store
}
