// Package app holds the dependency wiring shared by the server and worker
// binaries.
package app

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"flight-aggregator/internal/cache"
	"flight-aggregator/internal/config"
	"flight-aggregator/internal/database"
	"flight-aggregator/internal/supplier"
	"flight-aggregator/internal/supplier/tbo"
)

// NewCache prefers Redis and falls back to an in-process cache. The returned
// client is nil on fallback.
func NewCache(cfg *config.Config, log *logrus.Logger) (cache.Cache, *redis.Client) {
	rdb := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb == nil {
		log.WithField("addr", cfg.RedisAddr).Warn("redis unreachable, using in-memory cache")
		return cache.NewMemory(), nil
	}
	log.WithField("addr", cfg.RedisAddr).Info("connected to redis")
	return cache.NewRedis(rdb, "flight"), rdb
}

// NewRegistry builds every supplier adapter this deployment knows about.
// Which of them are searched is decided per request by supplier_credentials.
func NewRegistry(cfg *config.Config, db *database.DB, c cache.Cache, log *logrus.Logger) *supplier.Registry {
	return supplier.NewRegistry(
		tbo.New(db, c, log, tbo.Options{
			EndUserIP:      cfg.EndUserIP,
			Timeout:        cfg.SupplierTimeout,
			MaxReturnPairs: cfg.MaxReturnPairs,
			CredentialTTL:  cfg.CredentialTTL,
		}),
	)
}
