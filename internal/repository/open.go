package repository

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"todoapp/internal/config"
	"todoapp/internal/db"
)

// redisKeyPrefix namespaces the KV backend's keys away from the cache and
// rate limiter entries sharing the same server.
const redisKeyPrefix = "todo:"

// Open builds the Store selected by cfg.Backend. rdb is required only by the
// redis backend.
func Open(cfg config.StorageConfig, rdb *redis.Client) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.DataDir)
	case config.BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis backend: no redis client configured")
		}
		return NewRedisStore(rdb, redisKeyPrefix), nil
	case config.BackendMySQL:
		gdb, err := db.NewMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return NewGormStore(gdb)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
