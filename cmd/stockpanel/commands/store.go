package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/stockpanel/internal/config"
	"github.com/dyluth/stockpanel/internal/printer"
	"github.com/dyluth/stockpanel/internal/sqlstore"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

// openStore connects the configured backend and verifies it answers.
func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	var (
		store ledger.Store
		err   error
	)
	switch cfg.Store.Driver {
	case config.DriverRedis:
		var opts *redis.Options
		opts, err = redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis_url: %w", err)
		}
		store, err = ledger.NewClient(opts, cfg.Instance)
	case config.DriverSQLite:
		store, err = sqlstore.Open(ctx, sqlstore.SQLite, cfg.Store.DSN)
	case config.DriverPostgres:
		store, err = sqlstore.Open(ctx, sqlstore.Postgres, cfg.Store.DSN)
	default:
		err = fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, printer.ErrorWithContext(
			"store unreachable",
			fmt.Sprintf("Could not reach the %s store: %v", cfg.Store.Driver, err),
			map[string]string{"Instance": cfg.Instance, "Driver": cfg.Store.Driver},
			[]string{"Check store.redis_url / store.dsn in stockpanel.yml"},
		)
	}
	return store, nil
}

// openRedis connects the Redis used by the gateway bridge.
func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.Store.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis_url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Store.RedisURL),
			map[string]string{"Instance": cfg.Instance},
			[]string{"The gateway bridge needs Redis even when the store is SQL-backed"},
		)
	}
	return rdb, nil
}
