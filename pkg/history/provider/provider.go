// Package provider builds the configured history driver.
package provider

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/papercomputeco/murmur/pkg/config"
	"github.com/papercomputeco/murmur/pkg/dotdir"
	"github.com/papercomputeco/murmur/pkg/history"
	"github.com/papercomputeco/murmur/pkg/history/inmemory"
	"github.com/papercomputeco/murmur/pkg/history/postgres"
	"github.com/papercomputeco/murmur/pkg/history/redis"
	"github.com/papercomputeco/murmur/pkg/history/sqlite"
)

const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Redis    = "redis"
	None     = "none"

	defaultDBName = "history.db"
)

// New opens the driver selected by cfg.Provider. It returns a nil driver
// when history is disabled. configDir overrides the dot directory used for
// the default SQLite path.
func New(ctx context.Context, cfg config.HistoryConfig, configDir string) (history.Driver, error) {
	switch cfg.Provider {
	case None:
		return nil, nil
	case Memory:
		return inmemory.NewDriver(), nil
	case "", SQLite:
		path, err := SQLitePath(cfg.SQLitePath, configDir)
		if err != nil {
			return nil, err
		}
		return sqlite.NewDriver(ctx, path)
	case Postgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("history.postgres_dsn is required for the postgres provider")
		}
		return postgres.NewDriver(ctx, cfg.PostgresDSN)
	case Redis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("history.redis_addr is required for the redis provider")
		}
		return redis.NewDriver(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown history provider %q", cfg.Provider)
	}
}

// SQLitePath resolves the SQLite database file: override wins, otherwise
// history.db inside the murmur dot directory, created if needed.
func SQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	dir, err := dotdir.NewManager().Ensure(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving history directory: %w", err)
	}
	return filepath.Join(dir, defaultDBName), nil
}
