package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dietexpert/backend/internal/config"
	"dietexpert/backend/internal/db"
	"dietexpert/backend/internal/logger"
)

// Open connects the backend selected by cfg.StoreDriver. Postgres schemas are
// created when AutoMigrate is set and always validated before use.
func Open(ctx context.Context, cfg config.Config, log *logger.Logger) (Store, error) {
	log = logger.OrNop(log)

	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		st, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("using sqlite store", "path", cfg.SQLitePath)
		return st, nil

	case config.StoreDriverPostgres:
		pool, err := db.Connect(ctx, db.OptionsFromConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("database connect failed: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		st := NewPostgres(pool)
		if cfg.AutoMigrate {
			if err := st.EnsureSchema(ctx); err != nil {
				st.Close()
				return nil, fmt.Errorf("apply schema: %w", err)
			}
			log.Info("database schema applied")
		}
		if err := st.ValidateSchema(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("database schema mismatch: %w", err)
		}
		log.Info("using postgres store")
		return st, nil
	}
	return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
}
