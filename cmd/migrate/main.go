// File: cmd/migrate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"telegram-ai-autoposter/internal/config"
	pg "telegram-ai-autoposter/internal/infra/db/postgres"
	"telegram-ai-autoposter/internal/infra/db/sqlite"
	"telegram-ai-autoposter/internal/infra/logging"
)

// Applies the embedded schema for the configured database driver.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, false)
	ctx := context.Background()

	switch cfg.Database.Driver {
	case "sqlite":
		// Open applies the schema.
		db, err := sqlite.Open(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite migrate failed")
		}
		_ = db.Close()
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres migrate failed")
		}
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("schema applied")
}
