package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"teamtasks/backend/internal/config"
	"teamtasks/backend/internal/database"
	"teamtasks/backend/internal/logging"
)

// bootstrap loads the config with flag overrides applied, builds the logger
// and opens the database.
func bootstrap(cmd *cobra.Command) (*config.Config, zerolog.Logger, *database.DatabasePool, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("load config: %w", err)
	}
	if driver, _ := cmd.Flags().GetString("db-driver"); driver != "" {
		cfg.Database.Driver = driver
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	log := logging.New(cfg.Log, nil)

	gormLevel := logger.Warn
	if cfg.Log.Level == "debug" {
		gormLevel = logger.Info
	}
	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        gormLevel,
		Logger:          &log,
	})
	if err != nil {
		return nil, log, nil, err
	}

	log.Info().Str("driver", cfg.Database.Driver).Msg("database connected")
	return cfg, log, pool, nil
}
