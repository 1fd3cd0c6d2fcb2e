package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/yourusername/quiz-engine/internal/config"
	"github.com/yourusername/quiz-engine/pkg/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{database.MigrateUp, database.MigrateDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := database.MigrateUp
			if len(args) == 1 {
				direction = args[0]
			}
			return runMigrations(*configPath, direction)
		},
	}
}

func runMigrations(configPath, direction string) error {
	if direction != database.MigrateUp && direction != database.MigrateDown {
		return fmt.Errorf("unknown migration direction %q", direction)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != config.StorageDriverPostgres {
		return fmt.Errorf("migrations require postgres storage, got %q", cfg.Storage.Driver)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), logger.Warn)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	if err := database.MigrateDB(db, cfg.Database.MigrationsPath, direction); err != nil {
		return err
	}
	log.Printf("[Migrate] Готово: %s", direction)
	return nil
}
