package main

import (
	"context"
	"fmt"
	"os"

	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/blue-creative/db-rb/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded default configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	r.writePlain("%s Config written to %s\n", ui.Styles.OK("✓"), path)
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" && r.config == nil {
		if _, err := os.Stat(r.configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	config, err := r.loadConfig()
	if err != nil {
		return err
	}

	lock, err := shared.LockDatabase(config.Database.Path)
	if err != nil {
		return err
	}
	defer shared.UnlockDatabase(lock)

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.writePlain("%s Database ready at %s\n", ui.Styles.OK("✓"), config.Database.Path)
	return nil
}

// SetupRollback rolls back the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(config.Database.Path); err != nil {
		return fmt.Errorf("%w: no database at %s", shared.ErrInvalidInput, config.Database.Path)
	}

	lock, err := shared.LockDatabase(config.Database.Path)
	if err != nil {
		return err
	}
	defer shared.UnlockDatabase(lock)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.writePlain("%s Rolled back the latest migration on %s\n", ui.Styles.Warn("↺"), config.Database.Path)
	return nil
}
