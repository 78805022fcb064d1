package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the template when missing, initializes the history
// database and creates the download folder.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = shared.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("using existing config file", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}
	r.config = config
	r.configPath = configPath

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, _, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	version, _, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := os.MkdirAll(config.Download.Path, 0755); err != nil {
		return fmt.Errorf("failed to create download folder: %w", err)
	}

	r.writePlainHeader("sldlx setup complete")
	r.writePlain("Config:    %s\n", configPath)
	r.writePlain("Database:  %s (schema v%d)\n", config.Database.Path, version)
	r.writePlain("Downloads: %s\n", config.Download.Path)
	if !config.HasCredentials() {
		r.writePlainln("Next: sldlx settings set --username <name> --password <secret>")
	}
	return nil
}
