package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SettingsShow prints the active settings with the password masked.
func (r *Runner) SettingsShow(ctx context.Context, cmd *cli.Command) error {
	cfg := *r.config
	if cfg.Credentials.Soulseek.Password != "" {
		cfg.Credentials.Soulseek.Password = "********"
	}

	if cmd.Bool("json") {
		return r.writeJSON(cfg, true)
	}

	username := cfg.Credentials.Soulseek.Username
	if username == "" {
		username = "(not set)"
	}

	r.writePlainHeader("Settings")
	r.writePlain("Config file:  %s\n", r.configPath)
	r.writePlain("Username:     %s\n", username)
	r.writePlain("Password:     %s\n", cfg.Credentials.Soulseek.Password)
	r.writePlain("Folder:       %s\n", cfg.Download.Path)
	r.writePlain("Format:       %s\n", cfg.Download.Format)
	r.writePlain("Bitrate:      %d kbps\n", cfg.Download.Bitrate)
	r.writePlain("Concurrency:  %d\n", cfg.Engine.Concurrency)
	r.writePlain("Poll:         %s\n", cfg.PollInterval())
	r.writePlain("History:      %s\n", cfg.Database.Path)
	r.writePlain("Status addr:  %s\n", cfg.Addr())
	r.writePlain("Logs:         %s (%s, %d days)\n", cfg.Logging.Dir, cfg.Logging.Level, cfg.Logging.RetentionDays)
	return nil
}

// SettingsSet applies the given flags to the config and saves it.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	if r.configPath == "" {
		return fmt.Errorf("%w: no config file path", shared.ErrMissingConfig)
	}

	cfg := *r.config
	var changed []string

	if cmd.IsSet("username") {
		cfg.Credentials.Soulseek.Username = strings.TrimSpace(cmd.String("username"))
		changed = append(changed, "username")
	}
	if cmd.IsSet("password") {
		cfg.Credentials.Soulseek.Password = cmd.String("password")
		changed = append(changed, "password")
	}
	if cmd.IsSet("path") {
		cfg.Download.Path = cmd.String("path")
		changed = append(changed, "path")
	}
	if cmd.IsSet("format") {
		cfg.Download.Format = strings.ToUpper(cmd.String("format"))
		changed = append(changed, "format")
	}
	if cmd.IsSet("bitrate") {
		cfg.Download.Bitrate = int(cmd.Int("bitrate"))
		changed = append(changed, "bitrate")
	}
	if cmd.IsSet("concurrency") {
		cfg.Engine.Concurrency = int(cmd.Int("concurrency"))
		changed = append(changed, "concurrency")
	}

	if len(changed) == 0 {
		return fmt.Errorf("%w: pass at least one of --username, --password, --path, --format, --bitrate, --concurrency", shared.ErrMissingArgument)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(r.configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.config = &cfg

	r.logger.Info("settings updated", "fields", changed, "path", r.configPath)
	r.writePlain("✓ Updated %s\n", strings.Join(changed, ", "))
	return nil
}
