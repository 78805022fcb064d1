package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/sldlx/internal/repositories"
	"github.com/desertthunder/sldlx/internal/server"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/desertthunder/sldlx/internal/tasks"
	"github.com/desertthunder/sldlx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closeLog, err := shared.NewFileLogger(r.config.Logging.Dir, r.config.Logging.RetentionDays)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closeLog()
	shared.SetLogLevel(fileLogger, r.config.Logging.Level)
	r.SetLogger(fileLogger)

	var history tasks.Recorder
	db, repo, err := r.openHistory()
	if err != nil {
		r.logger.Warn("session history disabled", "error", err)
	} else {
		defer db.Close()
		history = repositories.NewHistoryAdapter(repo)
	}

	rec := r.newReconciler(r.config, history, r.logger)

	if cmd.Bool("serve") {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := server.Serve(srvCtx, r.config.Addr(), server.NewStatusRouter(rec, r.logger), r.logger, nil); err != nil {
				r.logger.Error("status server stopped", "error", err)
			}
		}()
	}

	model := ui.NewModel(rec, r.configPath)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, runErr := p.Run()

	if err := rec.Stop(); err == nil {
		r.logger.Info("stopped running session on exit")
	} else if !errors.Is(err, shared.ErrNotRunning) {
		r.logger.Warn("failed to stop session on exit", "error", err)
	}
	r.awaitWorker(rec)

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}
