package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sldlx/internal/repositories"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/desertthunder/sldlx/internal/tasks"
	"github.com/desertthunder/sldlx/internal/worker"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	factory    worker.Factory
	clock      tasks.Clock
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Factory    worker.Factory // Default: the in-process simulator
	Clock      tasks.Clock
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Factory == nil {
		opts.Factory = worker.SimulatorFactory(worker.DefaultSimulatorOptions())
	}
	if opts.Clock == nil {
		opts.Clock = tasks.RealClock{}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		factory:    opts.Factory,
		clock:      opts.Clock,
	}
}

// Load reads the configuration named by the global --config flag before any command runs.
//
// A missing or unreadable file falls back to defaults so first-run commands still work.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
		r.config = shared.LoadOrDefault(path)
	}

	level := r.config.Logging.Level
	if override := cmd.String("log-level"); override != "" {
		level = override
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, downloadCommand, tuiCommand, settingsCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openHistory opens the session history database and runs pending migrations.
func (r *Runner) openHistory() (*sql.DB, *repositories.SessionRepository, error) {
	db, err := shared.OpenHistoryDatabase(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, repositories.NewSessionRepository(db), nil
}

// newReconciler builds a reconciler recording into rec (which may be nil).
func (r *Runner) newReconciler(cfg *shared.Config, rec tasks.Recorder, logger *log.Logger) *tasks.Reconciler {
	return tasks.NewReconciler(tasks.ReconcilerOpts{
		Config:   cfg,
		Factory:  r.factory,
		Clock:    r.clock,
		Recorder: rec,
		Logger:   logger,
	})
}

// awaitWorker gives a stopped worker the grace timeout to return before the command exits.
func (r *Runner) awaitWorker(rec *tasks.Reconciler) {
	ctx, cancel := context.WithTimeout(context.Background(), rec.Config().GraceTimeout())
	defer cancel()
	if err := rec.Wait(ctx); err != nil {
		r.logger.Warn("downloader did not stop in time", "timeout", rec.Config().GraceTimeout())
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
