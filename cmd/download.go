package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/desertthunder/sldlx/internal/formatter"
	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/repositories"
	"github.com/desertthunder/sldlx/internal/server"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/desertthunder/sldlx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// recordWait bounds how long Download waits for the finished session to be recorded.
const recordWait = 6 * time.Second

// sessionCapture forwards finished sessions to the history store and hands the last one to
// the command for reporting.
type sessionCapture struct {
	next     tasks.Recorder
	recorded chan *models.SessionRecord
}

func newSessionCapture(next tasks.Recorder) *sessionCapture {
	return &sessionCapture{next: next, recorded: make(chan *models.SessionRecord, 1)}
}

func (c *sessionCapture) Record(ctx context.Context, session *models.SessionRecord) error {
	var err error
	if c.next != nil {
		err = c.next.Record(ctx, session)
	}
	select {
	case c.recorded <- session:
	default:
	}
	return err
}

// Download runs one batch download in the foreground, printing status changes until the session
// ends. SIGINT and SIGTERM stop the run.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("input")
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: input URL", shared.ErrMissingArgument)
	}

	cfg := *r.config
	if cmd.IsSet("path") {
		cfg.Download.Path = cmd.String("path")
	}
	if cmd.IsSet("format") {
		cfg.Download.Format = strings.ToUpper(cmd.String("format"))
	}
	if cmd.IsSet("bitrate") {
		cfg.Download.Bitrate = int(cmd.Int("bitrate"))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var reportFormat formatter.ReportFormat
	if name := cmd.String("report"); name != "" {
		f, err := formatter.ParseReportFormat(name)
		if err != nil {
			return err
		}
		reportFormat = f
	}

	var history tasks.Recorder
	if !cmd.Bool("no-history") {
		db, repo, err := r.openHistory()
		if err != nil {
			r.logger.Warn("session history disabled", "error", err)
		} else {
			defer db.Close()
			history = repositories.NewHistoryAdapter(repo)
		}
	}
	capture := newSessionCapture(history)

	rec := r.newReconciler(&cfg, capture, r.logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rec.Start(input); err != nil {
		if errors.Is(err, shared.ErrMissingCredentials) {
			return fmt.Errorf("%w: run 'sldlx settings set --username <name> --password <secret>'", err)
		}
		return err
	}

	if cmd.Bool("serve") {
		srvCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := server.Serve(srvCtx, cfg.Addr(), server.NewStatusRouter(rec, r.logger), r.logger, nil); err != nil {
				r.logger.Error("status server stopped", "error", err)
			}
		}()
	}

	final := r.follow(ctx, rec)
	r.awaitWorker(rec)

	var session *models.SessionRecord
	select {
	case session = <-capture.recorded:
	case <-time.After(recordWait):
		r.logger.Warn("session was not recorded in time")
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(final, true); err != nil {
			return err
		}
	} else {
		r.writeSummary(final)
	}

	if reportFormat != "" && session != nil {
		files, err := formatter.WriteReport(session, reportFormat, cmd.String("report-path"))
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		for _, f := range files {
			r.writePlain("Report: %s\n", f)
		}
	}

	if session != nil && session.Outcome() == models.OutcomeFailed {
		return fmt.Errorf("session failed: %s", session.ErrorMessage())
	}
	return nil
}

// follow prints snapshots until the session ends, stopping it when ctx is cancelled.
func (r *Runner) follow(ctx context.Context, rec *tasks.Reconciler) tasks.Snapshot {
	printer := newProgressPrinter(r)
	done := rec.Done()
	updates := rec.Updates()
	interrupted := ctx.Done()

	for {
		select {
		case snap := <-updates:
			printer.print(snap)
		case <-done:
			snap := rec.Snapshot()
			printer.print(snap)
			return snap
		case <-interrupted:
			interrupted = nil
			r.logger.Info("stopping download")
			if err := rec.Stop(); err != nil && !errors.Is(err, shared.ErrNotRunning) {
				r.logger.Warn("failed to stop download", "error", err)
			}
		}
	}
}

// progressPrinter writes one line per status line change and per item status change.
type progressPrinter struct {
	r      *Runner
	status string
	items  map[string]models.Status
}

func newProgressPrinter(r *Runner) *progressPrinter {
	return &progressPrinter{r: r, items: make(map[string]models.Status)}
}

func (p *progressPrinter) print(snap tasks.Snapshot) {
	if snap.Status != p.status {
		p.status = snap.Status
		p.r.writePlain("» %s\n", snap.Status)
	}

	total := len(snap.Items)
	for _, it := range snap.Items {
		if prev, ok := p.items[it.TrackID]; ok && prev == it.Status {
			continue
		}
		p.items[it.TrackID] = it.Status
		if it.Status == models.StatusWaiting {
			continue
		}
		line := fmt.Sprintf("  [%d/%d] %s: %s", it.Position+1, total, it.Name, it.StatusText)
		if it.Status == models.StatusCompleted && it.Detail != "" {
			line += formatter.DetailSeparator + it.Detail
		}
		p.r.writePlain("%s\n", line)
	}
}

func (r *Runner) writeSummary(snap tasks.Snapshot) {
	r.writePlain("\n")
	r.writePlainHeader(snap.Status)
	for _, it := range snap.Items {
		r.writePlain("%3d. %-48s %s\n", it.Position+1, truncate(it.Name, 48), it.StatusText)
		if it.Path != "" {
			r.writePlain("     %s\n", it.Path)
		}
	}
	m := snap.Metrics
	r.writePlain("\n%d/%d downloaded, %d failed (%.0f%%)\n", m.Completed, m.Total, m.Failed, m.Progress)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
