package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/sldlx/internal/formatter"
	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/repositories"
	"github.com/desertthunder/sldlx/internal/shared"
	"github.com/urfave/cli/v3"
)

// sessionSummary is the JSON shape of one history entry.
type sessionSummary struct {
	ID          string                `json:"id"`
	Sequence    int                   `json:"sequence"`
	Input       string                `json:"input"`
	Outcome     models.SessionOutcome `json:"outcome"`
	Total       int                   `json:"total"`
	Completed   int                   `json:"completed"`
	Failed      int                   `json:"failed"`
	Error       string                `json:"error,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Items       []models.SessionItem  `json:"items,omitempty"`
}

func summarize(s *models.SessionRecord) sessionSummary {
	return sessionSummary{
		ID:          s.ID(),
		Sequence:    s.Sequence(),
		Input:       s.Input(),
		Outcome:     s.Outcome(),
		Total:       s.TracksTotal(),
		Completed:   s.TracksCompleted(),
		Failed:      s.TracksFailed(),
		Error:       s.ErrorMessage(),
		StartedAt:   s.StartedAt(),
		CompletedAt: s.CompletedAt(),
		Items:       s.Items(),
	}
}

// HistoryList prints recorded sessions, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := repo.List(map[string]any{
		"limit":   int(cmd.Int("limit")),
		"outcome": cmd.String("outcome"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]sessionSummary, len(sessions))
		for i, s := range sessions {
			out[i] = summarize(s)
		}
		return r.writeJSON(out, true)
	}

	if len(sessions) == 0 {
		r.writePlain("No sessions recorded yet.\n")
		return nil
	}

	r.writePlain("%-5s %-17s %-10s %-9s %s\n", "#", "STARTED", "OUTCOME", "TRACKS", "INPUT")
	for _, s := range sessions {
		r.writePlain("%-5d %-17s %-10s %-9s %s\n",
			s.Sequence(),
			s.StartedAt().Local().Format("2006-01-02 15:04"),
			s.Outcome(),
			fmt.Sprintf("%d/%d", s.TracksCompleted(), s.TracksTotal()),
			truncate(s.Input(), 60))
	}
	return nil
}

// HistoryShow prints one session and its per-track outcome.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := findSession(repo, cmd.StringArg("session"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(summarize(session), true)
	}

	text, err := formatter.ExportToText(session)
	if err != nil {
		return err
	}
	_, err = r.output.Write(text)
	return err
}

// HistoryExport writes a report for one session.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseReportFormat(strings.ToLower(cmd.String("format")))
	if err != nil {
		return err
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := findSession(repo, cmd.StringArg("session"))
	if err != nil {
		return err
	}

	files, err := formatter.WriteReport(session, format, cmd.String("output"))
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	r.logger.Info("exported session", "session", session.ID(), "format", format)
	for _, f := range files {
		r.writePlain("✓ %s\n", f)
	}
	return nil
}

// HistoryDelete removes a session from history.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := findSession(repo, cmd.StringArg("session"))
	if err != nil {
		return err
	}
	if err := repo.Delete(session.ID()); err != nil {
		return err
	}

	r.writePlain("✓ Deleted session #%d\n", session.Sequence())
	return nil
}

// findSession resolves a session by sequence number or ID.
func findSession(repo *repositories.SessionRepository, ref string) (*models.SessionRecord, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return nil, fmt.Errorf("%w: session number or ID", shared.ErrMissingArgument)
	}
	if seq, err := strconv.Atoi(ref); err == nil {
		return repo.GetBySequence(seq)
	}
	return repo.Get(ref)
}
