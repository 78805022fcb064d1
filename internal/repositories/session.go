package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
)

const sessionColumns = `
	id, sequence, input, outcome, total, completed, failed, error,
	started_at, finished_at, created_at, updated_at, deleted_at
`

// SessionRepository implements models.Repository[*models.SessionRecord] for download history.
//
// Sessions are soft deleted. Item rows belong to their session and are replaced wholesale on update.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session and its items. An ID already set on the record is kept.
func (r *SessionRepository) Create(session *models.SessionRecord) error {
	return r.CreateContext(context.Background(), session)
}

// CreateContext is [SessionRepository.Create] bound to ctx.
func (r *SessionRepository) CreateContext(ctx context.Context, session *models.SessionRecord) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	session.SetSequence(sequence)

	if session.ID() == "" {
		session.SetID(shared.GenerateID())
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sessions (
			id, sequence, input, outcome, total, completed, failed, error,
			started_at, finished_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		session.ID(),
		sequence,
		session.Input(),
		string(session.Outcome()),
		session.TracksTotal(),
		session.TracksCompleted(),
		session.TracksFailed(),
		session.ErrorMessage(),
		session.StartedAt(),
		session.CompletedAt(),
		session.CreatedAt(),
		session.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := insertItems(ctx, tx, session.ID(), session.Items()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Get retrieves a session and its items by ID, excluding soft-deleted sessions
func (r *SessionRepository) Get(id string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ? AND deleted_at IS NULL`

	session, err := r.scanOne(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}
	return session, r.loadItems(session)
}

// GetBySequence retrieves a session by its human-readable sequence number
func (r *SessionRepository) GetBySequence(sequence int) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE sequence = ? AND deleted_at IS NULL`

	session, err := r.scanOne(r.db.QueryRow(query, sequence))
	if err != nil {
		return nil, err
	}
	return session, r.loadItems(session)
}

// Update rewrites the session counters and replaces its items
func (r *SessionRepository) Update(session *models.SessionRecord) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	session.SetUpdatedAt(time.Now())

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE sessions
		SET outcome = ?, total = ?, completed = ?, failed = ?, error = ?,
			finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := tx.Exec(query,
		string(session.Outcome()),
		session.TracksTotal(),
		session.TracksCompleted(),
		session.TracksFailed(),
		session.ErrorMessage(),
		session.CompletedAt(),
		session.UpdatedAt(),
		session.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID())
	}

	if _, err := tx.Exec(`DELETE FROM session_items WHERE session_id = ?`, session.ID()); err != nil {
		return fmt.Errorf("failed to clear session items: %w", err)
	}
	if err := insertItems(context.Background(), tx, session.ID(), session.Items()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	query := `
		UPDATE sessions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return nil
}

// List retrieves sessions newest first, excluding soft-deleted sessions.
//
// Supported criteria are "outcome" (string or [models.SessionOutcome]) and "limit" (int).
// Items are not loaded; use [SessionRepository.Get] for a full record.
func (r *SessionRepository) List(criteria map[string]any) ([]*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL`
	args := []any{}

	switch outcome := criteria["outcome"].(type) {
	case string:
		if outcome != "" {
			query += " AND outcome = ?"
			args = append(args, outcome)
		}
	case models.SessionOutcome:
		if outcome != "" {
			query += " AND outcome = ?"
			args = append(args, string(outcome))
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SessionRecord
	for rows.Next() {
		session, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, sessionID string, items []models.SessionItem) error {
	if len(items) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_items (
			session_id, position, track_id, name, status, progress, detail, path, failure
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.ExecContext(ctx,
			sessionID,
			item.Position,
			item.TrackID,
			item.Name,
			item.Status.String(),
			item.Progress,
			item.Detail,
			item.Path,
			item.Failure.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item %d: %w", item.Position, err)
		}
	}
	return nil
}

func (r *SessionRepository) loadItems(session *models.SessionRecord) error {
	rows, err := r.db.Query(`
		SELECT position, track_id, name, status, progress, detail, path, failure
		FROM session_items
		WHERE session_id = ?
		ORDER BY position
	`, session.ID())
	if err != nil {
		return fmt.Errorf("failed to query session items: %w", err)
	}
	defer rows.Close()

	var items []models.SessionItem
	for rows.Next() {
		var (
			item    models.SessionItem
			status  string
			failure string
		)
		if err := rows.Scan(
			&item.Position, &item.TrackID, &item.Name, &status,
			&item.Progress, &item.Detail, &item.Path, &failure,
		); err != nil {
			return fmt.Errorf("failed to scan session item: %w", err)
		}
		if item.Status, err = models.ParseStatus(status); err != nil {
			return fmt.Errorf("session item %d: %w", item.Position, err)
		}
		item.Failure = models.ParseFailureReason(failure)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	session.SetItems(items)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single [sql.Row] into a [models.SessionRecord]
func (r *SessionRepository) scanOne(row *sql.Row) (*models.SessionRecord, error) {
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	return session, err
}

// scanRow scans a row from [sql.Rows] into a [models.SessionRecord]
func (r *SessionRepository) scanRow(rows *sql.Rows) (*models.SessionRecord, error) {
	return scanSession(rows)
}

func scanSession(s scanner) (*models.SessionRecord, error) {
	var (
		id         string
		sequence   int
		input      string
		outcome    string
		total      int
		completed  int
		failed     int
		errMsg     string
		startedAt  time.Time
		finishedAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := s.Scan(
		&id, &sequence, &input, &outcome, &total, &completed, &failed, &errMsg,
		&startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session := models.NewSessionRecord(sequence, input, startedAt)
	session.SetID(id)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)

	var finished *time.Time
	if finishedAt.Valid {
		finished = &finishedAt.Time
	}
	session.Restore(models.SessionOutcome(outcome), total, completed, failed, errMsg, finished)

	if deletedAt.Valid {
		session.SetDeletedAt(&deletedAt.Time)
	}
	return session, nil
}

var _ models.Repository[*models.SessionRecord] = (*SessionRepository)(nil)
