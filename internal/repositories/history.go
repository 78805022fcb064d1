package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
)

// HistoryAdapter implements tasks.Recorder using SessionRepository.
//
// A session that was already recorded is updated in place instead of inserted again.
type HistoryAdapter struct {
	repo *SessionRepository
}

// NewHistoryAdapter creates a new HistoryAdapter with the given repository
func NewHistoryAdapter(repo *SessionRepository) *HistoryAdapter {
	return &HistoryAdapter{repo: repo}
}

// Record stores a finished session and its items.
func (a *HistoryAdapter) Record(ctx context.Context, session *models.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if session.ID() != "" {
		existing, err := a.repo.Get(session.ID())
		switch {
		case err == nil:
			session.SetSequence(existing.Sequence())
			session.SetCreatedAt(existing.CreatedAt())
			if err := a.repo.Update(session); err != nil {
				return fmt.Errorf("failed to update session history: %w", err)
			}
			return nil
		case !errors.Is(err, shared.ErrSessionNotFound):
			return fmt.Errorf("failed to look up session history: %w", err)
		}
	}

	if err := a.repo.CreateContext(ctx, session); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}
