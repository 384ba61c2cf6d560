package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OutboxStore manages pending external side effects awaiting propagation.
type OutboxStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewOutboxStore creates an OutboxStore.
func NewOutboxStore(db *gorm.DB) (*OutboxStore, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &OutboxStore{db: db, now: time.Now}, nil
}

// Create records a pending side effect outside a tracker transaction, e.g.
// the status update announcing an interview invitation was sent.
func (s *OutboxStore) Create(ctx context.Context, row *OutboxRow) error {
	row.State = OutboxPending
	row.NextAttemptAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("repository: create outbox row: %w", err)
	}
	return nil
}

// Due returns up to limit pending rows whose next attempt time has passed,
// oldest first.
func (s *OutboxStore) Due(ctx context.Context, limit int) ([]OutboxRow, error) {
	var rows []OutboxRow
	err := s.db.WithContext(ctx).
		Where("state = ? AND next_attempt_at <= ?", OutboxPending, s.now().UTC()).
		Order("next_attempt_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repository: due outbox rows: %w", err)
	}
	return rows, nil
}

// MarkDone records a successful propagation.
func (s *OutboxStore) MarkDone(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Model(&OutboxRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"state": OutboxDone, "updated_at": s.now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("repository: mark outbox done: %w", err)
	}
	return nil
}

// Reschedule records a failed attempt and pushes the next one out, or marks
// the row failed once the attempt budget is spent.
func (s *OutboxStore) Reschedule(ctx context.Context, row OutboxRow, attemptErr error, backoff time.Duration, maxAttempts int) error {
	attempts := row.Attempts + 1
	updates := map[string]any{
		"attempts":   attempts,
		"last_error": attemptErr.Error(),
		"updated_at": s.now().UTC(),
	}
	if attempts >= maxAttempts {
		updates["state"] = OutboxFailed
	} else {
		updates["next_attempt_at"] = s.now().UTC().Add(backoff)
	}
	err := s.db.WithContext(ctx).Model(&OutboxRow{}).
		Where("id = ?", row.ID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("repository: reschedule outbox row: %w", err)
	}
	return nil
}
