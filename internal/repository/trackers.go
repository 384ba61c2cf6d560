package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"recruit-agent/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repository: not found")
	// ErrVersionConflict is returned when a compare-and-swap update lost a
	// race with a concurrent writer. Callers should re-read and retry.
	ErrVersionConflict = errors.New("repository: tracker version conflict")
)

// TrackerStore persists conversation trackers in Postgres. All mutations
// are guarded by an optimistic version column so concurrent turns cannot
// silently clobber each other's log appends.
type TrackerStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTrackerStore creates a TrackerStore.
func NewTrackerStore(db *gorm.DB) (*TrackerStore, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &TrackerStore{db: db, now: time.Now}, nil
}

// GetOrNone fetches the tracker for a (campaign, org, identity) triple, or
// nil when none exists. Should duplicates ever exist despite the unique
// index, the most recently updated row wins.
func (s *TrackerStore) GetOrNone(ctx context.Context, campaign domain.CampaignKind, orgID int64, identity string) (*domain.Tracker, error) {
	var row trackerRow
	err := s.db.WithContext(ctx).
		Where("campaign = ? AND org_id = ? AND target_identity = ?", string(campaign), orgID, identity).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get tracker: %w", err)
	}
	return rowToTracker(row)
}

// FindActive fetches the most recently updated tracker for an identity
// under a campaign, across organizations. Used by the phone-channel
// webhooks, whose payloads carry no organization token.
func (s *TrackerStore) FindActive(ctx context.Context, campaign domain.CampaignKind, identity string) (*domain.Tracker, error) {
	var row trackerRow
	err := s.db.WithContext(ctx).
		Where("campaign = ? AND target_identity = ?", string(campaign), identity).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find tracker: %w", err)
	}
	return rowToTracker(row)
}

// Upsert starts a new cycle for the tracker's (campaign, org, identity)
// triple: it creates the row, or replaces the conversation state of the
// existing one. Returns whether a row was created.
func (s *TrackerStore) Upsert(ctx context.Context, t *domain.Tracker) (bool, error) {
	existing, err := s.GetOrNone(ctx, t.Campaign, t.OrgID, t.TargetIdentity)
	if err != nil {
		return false, err
	}

	if existing == nil {
		now := s.now().UTC()
		t.CreatedAt = now
		t.UpdatedAt = now
		t.Version = 1
		row, err := trackerToRow(t)
		if err != nil {
			return false, err
		}
		// The unique index closes the check-then-create race; a concurrent
		// creator surfaces here as a duplicate-key error.
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return false, fmt.Errorf("repository: create tracker: %w", err)
		}
		t.ID = row.ID
		return true, nil
	}

	// Replace the conversation state of the existing cycle in place.
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	t.Version = existing.Version
	if err := s.save(ctx, t); err != nil {
		return false, err
	}
	return false, nil
}

// AppendTurn appends one turn to the tracker's log, increments the message
// count by one, and persists the tracker's full conversation state under a
// version check. The caller's tracker is refreshed on success.
func (s *TrackerStore) AppendTurn(ctx context.Context, t *domain.Tracker, turn domain.Turn) error {
	t.Log = append(t.Log, turn)
	t.MessageCount++
	return s.save(ctx, t)
}

// Complete marks the tracker COMPLETED with the given decision, appends the
// final system turn, and records the pending external side effect, all in
// one transaction. Pass a nil outbox row when the decision has no external
// side effect.
func (s *TrackerStore) Complete(ctx context.Context, t *domain.Tracker, finalTurn domain.Turn, decision string, outbox *OutboxRow) error {
	t.Log = append(t.Log, finalTurn)
	t.MessageCount++
	t.Status = domain.StatusCompleted
	t.Decision = &decision

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.saveTx(tx, t); err != nil {
			return err
		}
		if outbox == nil {
			return nil
		}
		outbox.TrackerID = t.ID
		outbox.State = OutboxPending
		outbox.NextAttemptAt = s.now().UTC()
		if err := tx.Create(outbox).Error; err != nil {
			return fmt.Errorf("repository: create outbox row: %w", err)
		}
		return nil
	})
}

// Reset empties the tracker for a new cycle: no log, zero count, status
// INITIATED, no decision.
func (s *TrackerStore) Reset(ctx context.Context, t *domain.Tracker) error {
	t.Log = nil
	t.MessageCount = 0
	t.Status = domain.StatusInitiated
	t.Decision = nil
	return s.save(ctx, t)
}

// Save persists in-memory tracker mutations (e.g. a status move to
// IN_PROGRESS) under the version check.
func (s *TrackerStore) Save(ctx context.Context, t *domain.Tracker) error {
	return s.save(ctx, t)
}

// List returns the trackers for one campaign and organization, most
// recently updated first.
func (s *TrackerStore) List(ctx context.Context, campaign domain.CampaignKind, orgID int64) ([]*domain.Tracker, error) {
	var rows []trackerRow
	err := s.db.WithContext(ctx).
		Where("campaign = ? AND org_id = ?", string(campaign), orgID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list trackers: %w", err)
	}
	out := make([]*domain.Tracker, 0, len(rows))
	for _, row := range rows {
		t, err := rowToTracker(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *TrackerStore) save(ctx context.Context, t *domain.Tracker) error {
	return s.saveTx(s.db.WithContext(ctx), t)
}

func (s *TrackerStore) saveTx(tx *gorm.DB, t *domain.Tracker) error {
	row, err := trackerToRow(t)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	res := tx.Model(&trackerRow{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(map[string]any{
			"external_ref":  row.ExternalRef,
			"instructions":  row.Instructions,
			"log":           row.Log,
			"message_count": row.MessageCount,
			"status":        row.Status,
			"decision":      row.Decision,
			"version":       t.Version + 1,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("repository: save tracker: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	t.Version++
	t.UpdatedAt = now
	return nil
}
