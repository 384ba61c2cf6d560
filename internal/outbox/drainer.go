// Package outbox propagates decision side effects recorded in the
// database out to the recruitment platform.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"recruit-agent/internal/repository"
)

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 3
	backoffBase        = 5 * time.Minute
)

// StatusUpdater pushes one application status change to the platform.
type StatusUpdater interface {
	UpdateApplicationStatus(ctx context.Context, applicationID, statusID int64) error
}

// UpdaterFactory builds a StatusUpdater for one organization's credentials.
type UpdaterFactory func(ctx context.Context, orgID int64) (StatusUpdater, error)

// Store is the persistence surface the drainer consumes.
type Store interface {
	Due(ctx context.Context, limit int) ([]repository.OutboxRow, error)
	MarkDone(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, row repository.OutboxRow, attemptErr error, backoff time.Duration, maxAttempts int) error
}

// Drainer delivers due outbox rows. Each failed attempt triples the wait
// before the next one; rows that exhaust the attempt budget are parked as
// failed and logged.
type Drainer struct {
	store      Store
	updaterFor UpdaterFactory
	log        *slog.Logger
	batchSize  int
}

// NewDrainer creates a Drainer.
func NewDrainer(store Store, updaterFor UpdaterFactory, log *slog.Logger) (*Drainer, error) {
	if store == nil {
		return nil, errors.New("outbox: store must not be nil")
	}
	if updaterFor == nil {
		return nil, errors.New("outbox: updater factory must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Drainer{
		store:      store,
		updaterFor: updaterFor,
		log:        log,
		batchSize:  defaultBatchSize,
	}, nil
}

// Drain processes one batch of due rows and reports how many were
// delivered.
func (d *Drainer) Drain(ctx context.Context) (int, error) {
	rows, err := d.store.Due(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, row := range rows {
		if err := d.deliver(ctx, row); err != nil {
			d.log.Error("outbox delivery failed",
				"outbox", row.ID, "org", row.OrgID, "application", row.ApplicationID,
				"attempt", row.Attempts+1, "err", err)
			if err := d.store.Reschedule(ctx, row, err, Backoff(row.Attempts), defaultMaxAttempts); err != nil {
				return delivered, err
			}
			continue
		}
		if err := d.store.MarkDone(ctx, row.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

func (d *Drainer) deliver(ctx context.Context, row repository.OutboxRow) error {
	updater, err := d.updaterFor(ctx, row.OrgID)
	if err != nil {
		return err
	}
	return updater.UpdateApplicationStatus(ctx, row.ApplicationID, row.StatusID)
}

// Backoff returns the wait before the next attempt, given how many have
// already failed: 5m, 15m, 45m, ...
func Backoff(attempts int) time.Duration {
	wait := backoffBase
	for i := 0; i < attempts; i++ {
		wait *= 3
	}
	return wait
}
