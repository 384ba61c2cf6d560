package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recruit-agent/internal/repository"
)

type rescheduleCall struct {
	row     repository.OutboxRow
	err     error
	backoff time.Duration
	max     int
}

type mockStore struct {
	due         []repository.OutboxRow
	dueErr      error
	done        []int64
	rescheduled []rescheduleCall
}

func (m *mockStore) Due(_ context.Context, _ int) ([]repository.OutboxRow, error) {
	return m.due, m.dueErr
}

func (m *mockStore) MarkDone(_ context.Context, id int64) error {
	m.done = append(m.done, id)
	return nil
}

func (m *mockStore) Reschedule(_ context.Context, row repository.OutboxRow, attemptErr error, backoff time.Duration, maxAttempts int) error {
	m.rescheduled = append(m.rescheduled, rescheduleCall{row: row, err: attemptErr, backoff: backoff, max: maxAttempts})
	return nil
}

type mockUpdater struct {
	calls []struct{ applicationID, statusID int64 }
	err   error
}

func (m *mockUpdater) UpdateApplicationStatus(_ context.Context, applicationID, statusID int64) error {
	m.calls = append(m.calls, struct{ applicationID, statusID int64 }{applicationID, statusID})
	return m.err
}

func fixedUpdater(u StatusUpdater) UpdaterFactory {
	return func(_ context.Context, _ int64) (StatusUpdater, error) { return u, nil }
}

func TestNewDrainer_ValidatesDependencies(t *testing.T) {
	_, err := NewDrainer(nil, fixedUpdater(&mockUpdater{}), nil)
	require.Error(t, err)
	_, err = NewDrainer(&mockStore{}, nil, nil)
	require.Error(t, err)
}

func TestDrain_DeliversAndMarksDone(t *testing.T) {
	store := &mockStore{due: []repository.OutboxRow{
		{ID: 1, OrgID: 5, ApplicationID: 77, StatusID: 10},
		{ID: 2, OrgID: 5, ApplicationID: 88, StatusID: 20},
	}}
	updater := &mockUpdater{}
	d, err := NewDrainer(store, fixedUpdater(updater), nil)
	require.NoError(t, err)

	delivered, err := d.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, delivered)
	require.Equal(t, []int64{1, 2}, store.done)
	require.Len(t, updater.calls, 2)
	require.Equal(t, int64(77), updater.calls[0].applicationID)
	require.Equal(t, int64(10), updater.calls[0].statusID)
	require.Empty(t, store.rescheduled)
}

func TestDrain_FailureReschedulesWithBackoff(t *testing.T) {
	store := &mockStore{due: []repository.OutboxRow{
		{ID: 1, OrgID: 5, ApplicationID: 77, StatusID: 10, Attempts: 1},
	}}
	updater := &mockUpdater{err: errors.New("platform unavailable")}
	d, err := NewDrainer(store, fixedUpdater(updater), nil)
	require.NoError(t, err)

	delivered, err := d.Drain(context.Background())
	require.NoError(t, err)
	require.Zero(t, delivered)
	require.Empty(t, store.done)
	require.Len(t, store.rescheduled, 1)

	call := store.rescheduled[0]
	require.Equal(t, int64(1), call.row.ID)
	require.Equal(t, updater.err, call.err)
	require.Equal(t, 15*time.Minute, call.backoff)
	require.Equal(t, 3, call.max)
}

func TestDrain_FactoryFailureReschedules(t *testing.T) {
	store := &mockStore{due: []repository.OutboxRow{{ID: 1, OrgID: 5}}}
	factoryErr := errors.New("missing credentials")
	d, err := NewDrainer(store, func(_ context.Context, _ int64) (StatusUpdater, error) {
		return nil, factoryErr
	}, nil)
	require.NoError(t, err)

	delivered, err := d.Drain(context.Background())
	require.NoError(t, err)
	require.Zero(t, delivered)
	require.Len(t, store.rescheduled, 1)
	require.Equal(t, factoryErr, store.rescheduled[0].err)
}

func TestDrain_FailureDoesNotBlockRemainingRows(t *testing.T) {
	store := &mockStore{due: []repository.OutboxRow{
		{ID: 1, OrgID: 1, ApplicationID: 10, StatusID: 10},
		{ID: 2, OrgID: 2, ApplicationID: 20, StatusID: 20},
	}}
	broken := &mockUpdater{err: errors.New("boom")}
	working := &mockUpdater{}
	d, err := NewDrainer(store, func(_ context.Context, orgID int64) (StatusUpdater, error) {
		if orgID == 1 {
			return broken, nil
		}
		return working, nil
	}, nil)
	require.NoError(t, err)

	delivered, err := d.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
	require.Equal(t, []int64{2}, store.done)
	require.Len(t, store.rescheduled, 1)
}

func TestBackoff_TriplesEachAttempt(t *testing.T) {
	require.Equal(t, 5*time.Minute, Backoff(0))
	require.Equal(t, 15*time.Minute, Backoff(1))
	require.Equal(t, 45*time.Minute, Backoff(2))
}
