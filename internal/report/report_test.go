package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recruit-agent/internal/domain"
)

var reportNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type mockLister struct {
	trackers []*domain.Tracker
	err      error
	kind     domain.CampaignKind
	orgID    int64
}

func (m *mockLister) List(_ context.Context, kind domain.CampaignKind, orgID int64) ([]*domain.Tracker, error) {
	m.kind = kind
	m.orgID = orgID
	return m.trackers, m.err
}

func strPtr(s string) *string { return &s }

func sampleTrackers() []*domain.Tracker {
	started := reportNow.Add(-72 * time.Hour)
	return []*domain.Tracker{
		{
			TargetIdentity: "a@acme.example",
			Status:         domain.StatusCompleted,
			Decision:       strPtr("granted"),
			MessageCount:   4,
			CreatedAt:      started,
			UpdatedAt:      reportNow.Add(-time.Hour),
			Log: []domain.Turn{
				{Sender: domain.SenderSystem, Message: "Do we have your consent?", Timestamp: started},
				{Sender: domain.SenderTarget, Message: "Yes, that is fine.", Timestamp: reportNow.Add(-time.Hour)},
			},
		},
		{
			TargetIdentity: "b@acme.example",
			Status:         domain.StatusCompleted,
			Decision:       strPtr("denied"),
			MessageCount:   2,
			CreatedAt:      started,
			UpdatedAt:      reportNow,
		},
		{
			TargetIdentity: "c@acme.example",
			Status:         domain.StatusInProgress,
			MessageCount:   3,
			CreatedAt:      started,
			UpdatedAt:      reportNow,
		},
		{
			TargetIdentity: "d@acme.example",
			Status:         domain.StatusInitiated,
			MessageCount:   1,
			CreatedAt:      reportNow,
			UpdatedAt:      reportNow,
		},
	}
}

func newTestBuilder(t *testing.T, lister TrackerLister) *Builder {
	t.Helper()
	b, err := NewBuilder(lister)
	require.NoError(t, err)
	b.now = func() time.Time { return reportNow }
	return b
}

func TestNewBuilder_RequiresLister(t *testing.T) {
	_, err := NewBuilder(nil)
	require.Error(t, err)
}

func TestBuild_TalliesStatusesAndDecisions(t *testing.T) {
	lister := &mockLister{trackers: sampleTrackers()}
	b := newTestBuilder(t, lister)

	rep, err := b.Build(context.Background(), domain.CampaignGDPREmail, 7)
	require.NoError(t, err)

	require.Equal(t, domain.CampaignGDPREmail, lister.kind)
	require.Equal(t, int64(7), lister.orgID)

	require.Equal(t, domain.CampaignGDPREmail, rep.Campaign)
	require.Equal(t, int64(7), rep.OrgID)
	require.Equal(t, reportNow, rep.GeneratedAt)
	require.Equal(t, 4, rep.Total)
	require.Equal(t, 2, rep.Completed)
	require.Equal(t, 1, rep.InProgress)
	require.Equal(t, 1, rep.Initiated)
	require.Equal(t, map[string]int{"granted": 1, "denied": 1}, rep.Decisions)
	require.Len(t, rep.Rows, 4)
}

func TestBuild_RowCarriesLastMessage(t *testing.T) {
	b := newTestBuilder(t, &mockLister{trackers: sampleTrackers()})

	rep, err := b.Build(context.Background(), domain.CampaignGDPREmail, 7)
	require.NoError(t, err)

	withLog := rep.Rows[0]
	require.Equal(t, "a@acme.example", withLog.TargetIdentity)
	require.Equal(t, "Yes, that is fine.", withLog.LastMessage)
	require.NotNil(t, withLog.LastMessageAt)
	require.Equal(t, reportNow.Add(-time.Hour), *withLog.LastMessageAt)

	noLog := rep.Rows[1]
	require.Empty(t, noLog.LastMessage)
	require.Nil(t, noLog.LastMessageAt)
}

func TestBuild_EmptyCampaign(t *testing.T) {
	b := newTestBuilder(t, &mockLister{})

	rep, err := b.Build(context.Background(), domain.CampaignSMSInterview, 7)
	require.NoError(t, err)
	require.Zero(t, rep.Total)
	require.Empty(t, rep.Rows)
	require.Empty(t, rep.Decisions)
}

func TestBuild_ListFailure(t *testing.T) {
	b := newTestBuilder(t, &mockLister{err: errors.New("db down")})

	_, err := b.Build(context.Background(), domain.CampaignGDPREmail, 7)
	require.Error(t, err)
}

func TestWriteExcel_ProducesWorkbook(t *testing.T) {
	b := newTestBuilder(t, &mockLister{trackers: sampleTrackers()})

	var buf bytes.Buffer
	err := b.WriteExcel(context.Background(), domain.CampaignGDPREmail, 7, &buf)
	require.NoError(t, err)
	require.NotZero(t, buf.Len())
	// xlsx files are zip archives.
	require.Equal(t, []byte("PK"), buf.Bytes()[:2])
}

func TestWriteExcel_ListFailure(t *testing.T) {
	b := newTestBuilder(t, &mockLister{err: errors.New("db down")})

	var buf bytes.Buffer
	err := b.WriteExcel(context.Background(), domain.CampaignGDPREmail, 7, &buf)
	require.Error(t, err)
	require.Zero(t, buf.Len())
}
