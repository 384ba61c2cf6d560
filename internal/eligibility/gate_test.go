package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recruit-agent/internal/domain"
)

var gateNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return gateNow.Add(-time.Duration(n) * 24 * time.Hour) }

func timePtr(t time.Time) *time.Time { return &t }

func TestIntervalDurations(t *testing.T) {
	day := 24 * time.Hour
	require.Equal(t, 180*day, domain.IntervalSixMonths.Duration())
	require.Equal(t, 365*day, domain.IntervalTwelveMonths.Duration())
	require.Equal(t, 730*day, domain.IntervalTwentyFourMonth.Duration())
	require.Equal(t, 1095*day, domain.IntervalThirtySixMonth.Duration())
	require.Equal(t, 1460*day, domain.IntervalFortyEightMonth.Duration())

	// Unknown or empty intervals fall back to twelve months.
	require.Equal(t, 365*day, domain.Interval("").Duration())
}

func TestLastAction_HonorsConfigFlags(t *testing.T) {
	signals := Signals{
		Applications:  []time.Time{daysAgo(400)},
		Placements:    []time.Time{daysAgo(100)},
		Activities:    []time.Time{daysAgo(50)},
		Notes:         []time.Time{daysAgo(10)},
		RecordUpdated: timePtr(daysAgo(5)),
	}

	// Only applications enabled: the 400-day-old date wins despite newer
	// disabled signals.
	last := LastAction(domain.CampaignConfig{UseLastApplicationDate: true}, signals)
	require.NotNil(t, last)
	require.Equal(t, daysAgo(400), *last)

	// All flags enabled: the most recent signal wins.
	cfg := domain.CampaignConfig{
		UseLastApplicationDate: true,
		UseLastPlacementDate:   true,
		UseActivityDate:        true,
		UseLastNoteDate:        true,
		UseRecordUpdateDate:    true,
	}
	last = LastAction(cfg, signals)
	require.NotNil(t, last)
	require.Equal(t, daysAgo(5), *last)
}

func TestLastAction_NoEnabledSignals(t *testing.T) {
	last := LastAction(domain.CampaignConfig{}, Signals{Applications: []time.Time{daysAgo(400)}})
	require.Nil(t, last)
}

func TestDecide_NoLastAction_Skips(t *testing.T) {
	require.Equal(t, Skip, Decide(gateNow, nil, domain.IntervalTwelveMonths, nil))
}

func TestDecide_InsideInterval_Skips(t *testing.T) {
	require.Equal(t, Skip, Decide(gateNow, timePtr(daysAgo(100)), domain.IntervalTwelveMonths, nil))
}

func TestDecide_ElapsedNoTracker_Starts(t *testing.T) {
	require.Equal(t, Start, Decide(gateNow, timePtr(daysAgo(366)), domain.IntervalTwelveMonths, nil))
}

func TestDecide_BoundaryDayCounts(t *testing.T) {
	// Exactly 365 days elapsed is eligible; 364 is not.
	require.Equal(t, Start, Decide(gateNow, timePtr(daysAgo(365)), domain.IntervalTwelveMonths, nil))
	require.Equal(t, Skip, Decide(gateNow, timePtr(daysAgo(364)), domain.IntervalTwelveMonths, nil))
}

func TestDecide_ActiveTracker_Skips(t *testing.T) {
	tracker := &domain.Tracker{Status: domain.StatusInProgress, UpdatedAt: daysAgo(30)}
	require.Equal(t, Skip, Decide(gateNow, timePtr(daysAgo(400)), domain.IntervalTwelveMonths, tracker))
}

func TestDecide_RecentlyCompletedTracker_Skips(t *testing.T) {
	tracker := &domain.Tracker{Status: domain.StatusCompleted, UpdatedAt: daysAgo(200)}
	require.Equal(t, Skip, Decide(gateNow, timePtr(daysAgo(400)), domain.IntervalTwelveMonths, tracker))
}

func TestDecide_StaleTracker_ResetsAndStarts(t *testing.T) {
	tracker := &domain.Tracker{Status: domain.StatusCompleted, UpdatedAt: daysAgo(400)}
	require.Equal(t, ResetAndStart, Decide(gateNow, timePtr(daysAgo(500)), domain.IntervalTwelveMonths, tracker))
}

func TestStagger_LinearDelays(t *testing.T) {
	cfg := domain.CampaignConfig{StaggerSeconds: 30}
	require.Equal(t, time.Duration(0), Stagger(0, cfg))
	require.Equal(t, 30*time.Second, Stagger(1, cfg))
	require.Equal(t, 150*time.Second, Stagger(5, cfg))
}

func TestStagger_DefaultsToTenSeconds(t *testing.T) {
	require.Equal(t, 20*time.Second, Stagger(2, domain.CampaignConfig{}))
}
