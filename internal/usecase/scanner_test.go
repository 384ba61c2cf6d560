package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recruit-agent/internal/domain"
	"recruit-agent/internal/integrations/platform"
	"recruit-agent/internal/queue"
)

type mockScanConfigs struct {
	configs []domain.CampaignConfig
	err     error
}

func (m *mockScanConfigs) ListEnabled(_ context.Context, _ domain.CampaignKind) ([]domain.CampaignConfig, error) {
	return m.configs, m.err
}

type mockScanTrackers struct {
	byIdentity map[string]*domain.Tracker
	resets     []string
}

func (m *mockScanTrackers) GetOrNone(_ context.Context, _ domain.CampaignKind, _ int64, identity string) (*domain.Tracker, error) {
	return m.byIdentity[identity], nil
}

func (m *mockScanTrackers) Reset(_ context.Context, t *domain.Tracker) error {
	m.resets = append(m.resets, t.TargetIdentity)
	return nil
}

type enqueuedJob struct {
	job   queue.Job
	delay time.Duration
}

type mockEnqueuer struct {
	jobs []enqueuedJob
	err  error
}

func (m *mockEnqueuer) EnqueueAfter(_ context.Context, job queue.Job, delay time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, enqueuedJob{job: job, delay: delay})
	return nil
}

type mockPlatform struct {
	candidates []platform.Candidate
	dates      map[string][]time.Time
	placements []platform.Placement
	contacts   map[int64]platform.Contact
	companies  map[int64]platform.Company
	pageErr    error
}

func (m *mockPlatform) Candidates(_ context.Context, offset, limit int) (platform.CandidatePage, error) {
	if m.pageErr != nil {
		return platform.CandidatePage{}, m.pageErr
	}
	end := offset + limit
	if end > len(m.candidates) {
		end = len(m.candidates)
	}
	if offset > len(m.candidates) {
		offset = len(m.candidates)
	}
	return platform.CandidatePage{
		Items:      m.candidates[offset:end],
		TotalCount: int64(len(m.candidates)),
	}, nil
}

func (m *mockPlatform) CandidateDates(_ context.Context, _ int64, collection string) ([]time.Time, error) {
	return m.dates[collection], nil
}

func (m *mockPlatform) Placements(_ context.Context, offset, limit int) (platform.PlacementPage, error) {
	if m.pageErr != nil {
		return platform.PlacementPage{}, m.pageErr
	}
	end := offset + limit
	if end > len(m.placements) {
		end = len(m.placements)
	}
	if offset > len(m.placements) {
		offset = len(m.placements)
	}
	return platform.PlacementPage{
		Items:      m.placements[offset:end],
		TotalCount: int64(len(m.placements)),
	}, nil
}

func (m *mockPlatform) Company(_ context.Context, companyID int64) (platform.Company, error) {
	return m.companies[companyID], nil
}

func (m *mockPlatform) CompanyMainContact(_ context.Context, companyID int64) (platform.Contact, error) {
	contact, ok := m.contacts[companyID]
	if !ok {
		return platform.Contact{}, errors.New("no main contact")
	}
	return contact, nil
}

func newTestScanner(t *testing.T, configs *mockScanConfigs, trackers *mockScanTrackers, jobs *mockEnqueuer, api PlatformAPI) *Scanner {
	t.Helper()
	s, err := NewScanner(configs, trackers, jobs,
		func(context.Context, int64) (PlatformAPI, error) { return api, nil }, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func scanDaysAgo(n int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(-time.Duration(n) * 24 * time.Hour)
}

func gdprScanConfig() domain.CampaignConfig {
	return domain.CampaignConfig{
		Campaign:               domain.CampaignGDPREmail,
		OrgID:                  1,
		OrgName:                "Acme",
		Enabled:                true,
		Interval:               domain.IntervalTwelveMonths,
		UseLastApplicationDate: true,
		StaggerSeconds:         10,
	}
}

func TestScan_GDPR_EnqueuesEligibleCandidatesWithStagger(t *testing.T) {
	old := scanDaysAgo(400)
	recent := scanDaysAgo(30)
	api := &mockPlatform{
		candidates: []platform.Candidate{
			{CandidateID: 1, Email: "eligible1@example.com", FirstName: "A", UpdatedAt: &old},
			{CandidateID: 2, Email: "recent@example.com", UpdatedAt: &recent},
			{CandidateID: 3, Email: "", UpdatedAt: &old},
			{CandidateID: 4, Email: "eligible2@example.com", UpdatedAt: &old},
		},
		dates: map[string][]time.Time{"applications": {scanDaysAgo(400)}},
	}
	// Candidate 2's only enabled signal is also old; the recent record
	// update date is ignored because its flag is off.
	jobs := &mockEnqueuer{}
	trackers := &mockScanTrackers{byIdentity: map[string]*domain.Tracker{}}
	s := newTestScanner(t, &mockScanConfigs{configs: []domain.CampaignConfig{gdprScanConfig()}}, trackers, jobs, api)

	err := s.Scan(context.Background(), domain.CampaignGDPREmail)
	require.NoError(t, err)

	// Candidates 1, 2, 4 are eligible (2's application signal is old too);
	// 3 has no email.
	require.Len(t, jobs.jobs, 3)
	require.Equal(t, time.Duration(0), jobs.jobs[0].delay)
	require.Equal(t, 10*time.Second, jobs.jobs[1].delay)
	require.Equal(t, 20*time.Second, jobs.jobs[2].delay)

	var payload InitiatePayload
	require.NoError(t, json.Unmarshal(jobs.jobs[0].job.Payload, &payload))
	require.Equal(t, domain.CampaignGDPREmail, payload.Campaign)
	require.Equal(t, "eligible1@example.com", payload.Seed.TargetIdentity)
	require.Equal(t, int64(1), payload.Seed.Ref.CandidateID)
	require.Equal(t, queue.KindInitiate, jobs.jobs[0].job.Kind)
	require.Equal(t, "eligible1@example.com", jobs.jobs[0].job.Partition)
}

func TestScan_GDPR_ActiveTrackerSkipped(t *testing.T) {
	old := scanDaysAgo(400)
	api := &mockPlatform{
		candidates: []platform.Candidate{{CandidateID: 1, Email: "busy@example.com", UpdatedAt: &old}},
		dates:      map[string][]time.Time{"applications": {scanDaysAgo(400)}},
	}
	trackers := &mockScanTrackers{byIdentity: map[string]*domain.Tracker{
		"busy@example.com": {TargetIdentity: "busy@example.com", Status: domain.StatusInProgress, UpdatedAt: scanDaysAgo(3)},
	}}
	jobs := &mockEnqueuer{}
	s := newTestScanner(t, &mockScanConfigs{configs: []domain.CampaignConfig{gdprScanConfig()}}, trackers, jobs, api)

	require.NoError(t, s.Scan(context.Background(), domain.CampaignGDPREmail))
	require.Empty(t, jobs.jobs)
	require.Empty(t, trackers.resets)
}

func TestScan_GDPR_StaleTrackerResetAndRestarted(t *testing.T) {
	api := &mockPlatform{
		candidates: []platform.Candidate{{CandidateID: 1, Email: "stale@example.com"}},
		dates:      map[string][]time.Time{"applications": {scanDaysAgo(800)}},
	}
	trackers := &mockScanTrackers{byIdentity: map[string]*domain.Tracker{
		"stale@example.com": {TargetIdentity: "stale@example.com", Status: domain.StatusCompleted, UpdatedAt: scanDaysAgo(400)},
	}}
	jobs := &mockEnqueuer{}
	s := newTestScanner(t, &mockScanConfigs{configs: []domain.CampaignConfig{gdprScanConfig()}}, trackers, jobs, api)

	require.NoError(t, s.Scan(context.Background(), domain.CampaignGDPREmail))
	require.Equal(t, []string{"stale@example.com"}, trackers.resets)
	require.Len(t, jobs.jobs, 1)
}

func TestScan_GDPR_MixedCaseEmailSeedsLowercaseIdentity(t *testing.T) {
	old := scanDaysAgo(400)
	api := &mockPlatform{
		candidates: []platform.Candidate{{CandidateID: 1, Email: " Jordan@Acme.example ", UpdatedAt: &old}},
		dates:      map[string][]time.Time{"applications": {scanDaysAgo(400)}},
	}
	// The inbound webhook lowercases reply senders, so the seeded identity
	// must be lowercase too or the reply never finds its tracker.
	trackers := &mockScanTrackers{byIdentity: map[string]*domain.Tracker{
		"jordan@acme.example": {TargetIdentity: "jordan@acme.example", Status: domain.StatusCompleted, UpdatedAt: scanDaysAgo(400)},
	}}
	jobs := &mockEnqueuer{}
	s := newTestScanner(t, &mockScanConfigs{configs: []domain.CampaignConfig{gdprScanConfig()}}, trackers, jobs, api)

	require.NoError(t, s.Scan(context.Background(), domain.CampaignGDPREmail))
	require.Equal(t, []string{"jordan@acme.example"}, trackers.resets)
	require.Len(t, jobs.jobs, 1)
	require.Equal(t, "jordan@acme.example", jobs.jobs[0].job.Partition)

	var payload InitiatePayload
	require.NoError(t, json.Unmarshal(jobs.jobs[0].job.Payload, &payload))
	require.Equal(t, "jordan@acme.example", payload.Seed.TargetIdentity)
}

func awrScanConfig() domain.CampaignConfig {
	return domain.CampaignConfig{
		Campaign: domain.CampaignAWREmail,
		OrgID:    1,
		OrgName:  "Acme",
		Enabled:  true,
		Interval: domain.IntervalSixMonths,
	}
}

func TestScan_AWR_TargetsMainContactsSkippingUnsubscribed(t *testing.T) {
	created := scanDaysAgo(200)
	api := &mockPlatform{
		placements: []platform.Placement{
			{PlacementID: 1, CompanyID: 10, JobTitle: "Picker", CreatedAt: &created},
			{PlacementID: 2, CompanyID: 20, JobTitle: "Driver", CreatedAt: &created},
			{PlacementID: 3, CompanyID: 30, JobTitle: "Cleaner", CreatedAt: &created},
		},
		contacts: map[int64]platform.Contact{
			10: {ContactID: 100, Email: "ops@company10.example"},
			20: {ContactID: 200, Email: "hr@company20.example", Unsubscribed: true},
			30: {ContactID: 300, Email: ""},
		},
		companies: map[int64]platform.Company{
			10: {CompanyID: 10, Name: "Company Ten"},
		},
	}
	jobs := &mockEnqueuer{}
	trackers := &mockScanTrackers{byIdentity: map[string]*domain.Tracker{}}
	s := newTestScanner(t, &mockScanConfigs{configs: []domain.CampaignConfig{awrScanConfig()}}, trackers, jobs, api)

	require.NoError(t, s.Scan(context.Background(), domain.CampaignAWREmail))
	require.Len(t, jobs.jobs, 1)

	var payload InitiatePayload
	require.NoError(t, json.Unmarshal(jobs.jobs[0].job.Payload, &payload))
	require.Equal(t, "ops@company10.example", payload.Seed.TargetIdentity)
	require.Equal(t, "Company Ten", payload.Seed.TargetName)
	require.Equal(t, "Picker", payload.Seed.JobTitle)
	require.Equal(t, int64(1), payload.Seed.Ref.PlacementID)
	require.Equal(t, int64(10), payload.Seed.Ref.CompanyID)
}

func TestScan_AWR_RecentPlacementSkipped(t *testing.T) {
	created := scanDaysAgo(30)
	api := &mockPlatform{
		placements: []platform.Placement{{PlacementID: 1, CompanyID: 10, CreatedAt: &created}},
		contacts:   map[int64]platform.Contact{10: {Email: "ops@company10.example"}},
	}
	jobs := &mockEnqueuer{}
	s := newTestScanner(t, &mockScanConfigs{configs: []domain.CampaignConfig{awrScanConfig()}},
		&mockScanTrackers{byIdentity: map[string]*domain.Tracker{}}, jobs, api)

	require.NoError(t, s.Scan(context.Background(), domain.CampaignAWREmail))
	require.Empty(t, jobs.jobs)
}

func TestScan_OrgFailureDoesNotStopOthers(t *testing.T) {
	// First org's platform pages fail; the second org still scans.
	good := &mockPlatform{
		candidates: []platform.Candidate{{CandidateID: 1, Email: "ok@example.com"}},
		dates:      map[string][]time.Time{"applications": {scanDaysAgo(400)}},
	}
	bad := &mockPlatform{pageErr: errors.New("platform down")}
	apis := map[int64]PlatformAPI{1: bad, 2: good}

	cfgA := gdprScanConfig()
	cfgB := gdprScanConfig()
	cfgB.OrgID = 2
	jobs := &mockEnqueuer{}
	s, err := NewScanner(
		&mockScanConfigs{configs: []domain.CampaignConfig{cfgA, cfgB}},
		&mockScanTrackers{byIdentity: map[string]*domain.Tracker{}},
		jobs,
		func(_ context.Context, orgID int64) (PlatformAPI, error) { return apis[orgID], nil },
		nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Scan(context.Background(), domain.CampaignGDPREmail))
	require.Len(t, jobs.jobs, 1)
}

func TestScan_UnknownCampaignConfigErrors(t *testing.T) {
	s := newTestScanner(t,
		&mockScanConfigs{err: errors.New("db down")},
		&mockScanTrackers{}, &mockEnqueuer{}, &mockPlatform{})
	err := s.Scan(context.Background(), domain.CampaignGDPREmail)
	expectUsecaseError(t, err, ErrorInternal, "config_list_error")
}
