package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"recruit-agent/internal/campaign"
	"recruit-agent/internal/domain"
	"recruit-agent/internal/eligibility"
	"recruit-agent/internal/integrations/platform"
	"recruit-agent/internal/queue"
)

const scanPageSize = 100

// PlatformAPI is the recruitment platform surface the scanner consumes.
type PlatformAPI interface {
	Candidates(ctx context.Context, offset, limit int) (platform.CandidatePage, error)
	CandidateDates(ctx context.Context, candidateID int64, collection string) ([]time.Time, error)
	Placements(ctx context.Context, offset, limit int) (platform.PlacementPage, error)
	Company(ctx context.Context, companyID int64) (platform.Company, error)
	CompanyMainContact(ctx context.Context, companyID int64) (platform.Contact, error)
}

// PlatformFactory builds a platform client for one organization's
// credentials.
type PlatformFactory func(ctx context.Context, orgID int64) (PlatformAPI, error)

// ScanConfigStore lists the configurations a bulk scan iterates.
type ScanConfigStore interface {
	ListEnabled(ctx context.Context, kind domain.CampaignKind) ([]domain.CampaignConfig, error)
}

// ScanTrackerStore is the tracker surface the eligibility gate needs.
type ScanTrackerStore interface {
	GetOrNone(ctx context.Context, kind domain.CampaignKind, orgID int64, identity string) (*domain.Tracker, error)
	Reset(ctx context.Context, t *domain.Tracker) error
}

// Enqueuer schedules jobs.
type Enqueuer interface {
	EnqueueAfter(ctx context.Context, job queue.Job, delay time.Duration) error
}

// Scanner runs the bulk eligibility scans: it pages through platform
// records, applies the gate per record, resets stale trackers, and
// schedules one staggered initiate job per eligible target.
type Scanner struct {
	configs     ScanConfigStore
	trackers    ScanTrackerStore
	jobs        Enqueuer
	platformFor PlatformFactory
	log         *slog.Logger
	now         func() time.Time
}

// NewScanner creates a Scanner.
func NewScanner(configs ScanConfigStore, trackers ScanTrackerStore, jobs Enqueuer, platformFor PlatformFactory, log *slog.Logger) (*Scanner, error) {
	if configs == nil {
		return nil, errors.New("usecase: config store must not be nil")
	}
	if trackers == nil {
		return nil, errors.New("usecase: tracker store must not be nil")
	}
	if jobs == nil {
		return nil, errors.New("usecase: enqueuer must not be nil")
	}
	if platformFor == nil {
		return nil, errors.New("usecase: platform factory must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		configs:     configs,
		trackers:    trackers,
		jobs:        jobs,
		platformFor: platformFor,
		log:         log,
		now:         time.Now,
	}, nil
}

// Scan runs the campaign's eligibility scan across every enabled
// organization. A failure for one organization is logged and does not stop
// the others.
func (s *Scanner) Scan(ctx context.Context, kind domain.CampaignKind) error {
	configs, err := s.configs.ListEnabled(ctx, kind)
	if err != nil {
		return newError(ErrorInternal, "config_list_error", err)
	}
	for _, cfg := range configs {
		if err := s.scanOrg(ctx, kind, cfg); err != nil {
			s.log.Error("campaign scan failed for organization",
				"campaign", kind, "org", cfg.OrgID, "err", err)
		}
	}
	return nil
}

func (s *Scanner) scanOrg(ctx context.Context, kind domain.CampaignKind, cfg domain.CampaignConfig) error {
	api, err := s.platformFor(ctx, cfg.OrgID)
	if err != nil {
		return newError(ErrorUpstream, "platform_client_error", err)
	}
	switch kind {
	case domain.CampaignGDPREmail:
		return s.scanCandidates(ctx, api, cfg)
	case domain.CampaignAWREmail:
		return s.scanPlacements(ctx, api, cfg)
	default:
		// Interview campaigns are initiated per application through the
		// API surface, not by bulk scan.
		return newError(ErrorInvalidInput, "campaign_not_scannable", nil)
	}
}

// scanCandidates drives the GDPR consent campaign: every candidate whose
// last relevant action is older than the configured interval, and who has
// no active tracker, gets a staggered initiate job.
func (s *Scanner) scanCandidates(ctx context.Context, api PlatformAPI, cfg domain.CampaignConfig) error {
	eligible := 0
	for offset := 0; ; offset += scanPageSize {
		page, err := api.Candidates(ctx, offset, scanPageSize)
		if err != nil {
			return newError(ErrorUpstream, "candidate_page_error", err)
		}
		if len(page.Items) == 0 {
			break
		}
		for _, cand := range page.Items {
			email := normalizeEmail(cand.Email)
			if email == "" {
				continue
			}
			lastAction := s.candidateLastAction(ctx, api, cfg, cand)
			ok, err := s.gate(ctx, cfg, email, lastAction)
			if err != nil {
				s.log.Error("eligibility check failed", "candidate", cand.CandidateID, "err", err)
				continue
			}
			if !ok {
				continue
			}
			seed := campaign.Seed{
				OrgID:          cfg.OrgID,
				OrgName:        cfg.OrgName,
				TargetIdentity: email,
				TargetName:     cand.FullName(),
				Ref:            domain.ExternalRef{CandidateID: cand.CandidateID},
			}
			if err := s.enqueueInitiate(ctx, cfg, seed, eligible); err != nil {
				return err
			}
			eligible++
		}
		if int64(offset+len(page.Items)) >= page.TotalCount {
			break
		}
	}
	s.log.Info("candidate scan complete", "campaign", cfg.Campaign, "org", cfg.OrgID, "eligible", eligible)
	return nil
}

// scanPlacements drives the AWR campaign: placements past the interval
// whose company main contact is reachable and not unsubscribed.
func (s *Scanner) scanPlacements(ctx context.Context, api PlatformAPI, cfg domain.CampaignConfig) error {
	eligible := 0
	for offset := 0; ; offset += scanPageSize {
		page, err := api.Placements(ctx, offset, scanPageSize)
		if err != nil {
			return newError(ErrorUpstream, "placement_page_error", err)
		}
		if len(page.Items) == 0 {
			break
		}
		for _, pl := range page.Items {
			if pl.CreatedAt == nil || pl.CompanyID == 0 {
				continue
			}
			contact, err := api.CompanyMainContact(ctx, pl.CompanyID)
			if err != nil {
				s.log.Error("main contact lookup failed", "company", pl.CompanyID, "err", err)
				continue
			}
			email := normalizeEmail(contact.Email)
			if email == "" || contact.Unsubscribed {
				continue
			}
			ok, err := s.gate(ctx, cfg, email, pl.CreatedAt)
			if err != nil {
				s.log.Error("eligibility check failed", "placement", pl.PlacementID, "err", err)
				continue
			}
			if !ok {
				continue
			}
			company, err := api.Company(ctx, pl.CompanyID)
			if err != nil {
				s.log.Error("company lookup failed", "company", pl.CompanyID, "err", err)
				continue
			}
			seed := campaign.Seed{
				OrgID:          cfg.OrgID,
				OrgName:        cfg.OrgName,
				TargetIdentity: email,
				TargetName:     company.Name,
				JobTitle:       pl.JobTitle,
				Ref: domain.ExternalRef{
					PlacementID: pl.PlacementID,
					CompanyID:   pl.CompanyID,
				},
			}
			if err := s.enqueueInitiate(ctx, cfg, seed, eligible); err != nil {
				return err
			}
			eligible++
		}
		if int64(offset+len(page.Items)) >= page.TotalCount {
			break
		}
	}
	s.log.Info("placement scan complete", "campaign", cfg.Campaign, "org", cfg.OrgID, "eligible", eligible)
	return nil
}

// candidateLastAction gathers the enabled activity signals for one
// candidate. A failed collection fetch drops that signal rather than the
// candidate.
func (s *Scanner) candidateLastAction(ctx context.Context, api PlatformAPI, cfg domain.CampaignConfig, cand platform.Candidate) *time.Time {
	signals := eligibility.Signals{RecordUpdated: cand.UpdatedAt}
	fetch := func(enabled bool, collection string, into *[]time.Time) {
		if !enabled {
			return
		}
		dates, err := api.CandidateDates(ctx, cand.CandidateID, collection)
		if err != nil {
			s.log.Error("activity fetch failed",
				"candidate", cand.CandidateID, "collection", collection, "err", err)
			return
		}
		*into = dates
	}
	fetch(cfg.UseLastApplicationDate, "applications", &signals.Applications)
	fetch(cfg.UseLastPlacementDate, "placements", &signals.Placements)
	fetch(cfg.UseActivityDate, "activities", &signals.Activities)
	fetch(cfg.UseLastNoteDate, "notes", &signals.Notes)
	return eligibility.LastAction(cfg, signals)
}

// gate applies the eligibility decision for one target, resetting a stale
// tracker when the gate says so.
func (s *Scanner) gate(ctx context.Context, cfg domain.CampaignConfig, identity string, lastAction *time.Time) (bool, error) {
	tracker, err := s.trackers.GetOrNone(ctx, cfg.Campaign, cfg.OrgID, identity)
	if err != nil {
		return false, err
	}
	switch eligibility.Decide(s.now().UTC(), lastAction, cfg.Interval, tracker) {
	case eligibility.Start:
		return true, nil
	case eligibility.ResetAndStart:
		if err := s.trackers.Reset(ctx, tracker); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// normalizeEmail matches the inbound-webhook normalization so trackers
// seeded by a scan and reply lookups key on the same identity.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Scanner) enqueueInitiate(ctx context.Context, cfg domain.CampaignConfig, seed campaign.Seed, index int) error {
	job, err := queue.NewJob(queue.KindInitiate, seed.TargetIdentity, InitiatePayload{
		Campaign: cfg.Campaign,
		Seed:     seed,
	})
	if err != nil {
		return newError(ErrorInternal, "job_build_error", err)
	}
	if err := s.jobs.EnqueueAfter(ctx, job, eligibility.Stagger(index, cfg)); err != nil {
		return newError(ErrorInternal, "job_enqueue_error", err)
	}
	return nil
}
