// Package eligibility decides whether an external record should start a new
// conversation cycle right now, based on elapsed time since the record's
// last relevant action and the state of any existing tracker.
package eligibility

import (
	"time"

	"recruit-agent/internal/domain"
)

// Outcome of a gate decision.
type Outcome int

const (
	// Skip: the record is inside the interval or an active tracker exists.
	Skip Outcome = iota
	// Start: no tracker exists and the interval has elapsed.
	Start
	// ResetAndStart: a tracker exists but is stale; reset it and begin a
	// fresh cycle.
	ResetAndStart
)

// Signals are the per-record activity dates the gate may consult. Which of
// them count is controlled by the campaign configuration flags.
type Signals struct {
	Applications  []time.Time
	Placements    []time.Time
	Activities    []time.Time
	Notes         []time.Time
	RecordUpdated *time.Time
}

// LastAction returns the most recent enabled signal, or nil when none of
// the enabled signals produced a date.
func LastAction(cfg domain.CampaignConfig, s Signals) *time.Time {
	var latest *time.Time
	consider := func(ts []time.Time) {
		for i := range ts {
			if latest == nil || ts[i].After(*latest) {
				t := ts[i]
				latest = &t
			}
		}
	}
	if cfg.UseLastApplicationDate {
		consider(s.Applications)
	}
	if cfg.UseLastPlacementDate {
		consider(s.Placements)
	}
	if cfg.UseActivityDate {
		consider(s.Activities)
	}
	if cfg.UseLastNoteDate {
		consider(s.Notes)
	}
	if cfg.UseRecordUpdateDate && s.RecordUpdated != nil {
		consider([]time.Time{*s.RecordUpdated})
	}
	return latest
}

// Decide applies the gate rules: eligible when the interval has elapsed
// since the last action and either no tracker exists or the existing one
// has gone stale (no mutation for a full interval). An active tracker, or a
// record still inside the interval, is skipped.
func Decide(now time.Time, lastAction *time.Time, interval domain.Interval, tracker *domain.Tracker) Outcome {
	if lastAction == nil {
		return Skip
	}
	if now.Sub(*lastAction) < interval.Duration() {
		return Skip
	}
	if tracker == nil {
		return Start
	}
	if now.Sub(tracker.UpdatedAt) >= interval.Duration() {
		return ResetAndStart
	}
	return Skip
}

// Stagger returns the scheduling delay for the i-th eligible record of a
// bulk scan. Linear backoff keeps the transport and LLM providers from
// seeing a burst of simultaneous initiations.
func Stagger(i int, cfg domain.CampaignConfig) time.Duration {
	seconds := cfg.StaggerSeconds
	if seconds <= 0 {
		seconds = 10
	}
	return time.Duration(i*seconds) * time.Second
}
