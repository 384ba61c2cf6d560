package domain

import "time"

// Status is the progression state of a conversation tracker.
type Status string

const (
	StatusInitiated  Status = "INITIATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// CanTransition reports whether a tracker may move from its current status
// to next. Progression is forward-only; going back to INITIATED happens only
// through a reset, which is not a transition.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusInitiated:
		return next == StatusInProgress || next == StatusCompleted
	case StatusInProgress:
		return next == StatusInProgress || next == StatusCompleted
	default:
		return false
	}
}

// Turn senders. SenderSystem covers every message this service generated,
// SenderTarget covers everything the candidate or contact wrote back.
const (
	SenderSystem = "system"
	SenderTarget = "target"
)

// Delivery outcomes recorded on system turns. A turn whose message was
// generated but never delivered is kept with DeliveryFailed so the log does
// not claim a send that never happened.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Turn is a single entry in a tracker's conversation log.
type Turn struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Delivery  string    `json:"delivery,omitempty"`
}

// ConfigRef identifies the campaign configuration governing a tracker.
type ConfigRef struct {
	Campaign CampaignKind
	OrgID    int64
}

// Tracker is one conversation cycle with a single target identity under a
// single campaign configuration. Exactly one tracker exists per
// (campaign, org, target identity) at any time.
type Tracker struct {
	ID             int64
	Campaign       CampaignKind
	OrgID          int64
	TargetIdentity string
	ExternalRef    ExternalRef
	Instructions   string
	Log            []Turn
	MessageCount   int
	Status         Status
	Decision       *string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExternalRef ties a tracker back to the platform records it concerns.
// Zero fields mean the campaign has no such record.
type ExternalRef struct {
	CandidateID   int64 `json:"candidateId,omitempty"`
	ApplicationID int64 `json:"applicationId,omitempty"`
	PlacementID   int64 `json:"placementId,omitempty"`
	CompanyID     int64 `json:"companyId,omitempty"`
}

// Completed reports whether the tracker reached a decision.
func (t *Tracker) Completed() bool {
	return t.Status == StatusCompleted
}
