package usecase

import (
	"recruit-agent/internal/campaign"
	"recruit-agent/internal/domain"
)

// Job payloads exchanged between the webhook handlers, the scanner, and the
// worker. The queue partition key is the target identity, so all work for
// one target runs strictly in order; scan jobs partition on the campaign.

// InitiatePayload asks the worker to start a new conversation cycle.
type InitiatePayload struct {
	Campaign domain.CampaignKind `json:"campaign"`
	Seed     campaign.Seed       `json:"seed"`
}

// InboundPayload carries one normalized inbound message. OrgID is zero for
// channels whose webhooks carry no organization token.
type InboundPayload struct {
	Campaign domain.CampaignKind `json:"campaign"`
	OrgID    int64               `json:"orgId,omitempty"`
	Identity string              `json:"identity"`
	Message  string              `json:"message"`
}

// ScanPayload asks the worker to run the bulk eligibility scan for one
// campaign across every enabled organization.
type ScanPayload struct {
	Campaign domain.CampaignKind `json:"campaign"`
}
