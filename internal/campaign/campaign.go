// Package campaign declares the conversation flows this service runs: their
// sentinel tag sets, LLM instructions, opening messages, and the mapping
// from parsed decisions to platform status updates.
package campaign

import (
	"recruit-agent/internal/convo"
	"recruit-agent/internal/domain"
)

// Seed carries the external-record context an initiation needs to build
// instructions and the opening message.
type Seed struct {
	OrgID          int64
	OrgName        string
	TargetIdentity string
	TargetName     string
	Ref            domain.ExternalRef

	// Interview campaigns only.
	JobTitle    string
	JobSummary  string
	JobLocation string
	JobBullets  []string
	Questions   []string
}

// Opening is the first outbound message of a cycle. Subject is set for
// email campaigns; TemplateSID and TemplateVars are set when the channel
// requires an approved template for the first contact (WhatsApp).
type Opening struct {
	Subject      string
	Body         string
	TemplateSID  string
	TemplateVars map[string]string
}

// Definition is everything campaign-specific the conversation engine needs.
type Definition struct {
	Kind     domain.CampaignKind
	Channel  domain.Channel
	Tags     convo.TagSet
	Fallback string

	Instructions func(seed Seed) string
	Opening      func(cfg domain.CampaignConfig, seed Seed) Opening

	// ReplySubject is the subject for follow-up emails; nil for non-email
	// channels.
	ReplySubject func(orgID int64) string

	// StatusForDecision returns the platform application status id a
	// decision maps to, or false when the decision has no external side
	// effect (consent decisions only mark the tracker).
	StatusForDecision func(cfg domain.CampaignConfig, decision string) (int64, bool)
}

var registry = map[domain.CampaignKind]Definition{
	domain.CampaignGDPREmail:         gdprEmail,
	domain.CampaignAWREmail:          awrEmail,
	domain.CampaignSMSInterview:      interview(domain.CampaignSMSInterview, domain.ChannelSMS),
	domain.CampaignWhatsAppInterview: interview(domain.CampaignWhatsAppInterview, domain.ChannelWhatsApp),
	domain.CampaignPhoneInterview:    interview(domain.CampaignPhoneInterview, domain.ChannelSMS),
}

// ByKind returns the definition for a campaign kind.
func ByKind(kind domain.CampaignKind) (Definition, bool) {
	def, ok := registry[kind]
	return def, ok
}

// Kinds returns every registered campaign kind.
func Kinds() []domain.CampaignKind {
	out := make([]domain.CampaignKind, 0, len(registry))
	for kind := range registry {
		out = append(out, kind)
	}
	return out
}

func noStatus(domain.CampaignConfig, string) (int64, bool) {
	return 0, false
}
