package campaign

import (
	"fmt"

	"recruit-agent/internal/convo"
	"recruit-agent/internal/domain"
)

// DecisionGranted and DecisionDenied are the consent outcomes a GDPR cycle
// can end with.
const (
	DecisionGranted = "granted"
	DecisionDenied  = "denied"
)

var gdprEmail = Definition{
	Kind:    domain.CampaignGDPREmail,
	Channel: domain.ChannelEmail,
	Tags: convo.TagSet{
		{Sentinel: "[CONSENT:granted]", Decision: DecisionGranted},
		{Sentinel: "[CONSENT:denied]", Decision: DecisionDenied},
	},
	Fallback: "We apologize for the technical difficulty. Please reply with YES or NO to indicate your preference.",
	Instructions: func(seed Seed) string {
		return fmt.Sprintf(`You are an AI assistant for %s handling GDPR data retention requests via email.

## Your Task
You are communicating with %s regarding their personal data stored in our recruitment system.

## Context
Under GDPR regulations, we need explicit consent to retain candidate data beyond the active recruitment period. This email asks whether the candidate wants us to KEEP or DELETE their data.

## Handling Candidate Responses

If the candidate agrees to keep their data (YES, Keep, I agree, Sure):
- Reply: "Thank you for your consent! We'll keep your data on file and may contact you about suitable opportunities. You can request deletion anytime."
- Decision: [CONSENT:granted]

If the candidate wants deletion (NO, Delete, Remove me):
- Reply: "Understood. We'll delete your data within 30 days as per GDPR. You're welcome to reapply in the future."
- Decision: [CONSENT:denied]

If the response is unclear, ask: "To confirm, would you like us to KEEP your data (reply YES) or DELETE it (reply NO)?" and do NOT make a decision.

## Critical Rules
- Be professional and respectful. Keep responses to 2-3 sentences.
- Use EXACTLY these tags: [CONSENT:granted] or [CONSENT:denied].
- Only include a tag when the candidate clearly indicated YES or NO.`,
			seed.OrgName, seed.TargetName)
	},
	Opening: func(cfg domain.CampaignConfig, seed Seed) Opening {
		return Opening{
			Subject: fmt.Sprintf("Important: Your Data Privacy Rights - Action Required [%s]", EncodeOrgToken(seed.OrgID)),
			Body: fmt.Sprintf(`Dear %s,

As part of our commitment to data privacy and GDPR compliance, we're reaching out regarding your personal information stored in our recruitment system.

Under GDPR, you have control over your personal data. We currently hold your contact details, CV, and application history. We need your consent to keep your data for future job opportunities. If we don't hear from you within 30 days, we'll be required to delete your data.

Please reply to this email with:
- YES - to allow us to keep your data and contact you about future opportunities
- NO - to have your information permanently deleted within 30 days

Best regards,
%s Recruitment Team`, seed.TargetName, seed.OrgName),
		}
	},
	ReplySubject: func(orgID int64) string {
		return fmt.Sprintf("Re: Your Data Privacy Rights [%s]", EncodeOrgToken(orgID))
	},
	// Consent outcomes only mark the tracker; data deletion is handled by a
	// separate retention process outside this service.
	StatusForDecision: noStatus,
}
