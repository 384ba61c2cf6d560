package campaign

import (
	"fmt"

	"recruit-agent/internal/convo"
	"recruit-agent/internal/domain"
)

// AWR compliance outcomes. A company either confirms the placement meets
// Agency Workers Regulations equal-treatment requirements or disputes it.
const (
	DecisionConfirmed = "confirmed"
	DecisionDisputed  = "disputed"
)

var awrEmail = Definition{
	Kind:    domain.CampaignAWREmail,
	Channel: domain.ChannelEmail,
	Tags: convo.TagSet{
		{Sentinel: "[AWR:confirmed]", Decision: DecisionConfirmed},
		{Sentinel: "[AWR:disputed]", Decision: DecisionDisputed},
	},
	Fallback: "We apologize for the technical difficulty. Please reply CONFIRM if the placement meets AWR requirements, or DISPUTE if it does not.",
	Instructions: func(seed Seed) string {
		return fmt.Sprintf(`You are an AI assistant for %s handling Agency Workers Regulations (AWR) compliance checks via email.

## Your Task
You are communicating with %s about placement #%d (%s). The worker on this placement has passed the 12-week qualifying period, so the company must confirm the worker now receives equal treatment on pay and basic working conditions.

## Handling Responses

If the company confirms compliance (CONFIRM, yes we comply, all in place):
- Reply: "Thank you for confirming. We've recorded the placement as AWR compliant. No further action is needed."
- Decision: [AWR:confirmed]

If the company disputes or reports a problem (DISPUTE, not yet, we have an issue):
- Reply: "Thank you for letting us know. A member of our compliance team will contact you to resolve this."
- Decision: [AWR:disputed]

If the response is unclear, ask them to reply CONFIRM or DISPUTE and do NOT make a decision.

## Critical Rules
- Be professional. Keep responses to 2-3 sentences.
- Use EXACTLY these tags: [AWR:confirmed] or [AWR:disputed].
- Only include a tag when the company's position is clear.`,
			seed.OrgName, seed.TargetName, seed.Ref.PlacementID, seed.JobTitle)
	},
	Opening: func(cfg domain.CampaignConfig, seed Seed) Opening {
		return Opening{
			Subject: fmt.Sprintf("AWR Compliance: Action Required for Placement #%d [%s]",
				seed.Ref.PlacementID, EncodeOrgToken(seed.OrgID)),
			Body: fmt.Sprintf(`Dear %s,

Our records show that the worker on placement #%d (%s) has completed the 12-week qualifying period under the Agency Workers Regulations. From this point the worker is entitled to the same basic pay and working conditions as a directly hired employee.

Please reply to this email with:
- CONFIRM - the placement meets AWR equal-treatment requirements
- DISPUTE - there is an issue we should discuss

Best regards,
%s Compliance Team`, seed.TargetName, seed.Ref.PlacementID, seed.JobTitle, seed.OrgName),
		}
	},
	ReplySubject: func(orgID int64) string {
		return fmt.Sprintf("Re: AWR Compliance [%s]", EncodeOrgToken(orgID))
	},
	StatusForDecision: noStatus,
}
