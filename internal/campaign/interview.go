package campaign

import (
	"fmt"
	"strings"

	"recruit-agent/internal/convo"
	"recruit-agent/internal/domain"
)

// Interview outcomes.
const (
	DecisionSuccessful   = "successful"
	DecisionUnsuccessful = "unsuccessful"
)

// interview builds the shared definition for the text-based interview
// campaigns. SMS and WhatsApp differ only in channel and opening message;
// phone interviews feed call transcript chunks through the same engine.
func interview(kind domain.CampaignKind, channel domain.Channel) Definition {
	return Definition{
		Kind:    kind,
		Channel: channel,
		Tags: convo.TagSet{
			{Sentinel: "[END_INTERVIEW:successful]", Decision: DecisionSuccessful},
			{Sentinel: "[END_INTERVIEW:unsuccessful]", Decision: DecisionUnsuccessful},
		},
		Fallback:     "I apologize, but I'm having technical difficulties. Please try again in a moment.",
		Instructions: interviewInstructions,
		Opening: func(cfg domain.CampaignConfig, seed Seed) Opening {
			body := fmt.Sprintf(
				"Hi %s! This is %s. Thanks for applying for the %s position. I'd like to ask you a few quick questions about your application. Ready to start? Just reply YES when you're ready!",
				seed.TargetName, seed.OrgName, seed.JobTitle)
			op := Opening{Body: body}
			if channel == domain.ChannelWhatsApp {
				// WhatsApp requires an approved template for the first
				// business-initiated message; the rendered text above is what
				// the template produces and what the log records.
				op.TemplateSID = cfg.WhatsAppSID
				op.TemplateVars = map[string]string{
					"1": seed.TargetName,
					"2": seed.JobTitle,
				}
			}
			return op
		},
		StatusForDecision: func(cfg domain.CampaignConfig, decision string) (int64, bool) {
			switch decision {
			case DecisionSuccessful:
				return cfg.StatusWhenSuccessful, cfg.StatusWhenSuccessful != 0
			case DecisionUnsuccessful:
				return cfg.StatusWhenUnsuccessful, cfg.StatusWhenUnsuccessful != 0
			default:
				return 0, false
			}
		},
	}
}

func interviewInstructions(seed Seed) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an AI recruiter for %s conducting a text-based job interview. Keep responses conversational but professional, under 300 characters.

## Your Task
You are interviewing %s for this position:

Job Details:
- Job Title: %s
`, seed.OrgName, seed.TargetName, seed.JobTitle)

	if seed.JobSummary != "" {
		fmt.Fprintf(&b, "- Summary: %s\n", seed.JobSummary)
	}
	if len(seed.JobBullets) > 0 {
		b.WriteString("- Key Points:\n")
		for _, point := range seed.JobBullets {
			fmt.Fprintf(&b, "  * %s\n", point)
		}
	}
	if seed.JobLocation != "" {
		fmt.Fprintf(&b, "- Location: %s\n", seed.JobLocation)
	}

	b.WriteString("\n## Interview Flow\n\n")
	if len(seed.Questions) > 0 {
		b.WriteString("### Primary Questions (MUST ASK FIRST)\n\nAsk these questions in order:\n\n")
		for i, q := range seed.Questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
		b.WriteString(`
Primary Question Rules:
- Ask ONE question at a time and wait for the candidate's response.
- Accept yes/no or brief answers.
- If the candidate answers NO to any primary question, end the interview as unsuccessful.
`)
	}

	b.WriteString(`
### Additional Questions
After primary questions, briefly ask about availability, ability to commute to the location, salary expectations, and any questions they have.

## Critical Rules
- MAXIMUM 300 characters per message.
- Ask ONE question at a time.
- No greetings like "how can I help" - you're conducting an interview.
- Say "20 pounds per hour" not "£20ph"; use 12-hour times like "8 am".

## Ending the Interview
When the interview should end, include EXACTLY one of these tags:

[END_INTERVIEW:unsuccessful] - candidate answered NO to a primary question, is not qualified, or declined to continue. Close with: "Thanks for your time. Unfortunately, you don't meet the requirements for this role. Feel free to apply for other positions with us. All the best!"

[END_INTERVIEW:successful] - candidate answered all questions satisfactorily and meets the requirements. Close with: "Excellent! You'll receive further instructions soon to submit your ID and certificates. Thanks for your time!"

Always include the tag when ending; it signals the system to mark the conversation complete.
`)
	return b.String()
}
