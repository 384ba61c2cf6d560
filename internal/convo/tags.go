package convo

import "strings"

// Tag declares one sentinel substring the LLM may embed in a reply and the
// decision value it carries.
type Tag struct {
	Sentinel string // e.g. "[CONSENT:granted]"
	Decision string // e.g. "granted"
}

// TagSet is the closed, ordered set of sentinels a campaign recognizes.
// Order matters: when a reply contains more than one sentinel, the first
// declared tag that appears wins and only its occurrences are stripped.
type TagSet []Tag

// Parse scans reply for the tag set's sentinels. It returns the visible
// reply with the matched sentinel removed and the decision it carries, or
// the reply unchanged and nil when no sentinel is present.
func (ts TagSet) Parse(reply string) (string, *string) {
	for _, tag := range ts {
		if !strings.Contains(reply, tag.Sentinel) {
			continue
		}
		visible := strings.TrimSpace(strings.ReplaceAll(reply, tag.Sentinel, ""))
		decision := tag.Decision
		return visible, &decision
	}
	return reply, nil
}

// Decisions returns the decision values the set can produce, in declaration
// order.
func (ts TagSet) Decisions() []string {
	out := make([]string, 0, len(ts))
	for _, tag := range ts {
		out = append(out, tag.Decision)
	}
	return out
}
