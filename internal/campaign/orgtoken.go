package campaign

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Email campaigns correlate replies without a session store by embedding an
// organization token in the subject line: [ORG-<urlsafe base64 of org id>].

var orgTokenPattern = regexp.MustCompile(`\[ORG-[A-Za-z0-9_=-]+\]`)

// EncodeOrgToken renders the subject token for an organization id.
func EncodeOrgToken(orgID int64) string {
	encoded := base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(orgID, 10)))
	return "ORG-" + encoded
}

// DecodeOrgToken parses a bare ORG-<base64> token back to the org id.
func DecodeOrgToken(token string) (int64, error) {
	rest, ok := strings.CutPrefix(token, "ORG-")
	if !ok {
		return 0, fmt.Errorf("campaign: token %q missing ORG- prefix", token)
	}
	raw, err := base64.URLEncoding.DecodeString(rest)
	if err != nil {
		return 0, fmt.Errorf("campaign: decode org token: %w", err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("campaign: org token payload is not an id: %w", err)
	}
	return id, nil
}

// OrgIDFromSubject scans an email subject for a bracketed organization
// token and decodes it.
func OrgIDFromSubject(subject string) (int64, error) {
	match := orgTokenPattern.FindString(subject)
	if match == "" {
		return 0, fmt.Errorf("campaign: no organization token in subject %q", subject)
	}
	return DecodeOrgToken(strings.Trim(match, "[]"))
}
