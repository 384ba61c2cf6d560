package sendgrid

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMalformedPayload marks an inbound webhook whose required fields are
// absent. The webhook handler maps it to HTTP 400.
var ErrMalformedPayload = errors.New("sendgrid: malformed inbound payload")

// InboundEmail is the canonical form of one Inbound Parse delivery.
type InboundEmail struct {
	From    string
	Subject string
	Body    string
}

// ParseInbound normalizes a SendGrid Inbound Parse form post. SendGrid
// sends form-encoded fields, not JSON: "from", "subject", and a "text" or
// "html" body. Missing sender or body fails with ErrMalformedPayload.
func ParseInbound(form url.Values) (InboundEmail, error) {
	from := extractAddress(form.Get("from"))
	if from == "" {
		return InboundEmail{}, errors.Join(ErrMalformedPayload, errors.New("missing sender email address"))
	}

	body := strings.TrimSpace(form.Get("text"))
	if body == "" {
		body = strings.TrimSpace(form.Get("html"))
	}
	if body == "" {
		return InboundEmail{}, errors.Join(ErrMalformedPayload, errors.New("missing email message body"))
	}

	return InboundEmail{
		From:    from,
		Subject: form.Get("subject"),
		Body:    body,
	}, nil
}

// extractAddress reduces "Display Name <user@host>" to the bare address.
func extractAddress(from string) string {
	from = strings.TrimSpace(from)
	if open := strings.LastIndex(from, "<"); open != -1 {
		if end := strings.LastIndex(from, ">"); end > open {
			from = from[open+1 : end]
		}
	}
	return strings.ToLower(strings.TrimSpace(from))
}
