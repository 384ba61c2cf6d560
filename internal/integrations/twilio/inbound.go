package twilio

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMalformedPayload marks an inbound webhook missing its sender or body.
var ErrMalformedPayload = errors.New("twilio: malformed inbound payload")

// InboundMessage is the canonical form of one SMS or WhatsApp delivery.
type InboundMessage struct {
	From string
	Body string
}

// EmptyTwiML is the acknowledgment envelope Twilio webhooks must answer
// with regardless of processing outcome.
const EmptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// ParseInbound normalizes a Twilio messaging webhook form post: fields
// "From" and "Body", with WhatsApp senders carrying a "whatsapp:" prefix
// that is stripped before normalization.
func ParseInbound(form url.Values) (InboundMessage, error) {
	from := form.Get("From")
	from = strings.TrimPrefix(from, "whatsapp:")
	from = NormalizeNumber(from)
	if from == "" {
		return InboundMessage{}, errors.Join(ErrMalformedPayload, errors.New("missing sender number"))
	}

	body := strings.TrimSpace(form.Get("Body"))
	if body == "" {
		return InboundMessage{}, errors.Join(ErrMalformedPayload, errors.New("missing message body"))
	}

	return InboundMessage{From: from, Body: body}, nil
}

// ParseTranscript normalizes a voice transcription callback: the caller in
// "From" and the transcribed utterance in "TranscriptionText".
func ParseTranscript(form url.Values) (InboundMessage, error) {
	from := NormalizeNumber(form.Get("From"))
	if from == "" {
		return InboundMessage{}, errors.Join(ErrMalformedPayload, errors.New("missing caller number"))
	}

	body := strings.TrimSpace(form.Get("TranscriptionText"))
	if body == "" {
		return InboundMessage{}, errors.Join(ErrMalformedPayload, errors.New("missing transcription text"))
	}

	return InboundMessage{From: from, Body: body}, nil
}

// NormalizeNumber strips spacing and dashes and ensures a leading plus so
// numbers compare equal to the E.164 form trackers are keyed by.
func NormalizeNumber(number string) string {
	number = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
	if number == "" {
		return ""
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return number
}
