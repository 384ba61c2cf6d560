package domain

import "time"

// CampaignKind discriminates the conversation flows this service runs.
type CampaignKind string

const (
	CampaignGDPREmail         CampaignKind = "GDPR_EMAIL"
	CampaignAWREmail          CampaignKind = "AWR_EMAIL"
	CampaignSMSInterview      CampaignKind = "SMS_INTERVIEW"
	CampaignWhatsAppInterview CampaignKind = "WHATSAPP_INTERVIEW"
	CampaignPhoneInterview    CampaignKind = "PHONE_INTERVIEW"
)

// Channel is the transport a campaign speaks over.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Interval is the configured minimum gap between contact cycles.
type Interval string

const (
	IntervalSixMonths       Interval = "6_MONTH"
	IntervalTwelveMonths    Interval = "12_MONTH"
	IntervalTwentyFourMonth Interval = "24_MONTH"
	IntervalThirtySixMonth  Interval = "36_MONTH"
	IntervalFortyEightMonth Interval = "48_MONTH"
)

// Duration maps an interval to its canonical day count. The source system
// disagreed with itself on 12 months (360 vs 365 days); 365 is canonical
// here and pinned by test.
func (i Interval) Duration() time.Duration {
	day := 24 * time.Hour
	switch i {
	case IntervalSixMonths:
		return 180 * day
	case IntervalTwentyFourMonth:
		return 730 * day
	case IntervalThirtySixMonth:
		return 1095 * day
	case IntervalFortyEightMonth:
		return 1460 * day
	default:
		return 365 * day
	}
}

// CampaignConfig is the per-organization configuration record a tracker's
// ConfigRef points at.
type CampaignConfig struct {
	ID       int64
	Campaign CampaignKind
	OrgID    int64
	OrgName  string
	Enabled  bool

	Interval Interval

	// Last-action signals the eligibility gate may consult.
	UseLastApplicationDate bool
	UseLastPlacementDate   bool
	UseActivityDate        bool
	UseLastNoteDate        bool
	UseRecordUpdateDate    bool

	// Platform application status ids the dispatcher writes.
	StatusWhenSent         int64
	StatusWhenSuccessful   int64
	StatusWhenUnsuccessful int64

	// Transport identities.
	SenderEmail    string
	SenderPhone    string
	WhatsAppSID    string // template content SID for the opening message
	PrimaryPrompts []string

	// Seconds between consecutive scheduled initiations in a bulk scan.
	StaggerSeconds int

	UpdatedAt time.Time
}
