package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"recruit-agent/internal/domain"
)

// trackerRow is the persisted shape of a domain.Tracker. The conversation
// log and external refs are stored as JSON columns; the composite unique
// index enforces the one-tracker-per-(campaign, org, identity) invariant.
type trackerRow struct {
	ID             int64  `gorm:"primaryKey"`
	Campaign       string `gorm:"size:32;uniqueIndex:idx_tracker_target,priority:1"`
	OrgID          int64  `gorm:"uniqueIndex:idx_tracker_target,priority:2"`
	TargetIdentity string `gorm:"size:255;uniqueIndex:idx_tracker_target,priority:3;index:idx_tracker_identity"`
	ExternalRef    []byte `gorm:"type:jsonb"`
	Instructions   string `gorm:"type:text"`
	Log            []byte `gorm:"type:jsonb"`
	MessageCount   int
	Status         string  `gorm:"size:16"`
	Decision       *string `gorm:"size:32"`
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (trackerRow) TableName() string { return "conversation_trackers" }

// configRow is the persisted per-organization campaign configuration.
type configRow struct {
	ID       int64  `gorm:"primaryKey"`
	Campaign string `gorm:"size:32;uniqueIndex:idx_config_org,priority:1"`
	OrgID    int64  `gorm:"uniqueIndex:idx_config_org,priority:2"`
	OrgName  string `gorm:"size:255"`
	Enabled  bool

	Interval string `gorm:"size:16"`

	UseLastApplicationDate bool
	UseLastPlacementDate   bool
	UseActivityDate        bool
	UseLastNoteDate        bool
	UseRecordUpdateDate    bool

	StatusWhenSent         int64
	StatusWhenSuccessful   int64
	StatusWhenUnsuccessful int64

	SenderEmail    string `gorm:"size:255"`
	SenderPhone    string `gorm:"size:32"`
	WhatsAppSID    string `gorm:"size:64"`
	PrimaryPrompts []byte `gorm:"type:jsonb"`

	StaggerSeconds int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (configRow) TableName() string { return "campaign_configs" }

// Outbox states.
const (
	OutboxPending = "pending"
	OutboxDone    = "done"
	OutboxFailed  = "failed"
)

// OutboxRow is a pending external side effect recorded in the same
// transaction as the decision that caused it. A drainer propagates it to
// the platform so local and external state cannot diverge permanently.
type OutboxRow struct {
	ID            int64  `gorm:"primaryKey"`
	Campaign      string `gorm:"size:32"`
	OrgID         int64
	TrackerID     int64
	ApplicationID int64
	StatusID      int64
	State         string `gorm:"size:16;index:idx_outbox_state"`
	Attempts      int
	LastError     string `gorm:"type:text"`
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (OutboxRow) TableName() string { return "decision_outbox" }

// AutoMigrate creates or updates the schema for every table this package
// owns.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&trackerRow{}, &configRow{}, &OutboxRow{}); err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}

func trackerToRow(t *domain.Tracker) (trackerRow, error) {
	logJSON, err := json.Marshal(t.Log)
	if err != nil {
		return trackerRow{}, fmt.Errorf("repository: marshal conversation log: %w", err)
	}
	refJSON, err := json.Marshal(t.ExternalRef)
	if err != nil {
		return trackerRow{}, fmt.Errorf("repository: marshal external ref: %w", err)
	}
	return trackerRow{
		ID:             t.ID,
		Campaign:       string(t.Campaign),
		OrgID:          t.OrgID,
		TargetIdentity: t.TargetIdentity,
		ExternalRef:    refJSON,
		Instructions:   t.Instructions,
		Log:            logJSON,
		MessageCount:   t.MessageCount,
		Status:         string(t.Status),
		Decision:       t.Decision,
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}, nil
}

func rowToTracker(row trackerRow) (*domain.Tracker, error) {
	var log []domain.Turn
	if len(row.Log) > 0 {
		if err := json.Unmarshal(row.Log, &log); err != nil {
			return nil, fmt.Errorf("repository: unmarshal conversation log: %w", err)
		}
	}
	var ref domain.ExternalRef
	if len(row.ExternalRef) > 0 {
		if err := json.Unmarshal(row.ExternalRef, &ref); err != nil {
			return nil, fmt.Errorf("repository: unmarshal external ref: %w", err)
		}
	}
	return &domain.Tracker{
		ID:             row.ID,
		Campaign:       domain.CampaignKind(row.Campaign),
		OrgID:          row.OrgID,
		TargetIdentity: row.TargetIdentity,
		ExternalRef:    ref,
		Instructions:   row.Instructions,
		Log:            log,
		MessageCount:   row.MessageCount,
		Status:         domain.Status(row.Status),
		Decision:       row.Decision,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

func rowToConfig(row configRow) (domain.CampaignConfig, error) {
	var prompts []string
	if len(row.PrimaryPrompts) > 0 {
		if err := json.Unmarshal(row.PrimaryPrompts, &prompts); err != nil {
			return domain.CampaignConfig{}, fmt.Errorf("repository: unmarshal primary prompts: %w", err)
		}
	}
	return domain.CampaignConfig{
		ID:                     row.ID,
		Campaign:               domain.CampaignKind(row.Campaign),
		OrgID:                  row.OrgID,
		OrgName:                row.OrgName,
		Enabled:                row.Enabled,
		Interval:               domain.Interval(row.Interval),
		UseLastApplicationDate: row.UseLastApplicationDate,
		UseLastPlacementDate:   row.UseLastPlacementDate,
		UseActivityDate:        row.UseActivityDate,
		UseLastNoteDate:        row.UseLastNoteDate,
		UseRecordUpdateDate:    row.UseRecordUpdateDate,
		StatusWhenSent:         row.StatusWhenSent,
		StatusWhenSuccessful:   row.StatusWhenSuccessful,
		StatusWhenUnsuccessful: row.StatusWhenUnsuccessful,
		SenderEmail:            row.SenderEmail,
		SenderPhone:            row.SenderPhone,
		WhatsAppSID:            row.WhatsAppSID,
		PrimaryPrompts:         prompts,
		StaggerSeconds:         row.StaggerSeconds,
		UpdatedAt:              row.UpdatedAt,
	}, nil
}
