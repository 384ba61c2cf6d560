package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"recruit-agent/internal/domain"
)

// ConfigStore reads per-organization campaign configurations.
type ConfigStore struct {
	db *gorm.DB
}

// NewConfigStore creates a ConfigStore.
func NewConfigStore(db *gorm.DB) (*ConfigStore, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &ConfigStore{db: db}, nil
}

// Get fetches the configuration for a (campaign, org) pair. Missing
// configuration is ErrNotFound; tasks exit early on it without writing
// partial state.
func (s *ConfigStore) Get(ctx context.Context, campaign domain.CampaignKind, orgID int64) (domain.CampaignConfig, error) {
	var row configRow
	err := s.db.WithContext(ctx).
		Where("campaign = ? AND org_id = ?", string(campaign), orgID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.CampaignConfig{}, ErrNotFound
	}
	if err != nil {
		return domain.CampaignConfig{}, fmt.Errorf("repository: get config: %w", err)
	}
	return rowToConfig(row)
}

// ListEnabled returns every enabled configuration for a campaign, across
// organizations. The bulk scan iterates these.
func (s *ConfigStore) ListEnabled(ctx context.Context, campaign domain.CampaignKind) ([]domain.CampaignConfig, error) {
	var rows []configRow
	err := s.db.WithContext(ctx).
		Where("campaign = ? AND enabled = ?", string(campaign), true).
		Order("org_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list configs: %w", err)
	}
	out := make([]domain.CampaignConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := rowToConfig(row)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}
