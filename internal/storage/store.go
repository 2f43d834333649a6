package storage

import (
	"context"

	"snnfault/internal/model"
)

// Store persists fault-injection campaigns and their per-trial results.
type Store interface {
	Init(ctx context.Context) error
	SaveCampaign(ctx context.Context, campaign model.CampaignRecord) error
	GetCampaign(ctx context.Context, id string) (model.CampaignRecord, bool, error)
	// ListCampaigns returns every campaign, newest first.
	ListCampaigns(ctx context.Context) ([]model.CampaignRecord, error)
	// SaveTrials replaces the stored trials of a campaign.
	SaveTrials(ctx context.Context, campaignID string, trials []model.TrialRecord) error
	// GetTrials returns a campaign's trials ordered by index.
	GetTrials(ctx context.Context, campaignID string) ([]model.TrialRecord, bool, error)
}
