package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"snnfault/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	campaigns   map[string]model.CampaignRecord
	trials      map[string][]model.TrialRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.campaigns = make(map[string]model.CampaignRecord)
	s.trials = make(map[string][]model.TrialRecord)
	return nil
}

func (s *MemoryStore) SaveCampaign(_ context.Context, campaign model.CampaignRecord) error {
	if campaign.ID == "" {
		return errors.New("campaign id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.campaigns[campaign.ID] = cloneCampaign(campaign)
	return nil
}

func (s *MemoryStore) GetCampaign(_ context.Context, id string) (model.CampaignRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaign, ok := s.campaigns[id]
	if !ok {
		return model.CampaignRecord{}, false, nil
	}
	return cloneCampaign(campaign), true, nil
}

func (s *MemoryStore) ListCampaigns(_ context.Context) ([]model.CampaignRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CampaignRecord, 0, len(s.campaigns))
	for _, campaign := range s.campaigns {
		out = append(out, cloneCampaign(campaign))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC == out[j].CreatedAtUTC {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAtUTC > out[j].CreatedAtUTC
	})
	return out, nil
}

func (s *MemoryStore) SaveTrials(_ context.Context, campaignID string, trials []model.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	copied := cloneTrials(trials)
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Index < copied[j].Index })
	s.trials[campaignID] = copied
	return nil
}

func (s *MemoryStore) GetTrials(_ context.Context, campaignID string) ([]model.TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials, ok := s.trials[campaignID]
	if !ok {
		return nil, false, nil
	}
	return cloneTrials(trials), true, nil
}

func cloneCampaign(c model.CampaignRecord) model.CampaignRecord {
	c.Layers = append([]int(nil), c.Layers...)
	c.Components = append([]model.Component(nil), c.Components...)
	c.Input = cloneMatrix(c.Input)
	c.Baseline = cloneMatrix(c.Baseline)
	return c
}

func cloneMatrix(m model.SpikeMatrix) model.SpikeMatrix {
	if m == nil {
		return nil
	}
	out := make(model.SpikeMatrix, len(m))
	for i, row := range m {
		out[i] = append([]uint8(nil), row...)
	}
	return out
}

func cloneTrials(trials []model.TrialRecord) []model.TrialRecord {
	out := make([]model.TrialRecord, len(trials))
	copy(out, trials)
	for i := range out {
		if out[i].Fault != nil {
			spec := *out[i].Fault
			out[i].Fault = &spec
		}
	}
	return out
}
