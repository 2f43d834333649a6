package stats

import "snnfault/internal/model"

func sampleCampaign() model.CampaignRecord {
	return model.CampaignRecord{
		ID:           "campaign-abc",
		CreatedAtUTC: "2026-01-02T03:04:05Z",
		NeuronModel:  "lif",
		Layers:       []int{2},
		Components:   []model.Component{model.ComponentThreshold, model.ComponentAdderInput},
		ErrorKind:    model.ErrorTransientFlip,
		Trials:       3,
		Seed:         7,
		Workers:      2,
		Input:        model.SpikeMatrix{{1}, {0}},
		Baseline:     model.SpikeMatrix{{1, 1}, {0, 0}},
	}
}

func sampleTrials() []model.TrialRecord {
	return []model.TrialRecord{
		{
			CampaignID:  "campaign-abc",
			Index:       2,
			Seed:        9,
			Fault:       &model.FaultSpec{Component: model.ComponentAdderInput, Kind: model.ErrorTransientFlip, Bit: 52, Layer: 0, Neuron: 1, Weight: -1, InputA: true},
			FireTime:    1,
			Accuracy:    0.5,
			Degradation: 50,
		},
		{
			CampaignID:  "campaign-abc",
			Index:       0,
			Seed:        7,
			Fault:       &model.FaultSpec{Component: model.ComponentThreshold, Kind: model.ErrorTransientFlip, Bit: 3, Layer: 0, Neuron: 0, Weight: -1},
			FireTime:    0,
			Accuracy:    1,
			Degradation: 0,
		},
		{
			CampaignID:  "campaign-abc",
			Index:       1,
			Seed:        8,
			Fault:       &model.FaultSpec{Component: model.ComponentThreshold, Kind: model.ErrorTransientFlip, Bit: 62, Layer: 0, Neuron: 1, Weight: -1},
			FireTime:    0,
			Accuracy:    0.75,
			Degradation: 25,
		},
	}
}
