package storage

import (
	"encoding/json"
	"errors"

	"snnfault/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp written on every new record.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeCampaign(c model.CampaignRecord) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeCampaign(data []byte) (model.CampaignRecord, error) {
	var campaign model.CampaignRecord
	if err := json.Unmarshal(data, &campaign); err != nil {
		return model.CampaignRecord{}, err
	}
	if err := checkVersion(campaign.VersionedRecord); err != nil {
		return model.CampaignRecord{}, err
	}
	return campaign, nil
}

func EncodeTrial(t model.TrialRecord) ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTrial(data []byte) (model.TrialRecord, error) {
	var trial model.TrialRecord
	if err := json.Unmarshal(data, &trial); err != nil {
		return model.TrialRecord{}, err
	}
	if err := checkVersion(trial.VersionedRecord); err != nil {
		return model.TrialRecord{}, err
	}
	return trial, nil
}

func EncodeTrials(trials []model.TrialRecord) ([]byte, error) {
	return json.Marshal(trials)
}

func DecodeTrials(data []byte) ([]model.TrialRecord, error) {
	var trials []model.TrialRecord
	if err := json.Unmarshal(data, &trials); err != nil {
		return nil, err
	}
	for _, trial := range trials {
		if err := checkVersion(trial.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return trials, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
