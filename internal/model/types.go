package model

import (
	"encoding/json"
	"fmt"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// SpikeEvent is one timestep's binary output vector from a layer.
type SpikeEvent struct {
	Timestamp int     `json:"ts"`
	Spikes    []uint8 `json:"spikes"`
}

// SpikeMatrix is a [t][i] spike matrix. It encodes as nested JSON arrays
// instead of base64 rows.
type SpikeMatrix [][]uint8

func (m SpikeMatrix) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	rows := make([][]int, len(m))
	for t, row := range m {
		rows[t] = make([]int, len(row))
		for i, s := range row {
			rows[t][i] = int(s)
		}
	}
	return json.Marshal(rows)
}

func (m *SpikeMatrix) UnmarshalJSON(data []byte) error {
	var rows [][]int
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if rows == nil {
		*m = nil
		return nil
	}
	out := make(SpikeMatrix, len(rows))
	for t, row := range rows {
		out[t] = make([]uint8, len(row))
		for i, s := range row {
			if s < 0 || s > 255 {
				return fmt.Errorf("spike value out of range at [%d][%d]: %d", t, i, s)
			}
			out[t][i] = uint8(s)
		}
	}
	*m = out
	return nil
}

// FaultSpec describes the single fault placed into a network at build time.
// Weight is the column inside the target neuron's row and is -1 for
// components that do not carry weights. InputA and InputB select the faulted
// operands of the input-side arithmetic components.
type FaultSpec struct {
	Component Component `json:"component"`
	Kind      ErrorKind `json:"error_kind"`
	Bit       uint      `json:"bit"`
	Layer     int       `json:"layer"`
	Neuron    int       `json:"neuron"`
	Weight    int       `json:"weight"`
	InputA    bool      `json:"input_a,omitempty"`
	InputB    bool      `json:"input_b,omitempty"`
}

// Persistent reports whether the fault is applied at build time rather than
// fired once during processing.
func (f FaultSpec) Persistent() bool {
	return f.Kind == ErrorStuckAt0 || f.Kind == ErrorStuckAt1
}

type TrialRecord struct {
	VersionedRecord
	CampaignID  string     `json:"campaign_id"`
	Index       int        `json:"index"`
	Seed        int64      `json:"seed"`
	Fault       *FaultSpec `json:"fault,omitempty"`
	FireTime    int        `json:"fire_time"`
	Accuracy    float64    `json:"accuracy"`
	Degradation float64    `json:"degradation"`
	DurationMS  float64    `json:"duration_ms"`
}

type CampaignRecord struct {
	VersionedRecord
	ID           string      `json:"id"`
	CreatedAtUTC string      `json:"created_at_utc"`
	NeuronModel  string      `json:"neuron_model"`
	Layers       []int       `json:"layers"`
	Components   []Component `json:"components"`
	ErrorKind    ErrorKind   `json:"error_kind"`
	Trials       int         `json:"trials"`
	Seed         int64       `json:"seed"`
	Workers      int         `json:"workers"`
	Input        SpikeMatrix `json:"input"`
	Baseline     SpikeMatrix `json:"baseline"`
}
