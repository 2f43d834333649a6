package snn

import (
	"errors"
	"fmt"

	"snnfault/internal/model"
)

var (
	ErrShapeMismatch       = errors.New("layer shape mismatch")
	ErrNegativeWeight      = errors.New("inbound weight must be >= 0")
	ErrPositiveIntraWeight = errors.New("intra weight must be <= 0")
	ErrNonBinarySpike      = errors.New("spike value must be 0 or 1")
	ErrOutputMismatch      = errors.New("output events do not match input duration")
	ErrEmptyNetwork        = errors.New("network has no layers")
)

// EncodeInput converts a [t][i] spike matrix into one event per timestep.
func EncodeInput(spikes [][]uint8, width int) ([]model.SpikeEvent, error) {
	events := make([]model.SpikeEvent, 0, len(spikes))
	for ts, row := range spikes {
		if len(row) != width {
			return nil, fmt.Errorf("%w: input row %d has %d values, want %d", ErrShapeMismatch, ts, len(row), width)
		}
		for i, s := range row {
			if s != 0 && s != 1 {
				return nil, fmt.Errorf("%w: input[%d][%d]=%d", ErrNonBinarySpike, ts, i, s)
			}
		}
		events = append(events, model.SpikeEvent{Timestamp: ts, Spikes: append([]uint8(nil), row...)})
	}
	return events, nil
}

// DecodeOutput converts the final layer's events back into a [t][j] matrix.
// Exactly one event per timestep is required.
func DecodeOutput(events []model.SpikeEvent, duration, width int) ([][]uint8, error) {
	if len(events) != duration {
		return nil, fmt.Errorf("%w: got %d events, want %d", ErrOutputMismatch, len(events), duration)
	}
	out := make([][]uint8, duration)
	for _, ev := range events {
		if len(ev.Spikes) != width {
			return nil, fmt.Errorf("%w: event %d has %d spikes, want %d", ErrOutputMismatch, ev.Timestamp, len(ev.Spikes), width)
		}
		if ev.Timestamp < 0 || ev.Timestamp >= duration || out[ev.Timestamp] != nil {
			return nil, fmt.Errorf("%w: unexpected timestamp %d", ErrOutputMismatch, ev.Timestamp)
		}
		out[ev.Timestamp] = append([]uint8(nil), ev.Spikes...)
	}
	return out, nil
}
