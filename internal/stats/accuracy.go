package stats

import (
	"errors"
	"fmt"
	"math"
)

var ErrShapeMismatch = errors.New("spike matrix shape mismatch")

// Accuracy returns the fraction of spike cells in observed that match
// baseline. Two empty matrices match fully.
func Accuracy(baseline, observed [][]uint8) (float64, error) {
	if len(baseline) != len(observed) {
		return 0, fmt.Errorf("%w: %d timesteps vs %d", ErrShapeMismatch, len(baseline), len(observed))
	}
	total, matched := 0, 0
	for t := range baseline {
		if len(baseline[t]) != len(observed[t]) {
			return 0, fmt.Errorf("%w: timestep %d has %d vs %d spikes", ErrShapeMismatch, t, len(baseline[t]), len(observed[t]))
		}
		for j := range baseline[t] {
			total++
			if baseline[t][j] == observed[t][j] {
				matched++
			}
		}
	}
	if total == 0 {
		return 1, nil
	}
	return float64(matched) / float64(total), nil
}

// Degradation converts an accuracy ratio into a percentage loss.
func Degradation(accuracy float64) float64 {
	return (1 - accuracy) * 100
}

// Truncate2 truncates v toward negative infinity at two decimals.
func Truncate2(v float64) float64 {
	return math.Floor(v*100) / 100
}
