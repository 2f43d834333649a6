package campaign

import (
	"context"
	"fmt"
	"math/rand"

	"snnfault/internal/model"
	"snnfault/internal/snn"
	"snnfault/internal/stats"
)

// Simulation is the outcome of one network run scored against the
// fault-free output of the same topology.
type Simulation struct {
	Output      [][]uint8
	Baseline    [][]uint8
	Fault       *model.FaultSpec
	FireTime    int
	Accuracy    float64
	Degradation float64
}

// Baseline processes input through a fault-free build of builder.
func Baseline(ctx context.Context, builder *snn.Builder, input [][]uint8) ([][]uint8, error) {
	if builder == nil {
		return nil, ErrNilBuilder
	}
	net, err := builder.Build(nil, nil, model.ErrorNone)
	if err != nil {
		return nil, err
	}
	return net.Process(ctx, input)
}

// Simulate runs the fault-free baseline and one build with a fault drawn
// from seed, and scores the faulted output against the baseline.
func Simulate(ctx context.Context, builder *snn.Builder, input [][]uint8, seed int64, components []model.Component, kind model.ErrorKind) (Simulation, error) {
	baseline, err := Baseline(ctx, builder, input)
	if err != nil {
		return Simulation{}, fmt.Errorf("baseline: %w", err)
	}
	return simulate(ctx, builder, input, baseline, rand.New(rand.NewSource(seed)), components, kind)
}

func simulate(ctx context.Context, builder *snn.Builder, input, baseline [][]uint8, rng *rand.Rand, components []model.Component, kind model.ErrorKind) (Simulation, error) {
	net, err := builder.Build(rng, components, kind)
	if err != nil {
		return Simulation{}, fmt.Errorf("build: %w", err)
	}
	out, err := net.Process(ctx, input)
	if err != nil {
		return Simulation{}, fmt.Errorf("process: %w", err)
	}
	acc, err := stats.Accuracy(baseline, out)
	if err != nil {
		return Simulation{}, err
	}
	sim := Simulation{
		Output:      out,
		Baseline:    baseline,
		FireTime:    net.FireTime(),
		Accuracy:    acc,
		Degradation: stats.Degradation(acc),
	}
	if spec, ok := net.Fault(); ok {
		sim.Fault = &spec
	}
	return sim, nil
}
