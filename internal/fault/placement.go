package fault

import (
	"errors"
	"fmt"
	"math/rand"

	"snnfault/internal/model"
)

// LayerShape is the placement view of one layer: its neuron count and the
// width of each inbound weight row.
type LayerShape struct {
	Neurons int
	Inputs  int
}

var errNoNeurons = errors.New("network has no neurons")

// PickComponent selects one component uniformly from the allow-list.
func PickComponent(rng *rand.Rand, components []model.Component) model.Component {
	return components[rng.Intn(len(components))]
}

// PickNeuron selects a (layer, neuron) pair uniformly across every neuron of
// the network.
func PickNeuron(rng *rand.Rand, shapes []LayerShape) (int, int) {
	total := 0
	for _, s := range shapes {
		total += s.Neurons
	}
	if total == 0 {
		panic(errNoNeurons)
	}
	idx := rng.Intn(total)
	for layer, s := range shapes {
		if idx < s.Neurons {
			return layer, idx
		}
		idx -= s.Neurons
	}
	panic("unreachable neuron index")
}

// PickWeight selects a column inside a weight row of the given width.
func PickWeight(rng *rand.Rand, width int) int {
	if width <= 0 {
		panic("empty weight row")
	}
	return rng.Intn(width)
}

// PickIntraWeight selects a recurrent column of neuron self's row other than
// the self-connection, which is never read. A single-neuron layer only has
// the diagonal cell.
func PickIntraWeight(rng *rand.Rand, neurons, self int) int {
	if neurons <= 1 {
		return PickWeight(rng, neurons)
	}
	col := rng.Intn(neurons - 1)
	if col >= self {
		col++
	}
	return col
}

// PickBit selects a bit position uniformly in [0, BitWidth).
func PickBit(rng *rand.Rand) uint {
	return uint(rng.Intn(BitWidth))
}

// PickSides selects uniformly among left-only, right-only and both operands.
func PickSides(rng *rand.Rand) (bool, bool) {
	switch rng.Intn(3) {
	case 0:
		return true, false
	case 1:
		return false, true
	default:
		return true, true
	}
}

// PickFireTime selects the timestep at which a transient fault fires.
func PickFireTime(rng *rand.Rand, duration int) int {
	if duration <= 0 {
		panic("fire time requested for empty input")
	}
	return rng.Intn(duration)
}

// Place draws a complete fault for the network described by shapes. Draw order
// is component, (layer, neuron), weight column, bit, operand sides so a fixed
// seed always yields the same spec.
func Place(rng *rand.Rand, components []model.Component, kind model.ErrorKind, shapes []LayerShape) (model.FaultSpec, error) {
	if rng == nil {
		return model.FaultSpec{}, errors.New("random source is required")
	}
	if len(components) == 0 {
		return model.FaultSpec{}, errors.New("at least one component is required")
	}
	for _, c := range components {
		if !c.Valid() {
			return model.FaultSpec{}, fmt.Errorf("%w: %d", ErrUnknownComponent, int(c))
		}
	}
	if !kind.Valid() {
		return model.FaultSpec{}, fmt.Errorf("%w: %d", ErrUnknownErrorKind, int(kind))
	}
	total := 0
	for _, s := range shapes {
		total += s.Neurons
	}
	if total == 0 {
		return model.FaultSpec{}, errNoNeurons
	}

	spec := model.FaultSpec{Kind: kind, Weight: -1}
	spec.Component = PickComponent(rng, components)
	spec.Layer, spec.Neuron = PickNeuron(rng, shapes)
	switch spec.Component {
	case model.ComponentInboundWeight:
		spec.Weight = PickWeight(rng, shapes[spec.Layer].Inputs)
	case model.ComponentIntraWeight:
		spec.Weight = PickIntraWeight(rng, shapes[spec.Layer].Neurons, spec.Neuron)
	}
	spec.Bit = PickBit(rng)
	if spec.Component.InputSide() {
		spec.InputA, spec.InputB = PickSides(rng)
	}
	return spec, nil
}
