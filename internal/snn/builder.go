package snn

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"snnfault/internal/fault"
	"snnfault/internal/logging"
	"snnfault/internal/model"
)

// Builder accumulates layer topology in declaration order. Neurons, inbound
// weights and intra weights are added per layer by separate calls. Build only
// reads builder state, so one Builder can serve concurrent trials.
type Builder struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	neurons [][]Neuron
	weights [][][]float64
	intra   [][][]float64
}

func NewBuilder() *Builder {
	return &Builder{logger: logging.Discard()}
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.mu.Lock()
	b.logger = logging.OrDiscard(logger)
	b.mu.Unlock()
	return b
}

// AddNeurons appends the neurons of the next layer.
func (b *Builder) AddNeurons(neurons []Neuron) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.neurons = append(b.neurons, cloneNeurons(neurons))
}

// AddWeights appends the next layer's inbound weights, [neuron][input].
func (b *Builder) AddWeights(weights [][]float64) error {
	for i, row := range weights {
		for j, w := range row {
			if !(w >= 0) {
				return fmt.Errorf("%w: weights[%d][%d]=%g", ErrNegativeWeight, i, j, w)
			}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.weights = append(b.weights, cloneMatrix(weights))
	return nil
}

// AddIntraWeights appends the next layer's recurrent weights,
// [neuron][neuron]. The diagonal is never used and is not checked.
func (b *Builder) AddIntraWeights(weights [][]float64) error {
	for i, row := range weights {
		for j, w := range row {
			if i != j && !(w <= 0) {
				return fmt.Errorf("%w: intra_weights[%d][%d]=%g", ErrPositiveIntraWeight, i, j, w)
			}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.intra = append(b.intra, cloneMatrix(weights))
	return nil
}

// AddLayer adds neurons, inbound weights and intra weights in one step.
func (b *Builder) AddLayer(neurons []Neuron, weights, intra [][]float64) error {
	if err := b.AddWeights(weights); err != nil {
		return err
	}
	if err := b.AddIntraWeights(intra); err != nil {
		b.mu.Lock()
		b.weights = b.weights[:len(b.weights)-1]
		b.mu.Unlock()
		return err
	}
	b.AddNeurons(neurons)
	return nil
}

// Shapes returns the placement view of the accumulated layers.
func (b *Builder) Shapes() ([]fault.LayerShape, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.validateLocked(); err != nil {
		return nil, err
	}
	return b.shapesLocked(), nil
}

// Build validates the topology and returns a runnable network. When
// components is non-empty and kind is not ErrorNone, one fault is placed with
// rng. Persistent faults are applied before the network is returned;
// transient faults are attached to their layer and fire during Process. The
// network keeps rng to pick fire times.
func (b *Builder) Build(rng *rand.Rand, components []model.Component, kind model.ErrorKind) (*Network, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.validateLocked(); err != nil {
		return nil, err
	}

	layers := make([]*Layer, len(b.neurons))
	for i := range b.neurons {
		layers[i] = newLayer(cloneNeurons(b.neurons[i]), cloneMatrix(b.weights[i]), cloneMatrix(b.intra[i]))
	}
	net := &Network{
		layers:     layers,
		inputWidth: layers[0].Inputs(),
		rng:        rng,
		fireTime:   -1,
	}

	if len(components) == 0 || kind == model.ErrorNone {
		return net, nil
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", fault.ErrUnknownErrorKind, int(kind))
	}
	spec, err := fault.Place(rng, components, kind, b.shapesLocked())
	if err != nil {
		return nil, fmt.Errorf("place fault: %w", err)
	}
	if err := net.inject(spec); err != nil {
		return nil, err
	}
	b.logger.Debug("fault placed",
		"component", spec.Component.String(),
		"kind", spec.Kind.String(),
		"layer", spec.Layer,
		"neuron", spec.Neuron,
		"weight", spec.Weight,
		"bit", spec.Bit,
		"input_a", spec.InputA,
		"input_b", spec.InputB,
	)
	return net, nil
}

func (n *Network) inject(spec model.FaultSpec) error {
	n.fault = &spec
	layer := n.layers[spec.Layer]
	if !spec.Persistent() {
		layer.attachTransient(spec)
		return nil
	}
	switch spec.Component {
	case model.ComponentThreshold:
		neuron := layer.neurons[spec.Neuron]
		neuron.SetThreshold(fault.Embed(neuron.Threshold(), spec.Kind, spec.Bit))
	case model.ComponentMembrane:
		if err := layer.neurons[spec.Neuron].SetMembraneFault(spec.Kind, spec.Bit); err != nil {
			return fmt.Errorf("membrane fault: %w", err)
		}
	case model.ComponentInboundWeight:
		layer.weights[spec.Neuron][spec.Weight] = fault.Embed(layer.weights[spec.Neuron][spec.Weight], spec.Kind, spec.Bit)
	case model.ComponentIntraWeight:
		layer.intra[spec.Neuron][spec.Weight] = fault.Embed(layer.intra[spec.Neuron][spec.Weight], spec.Kind, spec.Bit)
	case model.ComponentAdderOutput, model.ComponentAdderInput:
		n.adder = n.adder.WithFault(spec)
	case model.ComponentMultiplierOutput, model.ComponentMultiplierInput:
		n.multiplier = n.multiplier.WithFault(spec)
	default:
		return fmt.Errorf("%w: %d", fault.ErrUnknownComponent, int(spec.Component))
	}
	return nil
}

func (b *Builder) validateLocked() error {
	if len(b.neurons) == 0 {
		return ErrEmptyNetwork
	}
	if len(b.weights) != len(b.neurons) || len(b.intra) != len(b.neurons) {
		return fmt.Errorf("%w: %d neuron sets, %d weight sets, %d intra weight sets",
			ErrShapeMismatch, len(b.neurons), len(b.weights), len(b.intra))
	}
	prevWidth := -1
	for l, neurons := range b.neurons {
		size := len(neurons)
		if size == 0 {
			return fmt.Errorf("%w: layer %d has no neurons", ErrShapeMismatch, l)
		}
		if len(b.weights[l]) != size {
			return fmt.Errorf("%w: layer %d has %d neurons but %d weight rows", ErrShapeMismatch, l, size, len(b.weights[l]))
		}
		width := len(b.weights[l][0])
		if prevWidth >= 0 && width != prevWidth {
			return fmt.Errorf("%w: layer %d inputs=%d previous layer size=%d", ErrShapeMismatch, l, width, prevWidth)
		}
		if width == 0 {
			return fmt.Errorf("%w: layer %d has empty weight rows", ErrShapeMismatch, l)
		}
		for i, row := range b.weights[l] {
			if len(row) != width {
				return fmt.Errorf("%w: layer %d weight row %d has %d values want %d", ErrShapeMismatch, l, i, len(row), width)
			}
		}
		if len(b.intra[l]) != size {
			return fmt.Errorf("%w: layer %d intra weights have %d rows want %d", ErrShapeMismatch, l, len(b.intra[l]), size)
		}
		for i, row := range b.intra[l] {
			if len(row) != size {
				return fmt.Errorf("%w: layer %d intra row %d has %d values want %d", ErrShapeMismatch, l, i, len(row), size)
			}
		}
		for i, n := range neurons {
			if n == nil {
				return fmt.Errorf("%w: layer %d neuron %d", errNilNeuron, l, i)
			}
		}
		prevWidth = size
	}
	return nil
}

func (b *Builder) shapesLocked() []fault.LayerShape {
	shapes := make([]fault.LayerShape, len(b.neurons))
	for l := range b.neurons {
		shapes[l] = fault.LayerShape{Neurons: len(b.neurons[l]), Inputs: len(b.weights[l][0])}
	}
	return shapes
}

var errNilNeuron = errors.New("nil neuron")

func cloneNeurons(neurons []Neuron) []Neuron {
	out := make([]Neuron, len(neurons))
	for i, n := range neurons {
		if n != nil {
			out[i] = n.Clone()
		}
	}
	return out
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
