package snn

import (
	"errors"
	"fmt"
	"sync"

	"snnfault/internal/fault"
	"snnfault/internal/model"
)

var errOutOfOrder = errors.New("spike event out of order")

// Layer is one pipeline stage: a set of neurons with inbound and recurrent
// weights. A worker holds the layer lock for a whole Process call.
type Layer struct {
	mu sync.Mutex

	neurons    []Neuron
	weights    [][]float64
	intra      [][]float64
	prevOutput []uint8

	// transient is fixed at build time; only the fire timestep varies.
	// origin holds the clean value of a threshold or weight it corrupts.
	transient *model.FaultSpec
	origin    float64
}

func newLayer(neurons []Neuron, weights, intra [][]float64) *Layer {
	return &Layer{
		neurons:    neurons,
		weights:    weights,
		intra:      intra,
		prevOutput: make([]uint8, len(neurons)),
	}
}

func (l *Layer) Size() int {
	return len(l.neurons)
}

// Inputs returns the width of the events this layer consumes.
func (l *Layer) Inputs() int {
	if len(l.weights) == 0 {
		return 0
	}
	return len(l.weights[0])
}

// Transient returns the one-shot fault attached to this layer, if any.
func (l *Layer) Transient() (model.FaultSpec, bool) {
	if l.transient == nil {
		return model.FaultSpec{}, false
	}
	return *l.transient, true
}

// Neuron returns neuron i. Callers must not use it while the layer is
// processing.
func (l *Layer) Neuron(i int) Neuron {
	return l.neurons[i]
}

func (l *Layer) Weight(neuron, input int) float64 {
	return l.weights[neuron][input]
}

func (l *Layer) IntraWeight(neuron, other int) float64 {
	return l.intra[neuron][other]
}

// Process consumes one event per timestep from in, updates every neuron and
// emits the resulting spike vector on out. The transient fault, if any, fires
// when an event's timestamp equals fireAt. out is closed on return.
func (l *Layer) Process(adder fault.Adder, multiplier fault.Multiplier, fireAt int, in <-chan model.SpikeEvent, out chan<- model.SpikeEvent) error {
	defer close(out)

	l.mu.Lock()
	defer l.mu.Unlock()

	expected := 0
	for ev := range in {
		if ev.Timestamp != expected {
			return fmt.Errorf("%w: got timestamp %d want %d", errOutOfOrder, ev.Timestamp, expected)
		}
		expected++
		if len(ev.Spikes) != l.Inputs() {
			return fmt.Errorf("%w: event %d has %d spikes, layer expects %d", ErrShapeMismatch, ev.Timestamp, len(ev.Spikes), l.Inputs())
		}

		add, mul := adder, multiplier
		if l.transient != nil && ev.Timestamp == fireAt {
			add, mul = l.fireTransient(add, mul)
		}

		spikes := make([]uint8, len(l.neurons))
		for i, n := range l.neurons {
			var extra float64
			for k, s := range ev.Spikes {
				if s == 1 {
					extra += l.weights[i][k]
				}
			}
			var intra float64
			for j, p := range l.prevOutput {
				if j != i && p == 1 {
					intra += l.intra[i][j]
				}
			}
			spikes[i] = n.UpdatePotential(ev.Timestamp, intra, extra, add, mul)
		}
		l.prevOutput = spikes
		out <- model.SpikeEvent{Timestamp: ev.Timestamp, Spikes: append([]uint8(nil), spikes...)}
	}
	return nil
}

// fireTransient applies the one-shot fault. State faults corrupt the target
// in place; arithmetic faults return units faulted for this timestep only.
func (l *Layer) fireTransient(adder fault.Adder, multiplier fault.Multiplier) (fault.Adder, fault.Multiplier) {
	spec := *l.transient
	switch spec.Component {
	case model.ComponentThreshold:
		n := l.neurons[spec.Neuron]
		n.SetThreshold(fault.Embed(n.Threshold(), spec.Kind, spec.Bit))
	case model.ComponentMembrane:
		n := l.neurons[spec.Neuron]
		n.SetMembrane(fault.Embed(n.Membrane(), spec.Kind, spec.Bit))
	case model.ComponentInboundWeight:
		l.weights[spec.Neuron][spec.Weight] = fault.Embed(l.weights[spec.Neuron][spec.Weight], spec.Kind, spec.Bit)
	case model.ComponentIntraWeight:
		l.intra[spec.Neuron][spec.Weight] = fault.Embed(l.intra[spec.Neuron][spec.Weight], spec.Kind, spec.Bit)
	case model.ComponentAdderOutput, model.ComponentAdderInput:
		adder = adder.WithFault(spec)
	case model.ComponentMultiplierOutput, model.ComponentMultiplierInput:
		multiplier = multiplier.WithFault(spec)
	}
	return adder, multiplier
}

// attachTransient arms spec as this layer's one-shot fault and records the
// clean value of its target so Init can undo a fired flip.
func (l *Layer) attachTransient(spec model.FaultSpec) {
	l.transient = &spec
	switch spec.Component {
	case model.ComponentThreshold:
		l.origin = l.neurons[spec.Neuron].Threshold()
	case model.ComponentInboundWeight:
		l.origin = l.weights[spec.Neuron][spec.Weight]
	case model.ComponentIntraWeight:
		l.origin = l.intra[spec.Neuron][spec.Weight]
	}
}

// Init clears the recurrent state, resets every neuron and restores a target
// corrupted by the transient fault.
func (l *Layer) Init() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.prevOutput {
		l.prevOutput[i] = 0
	}
	for _, n := range l.neurons {
		n.Init()
	}
	if l.transient == nil {
		return
	}
	spec := *l.transient
	switch spec.Component {
	case model.ComponentThreshold:
		l.neurons[spec.Neuron].SetThreshold(l.origin)
	case model.ComponentInboundWeight:
		l.weights[spec.Neuron][spec.Weight] = l.origin
	case model.ComponentIntraWeight:
		l.intra[spec.Neuron][spec.Weight] = l.origin
	}
}
