package snn

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"snnfault/internal/fault"
	"snnfault/internal/model"
)

// Network is a built, runnable chain of layers. Each Process call runs one
// worker per layer connected by buffered event queues.
type Network struct {
	layers     []*Layer
	adder      fault.Adder
	multiplier fault.Multiplier
	inputWidth int
	fault      *model.FaultSpec

	mu       sync.Mutex
	rng      *rand.Rand
	fireTime int
}

// Fault returns the fault injected at build time, if any.
func (n *Network) Fault() (model.FaultSpec, bool) {
	if n.fault == nil {
		return model.FaultSpec{}, false
	}
	return *n.fault, true
}

// FireTime returns the timestep chosen for the transient fault by the most
// recent Process call, or -1 when none fired.
func (n *Network) FireTime() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fireTime
}

func (n *Network) InputWidth() int {
	return n.inputWidth
}

func (n *Network) OutputWidth() int {
	return n.layers[len(n.layers)-1].Size()
}

func (n *Network) Layers() []*Layer {
	return append([]*Layer(nil), n.layers...)
}

func (n *Network) Adder() fault.Adder {
	return n.adder
}

func (n *Network) Multiplier() fault.Multiplier {
	return n.multiplier
}

// Init resets neuron and recurrent state so the network can be reused. A
// persistent membrane fault chosen at build time is re-installed.
func (n *Network) Init() error {
	for _, layer := range n.layers {
		layer.Init()
	}
	if n.fault != nil && n.fault.Component == model.ComponentMembrane && n.fault.Persistent() {
		return n.layers[n.fault.Layer].Neuron(n.fault.Neuron).SetMembraneFault(n.fault.Kind, n.fault.Bit)
	}
	return nil
}

// Process feeds input ([t][i] spikes) through every layer and returns the
// final layer's [t][j] spikes.
func (n *Network) Process(ctx context.Context, input [][]uint8) ([][]uint8, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events, err := EncodeInput(input, n.inputWidth)
	if err != nil {
		return nil, err
	}
	duration := len(events)
	fireAt := n.armTransient(duration)

	queues := make([]chan model.SpikeEvent, len(n.layers)+1)
	for i := range queues {
		queues[i] = make(chan model.SpikeEvent, duration)
	}

	var g errgroup.Group
	for i, layer := range n.layers {
		in, out := queues[i], queues[i+1]
		g.Go(func() error {
			if err := layer.Process(n.adder, n.multiplier, fireAt, in, out); err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
			return nil
		})
	}

	for _, ev := range events {
		queues[0] <- ev
	}
	close(queues[0])

	collected := make([]model.SpikeEvent, 0, duration)
	for ev := range queues[len(queues)-1] {
		collected = append(collected, ev)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return DecodeOutput(collected, duration, n.OutputWidth())
}

func (n *Network) armTransient(duration int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fireTime = -1
	if n.fault == nil || n.fault.Persistent() || duration == 0 {
		return n.fireTime
	}
	n.fireTime = fault.PickFireTime(n.rng, duration)
	return n.fireTime
}
