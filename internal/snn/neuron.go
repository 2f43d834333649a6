package snn

import (
	"fmt"
	"math"

	"snnfault/internal/fault"
	"snnfault/internal/model"
)

// Neuron is a spiking unit updated once per timestep by its layer.
type Neuron interface {
	// UpdatePotential integrates the recurrent and inbound contributions at
	// timestep t and reports whether the neuron spiked.
	UpdatePotential(t int, intraSum, extraSum float64, adder fault.Adder, multiplier fault.Multiplier) uint8
	Threshold() float64
	SetThreshold(v float64)
	Membrane() float64
	SetMembrane(v float64)
	// SetMembraneFault installs a persistent stuck-at fault on the membrane
	// potential. ErrorNone clears it.
	SetMembraneFault(kind model.ErrorKind, bit uint) error
	Init()
	Clone() Neuron
}

type LIFParams struct {
	VTh    float64 `json:"v_th" yaml:"v_th"`
	VRest  float64 `json:"v_rest" yaml:"v_rest"`
	VReset float64 `json:"v_reset" yaml:"v_reset"`
	Tau    float64 `json:"tau" yaml:"tau"`
	DT     float64 `json:"dt" yaml:"dt"`
}

// LIFNeuron is a leaky integrate-and-fire neuron.
type LIFNeuron struct {
	vTh    float64
	vRest  float64
	vReset float64
	tau    float64
	dt     float64

	vMem float64
	ts   int

	stuck *fault.OperandFault
}

func NewLIFNeuron(p LIFParams) *LIFNeuron {
	return &LIFNeuron{
		vTh:    p.VTh,
		vRest:  p.VRest,
		vReset: p.VReset,
		tau:    p.Tau,
		dt:     p.DT,
		vMem:   p.VRest,
	}
}

func (n *LIFNeuron) Params() LIFParams {
	return LIFParams{VTh: n.vTh, VRest: n.vRest, VReset: n.vReset, Tau: n.tau, DT: n.dt}
}

func (n *LIFNeuron) UpdatePotential(t int, intraSum, extraSum float64, adder fault.Adder, multiplier fault.Multiplier) uint8 {
	weightSum := adder.Add(intraSum, extraSum)
	decay := math.Exp(-multiplier.Div(multiplier.Mul(adder.Sub(float64(t), float64(n.ts)), n.dt), n.tau))

	n.enforceMembraneFault()
	n.vMem = adder.Add(adder.Add(n.vRest, multiplier.Mul(adder.Sub(n.vMem, n.vRest), decay)), weightSum)
	n.ts = t
	n.enforceMembraneFault()

	if n.vMem > n.vTh {
		n.SetMembrane(n.vReset)
		return 1
	}
	return 0
}

func (n *LIFNeuron) enforceMembraneFault() {
	if n.stuck != nil {
		n.vMem = n.stuck.Apply(n.vMem)
	}
}

func (n *LIFNeuron) Threshold() float64 {
	return n.vTh
}

func (n *LIFNeuron) SetThreshold(v float64) {
	n.vTh = v
}

func (n *LIFNeuron) Membrane() float64 {
	n.enforceMembraneFault()
	return n.vMem
}

func (n *LIFNeuron) SetMembrane(v float64) {
	n.vMem = v
	n.enforceMembraneFault()
}

// LastUpdate returns the timestep of the most recent potential update.
func (n *LIFNeuron) LastUpdate() int {
	return n.ts
}

func (n *LIFNeuron) SetMembraneFault(kind model.ErrorKind, bit uint) error {
	if err := fault.ValidateBit(bit); err != nil {
		return err
	}
	switch kind {
	case model.ErrorNone:
		n.stuck = nil
		return nil
	case model.ErrorStuckAt0, model.ErrorStuckAt1:
		n.stuck = &fault.OperandFault{Kind: kind, Bit: bit}
		n.enforceMembraneFault()
		return nil
	default:
		return fmt.Errorf("membrane fault must be stuck-at, got %s", kind)
	}
}

func (n *LIFNeuron) Init() {
	n.vMem = n.vRest
	n.ts = 0
	n.stuck = nil
}

func (n *LIFNeuron) Clone() Neuron {
	clone := *n
	if n.stuck != nil {
		stuck := *n.stuck
		clone.stuck = &stuck
	}
	return &clone
}
