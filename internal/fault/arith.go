package fault

import "snnfault/internal/model"

// OperandFault is a single (kind, bit) fault. The zero value is fault-free.
type OperandFault struct {
	Kind model.ErrorKind `json:"kind"`
	Bit  uint            `json:"bit"`
}

func (f OperandFault) Apply(v float64) float64 {
	if f.Kind == model.ErrorNone {
		return v
	}
	return Embed(v, f.Kind, f.Bit)
}

// unit holds the fault configuration shared by Adder and Multiplier. Output
// and input faults are mutually exclusive.
type unit struct {
	output    OperandFault
	inputs    [2]OperandFault
	inputMode bool
}

func (u *unit) setOutputFault(kind model.ErrorKind, bit uint) {
	u.output = OperandFault{Kind: kind, Bit: bit}
	u.inputs = [2]OperandFault{}
	u.inputMode = false
}

func (u *unit) setInputFault(left, right OperandFault) {
	u.output = OperandFault{}
	u.inputs = [2]OperandFault{left, right}
	u.inputMode = true
}

func (u unit) apply(a, b float64, op func(a, b float64) float64) float64 {
	if u.inputMode {
		return op(u.inputs[0].Apply(a), u.inputs[1].Apply(b))
	}
	return u.output.Apply(op(a, b))
}

// OutputFault returns the configured result fault.
func (u unit) OutputFault() OperandFault {
	return u.output
}

// InputFault returns the per-operand faults and whether input mode is active.
func (u unit) InputFault() (OperandFault, OperandFault, bool) {
	return u.inputs[0], u.inputs[1], u.inputMode
}

// Faulty reports whether any fault is configured.
func (u unit) Faulty() bool {
	if u.inputMode {
		return u.inputs[0].Kind != model.ErrorNone || u.inputs[1].Kind != model.ErrorNone
	}
	return u.output.Kind != model.ErrorNone
}

func add(a, b float64) float64 { return a + b }
func sub(a, b float64) float64 { return a - b }
func mul(a, b float64) float64 { return a * b }
func div(a, b float64) float64 { return a / b }

// Adder is a copyable add/sub unit.
type Adder struct {
	unit
}

func (a Adder) Add(x, y float64) float64 { return a.apply(x, y, add) }
func (a Adder) Sub(x, y float64) float64 { return a.apply(x, y, sub) }

// SetOutputFault faults every result and clears any input fault.
func (a *Adder) SetOutputFault(kind model.ErrorKind, bit uint) { a.setOutputFault(kind, bit) }

// SetInputFault faults each operand independently and clears any output fault.
func (a *Adder) SetInputFault(left, right OperandFault) { a.setInputFault(left, right) }

// WithFault returns a copy configured for spec. Specs that target other
// components return the receiver unchanged.
func (a Adder) WithFault(spec model.FaultSpec) Adder {
	switch spec.Component {
	case model.ComponentAdderOutput:
		a.SetOutputFault(spec.Kind, spec.Bit)
	case model.ComponentAdderInput:
		a.SetInputFault(InputFaults(spec))
	}
	return a
}

// Multiplier is a copyable mul/div unit.
type Multiplier struct {
	unit
}

func (m Multiplier) Mul(x, y float64) float64 { return m.apply(x, y, mul) }
func (m Multiplier) Div(x, y float64) float64 { return m.apply(x, y, div) }

func (m *Multiplier) SetOutputFault(kind model.ErrorKind, bit uint) { m.setOutputFault(kind, bit) }

func (m *Multiplier) SetInputFault(left, right OperandFault) { m.setInputFault(left, right) }

func (m Multiplier) WithFault(spec model.FaultSpec) Multiplier {
	switch spec.Component {
	case model.ComponentMultiplierOutput:
		m.SetOutputFault(spec.Kind, spec.Bit)
	case model.ComponentMultiplierInput:
		m.SetInputFault(InputFaults(spec))
	}
	return m
}

// InputFaults splits an input-side spec into its left and right operand
// faults. An unselected side carries no fault.
func InputFaults(spec model.FaultSpec) (OperandFault, OperandFault) {
	var left, right OperandFault
	if spec.InputA {
		left = OperandFault{Kind: spec.Kind, Bit: spec.Bit}
	}
	if spec.InputB {
		right = OperandFault{Kind: spec.Kind, Bit: spec.Bit}
	}
	return left, right
}
