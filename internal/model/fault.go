package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Component identifies the part of the network a fault is placed on. The
// numeric values are the public component codes 0..7.
type Component int

const (
	ComponentThreshold Component = iota
	ComponentMembrane
	ComponentInboundWeight
	ComponentIntraWeight
	ComponentAdderOutput
	ComponentAdderInput
	ComponentMultiplierOutput
	ComponentMultiplierInput
)

// ComponentCount is the number of fault-eligible components. The code equal
// to ComponentCount selects every component when parsing selections.
const ComponentCount = 8

var componentNames = [ComponentCount]string{
	"threshold",
	"membrane",
	"inbound_weight",
	"intra_weight",
	"adder_output",
	"adder_input",
	"multiplier_output",
	"multiplier_input",
}

var componentLabels = [ComponentCount]string{
	"Threshold",
	"Membrane",
	"Extra Weight",
	"Intra Weight",
	"Adder Output",
	"Adder Input",
	"Multiplier Output",
	"Multiplier Input",
}

func AllComponents() []Component {
	out := make([]Component, ComponentCount)
	for i := range out {
		out[i] = Component(i)
	}
	return out
}

func (c Component) Valid() bool {
	return c >= 0 && c < ComponentCount
}

func (c Component) String() string {
	if !c.Valid() {
		return fmt.Sprintf("component(%d)", int(c))
	}
	return componentNames[c]
}

// Label is the human readable name used in reports.
func (c Component) Label() string {
	if !c.Valid() {
		return "None"
	}
	return componentLabels[c]
}

// Arithmetic reports whether the component is one of the network-wide
// adder/multiplier units.
func (c Component) Arithmetic() bool {
	return c >= ComponentAdderOutput && c <= ComponentMultiplierInput
}

func (c Component) Weighted() bool {
	return c == ComponentInboundWeight || c == ComponentIntraWeight
}

// InputSide reports whether the component faults operands instead of results.
func (c Component) InputSide() bool {
	return c == ComponentAdderInput || c == ComponentMultiplierInput
}

func (c Component) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid component: %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Component) UnmarshalText(text []byte) error {
	parsed, err := ParseComponent(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseComponent accepts a component name or its numeric code.
func ParseComponent(s string) (Component, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if code, err := strconv.Atoi(s); err == nil {
		c := Component(code)
		if !c.Valid() {
			return 0, fmt.Errorf("unknown component code: %d", code)
		}
		return c, nil
	}
	s = strings.ReplaceAll(s, "-", "_")
	if s == "extra_weight" {
		return ComponentInboundWeight, nil
	}
	for i, name := range componentNames {
		if name == s {
			return Component(i), nil
		}
	}
	return 0, fmt.Errorf("unknown component: %s", s)
}

// ParseComponents parses a selection list. The code 8 (or "all") expands to
// every component; duplicates are rejected.
func ParseComponents(values []string) ([]Component, error) {
	out := make([]Component, 0, len(values))
	seen := make(map[Component]bool, len(values))
	for _, v := range values {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "" {
			continue
		}
		if trimmed == "all" || trimmed == strconv.Itoa(ComponentCount) {
			return AllComponents(), nil
		}
		c, err := ParseComponent(trimmed)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate component: %s", c)
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// ErrorKind is the bit-level fault applied to a value. The zero value is
// ErrorNone so unconfigured units are fault-free.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorStuckAt0
	ErrorStuckAt1
	ErrorTransientFlip
)

func (k ErrorKind) Valid() bool {
	return k >= ErrorNone && k <= ErrorTransientFlip
}

// Code returns the public error code: 0 stuck-at-0, 1 stuck-at-1, 2 flip,
// 3 none.
func (k ErrorKind) Code() int {
	switch k {
	case ErrorStuckAt0:
		return 0
	case ErrorStuckAt1:
		return 1
	case ErrorTransientFlip:
		return 2
	default:
		return 3
	}
}

func (k ErrorKind) String() string {
	switch k {
	case ErrorStuckAt0:
		return "stuck_at_0"
	case ErrorStuckAt1:
		return "stuck_at_1"
	case ErrorTransientFlip:
		return "transient_flip"
	case ErrorNone:
		return "none"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

func (k ErrorKind) Label() string {
	switch k {
	case ErrorStuckAt0:
		return "Stuck-At-0"
	case ErrorStuckAt1:
		return "Stuck-At-1"
	case ErrorTransientFlip:
		return "Flip-Bit"
	default:
		return "None"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid error kind: %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(text []byte) error {
	parsed, err := ParseErrorKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseErrorKind accepts a kind name or its public code.
func ParseErrorKind(s string) (ErrorKind, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "0", "stuck_at_0", "stuck0", "sa0":
		return ErrorStuckAt0, nil
	case "1", "stuck_at_1", "stuck1", "sa1":
		return ErrorStuckAt1, nil
	case "2", "transient_flip", "flip", "flip_bit":
		return ErrorTransientFlip, nil
	case "3", "none", "":
		return ErrorNone, nil
	default:
		return ErrorNone, fmt.Errorf("unknown error kind: %s", s)
	}
}
