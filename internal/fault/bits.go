// Package fault models bit-level hardware faults on IEEE-754 doubles and the
// fault-aware arithmetic units used by neurons.
package fault

import (
	"errors"
	"fmt"
	"math"

	"snnfault/internal/model"
)

// BitWidth is the number of addressable bits in a float64.
const BitWidth = 64

var (
	ErrBitPosition      = errors.New("bit position out of range")
	ErrUnknownComponent = errors.New("unknown fault component")
	ErrUnknownErrorKind = errors.New("unknown error kind")
)

// Embed writes the fault into value's bit pattern at bit. NaN and Inf results
// are returned as is.
func Embed(value float64, kind model.ErrorKind, bit uint) float64 {
	bits := math.Float64bits(value)
	mask := uint64(1) << bit
	switch kind {
	case model.ErrorStuckAt0:
		bits &^= mask
	case model.ErrorStuckAt1:
		bits |= mask
	case model.ErrorTransientFlip:
		bits ^= mask
	}
	return math.Float64frombits(bits)
}

// ValidateBit reports an error unless bit addresses one of the 64 bits of a float64.
func ValidateBit(bit uint) error {
	if bit >= BitWidth {
		return fmt.Errorf("%w: %d", ErrBitPosition, bit)
	}
	return nil
}
