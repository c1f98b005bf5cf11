package fixed

import (
	"errors"
	"fmt"
)

const (
	DefaultPotentialBits = 35
	DefaultWeightBits    = 16

	// NoLeak is the leak shift that disables decay (pure integrate-and-fire).
	NoLeak  = 63
	MaxLeak = 63

	minPotentialBits = 8
	maxPotentialBits = 48
	minWeightBits    = 2
	maxWeightBits    = 32
)

var (
	ErrOverflow      = errors.New("fixed-point overflow")
	ErrInvalidFormat = errors.New("invalid fixed-point format")
)

// Format holds the signed bit widths of the membrane potential and synaptic
// weight registers.
type Format struct {
	PotentialBits int
	WeightBits    int
}

func DefaultFormat() Format {
	return Format{PotentialBits: DefaultPotentialBits, WeightBits: DefaultWeightBits}
}

func (f Format) Validate() error {
	if f.PotentialBits < minPotentialBits || f.PotentialBits > maxPotentialBits {
		return fmt.Errorf("%w: potential bits %d outside %d..%d", ErrInvalidFormat, f.PotentialBits, minPotentialBits, maxPotentialBits)
	}
	if f.WeightBits < minWeightBits || f.WeightBits > maxWeightBits {
		return fmt.Errorf("%w: weight bits %d outside %d..%d", ErrInvalidFormat, f.WeightBits, minWeightBits, maxWeightBits)
	}
	if f.WeightBits > f.PotentialBits {
		return fmt.Errorf("%w: weight bits %d exceed potential bits %d", ErrInvalidFormat, f.WeightBits, f.PotentialBits)
	}
	return nil
}

func (f Format) MinPotential() int64 { return -(int64(1) << (f.PotentialBits - 1)) }
func (f Format) MaxPotential() int64 { return int64(1)<<(f.PotentialBits-1) - 1 }
func (f Format) MinWeight() int64    { return -(int64(1) << (f.WeightBits - 1)) }
func (f Format) MaxWeight() int64    { return int64(1)<<(f.WeightBits-1) - 1 }

func (f Format) CheckPotential(v int64) error {
	if v < f.MinPotential() || v > f.MaxPotential() {
		return fmt.Errorf("%w: potential %d outside [%d, %d]", ErrOverflow, v, f.MinPotential(), f.MaxPotential())
	}
	return nil
}

func (f Format) CheckWeight(w int64) error {
	if w < f.MinWeight() || w > f.MaxWeight() {
		return fmt.Errorf("%w: weight %d outside [%d, %d]", ErrOverflow, w, f.MinWeight(), f.MaxWeight())
	}
	return nil
}

// AddPotential accumulates delta into v. Both operands fit well inside int64 for
// every valid format, so the sum is exact before the range check.
func (f Format) AddPotential(v, delta int64) (int64, error) {
	next := v + delta
	if err := f.CheckPotential(next); err != nil {
		return v, err
	}
	return next, nil
}

// Leak decays v toward zero by v>>shift. A shift of NoLeak or more leaves v as is;
// a shift of 0 clears it. Negative potentials decay symmetrically.
func Leak(v int64, shift int) int64 {
	if shift >= NoLeak || v == 0 {
		return v
	}
	if shift <= 0 {
		return 0
	}
	if v < 0 {
		return v + ((-v) >> shift)
	}
	return v - (v >> shift)
}
