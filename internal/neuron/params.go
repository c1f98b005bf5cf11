package neuron

import (
	"errors"
	"fmt"
	"strings"

	"crisim/internal/fixed"
	"crisim/internal/model"
)

var (
	ErrMissingParam = errors.New("missing neuron parameter")
	ErrInvalidParam = errors.New("invalid neuron parameter")
)

// ResetPolicy selects what happens to the membrane potential after a spike.
type ResetPolicy int

const (
	ResetToZero ResetPolicy = iota
	SubtractThreshold
)

func (r ResetPolicy) String() string {
	switch r {
	case ResetToZero:
		return "zero"
	case SubtractThreshold:
		return "subtract"
	default:
		return fmt.Sprintf("ResetPolicy(%d)", int(r))
	}
}

func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero", "reset_to_zero", "resettozero":
		return ResetToZero, nil
	case "subtract", "subtract_threshold", "subtractthreshold":
		return SubtractThreshold, nil
	default:
		return 0, fmt.Errorf("%w: reset policy %q", ErrInvalidParam, s)
	}
}

// Params is the immutable parameter record of a neuron model.
type Params struct {
	Threshold    int64
	Leak         int
	Perturbation int64
	Reset        ResetPolicy
}

// Validate checks p against the register widths. Perturbation must stay below
// the threshold so the effective threshold is always positive: a neuron at rest
// can then never fire, which lets the engine skip neurons with zero potential.
func (p Params) Validate(format fixed.Format) error {
	if p.Threshold < 1 {
		return fmt.Errorf("%w: v_thr %d must be >= 1", ErrInvalidParam, p.Threshold)
	}
	if err := format.CheckPotential(p.Threshold); err != nil {
		return fmt.Errorf("%w: v_thr: %v", ErrInvalidParam, err)
	}
	if p.Leak < 0 || p.Leak > fixed.MaxLeak {
		return fmt.Errorf("%w: leak %d outside 0..%d", ErrInvalidParam, p.Leak, fixed.MaxLeak)
	}
	if p.Perturbation < 0 || p.Perturbation >= p.Threshold {
		return fmt.Errorf("%w: perturbation %d outside 0..%d", ErrInvalidParam, p.Perturbation, p.Threshold-1)
	}
	return nil
}

// ParamsFromSpec resolves a model record against the global defaults.
func ParamsFromSpec(spec model.ModelSpec, global model.GlobalParams) (Params, error) {
	var p Params
	switch {
	case spec.VThr != nil:
		p.Threshold = *spec.VThr
	case global.VThr != nil:
		p.Threshold = *global.VThr
	default:
		return Params{}, fmt.Errorf("%w: model %q has no v_thr and no global v_thr is set", ErrMissingParam, spec.Name)
	}

	p.Leak = fixed.NoLeak
	if spec.Leak != nil {
		p.Leak = *spec.Leak
	}
	p.Perturbation = spec.Perturbation

	reset, err := ParseResetPolicy(spec.Reset)
	if err != nil {
		return Params{}, fmt.Errorf("model %q: %w", spec.Name, err)
	}
	p.Reset = reset
	return p, nil
}
