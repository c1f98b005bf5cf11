package neuron

import (
	"fmt"
	"math/rand"

	"crisim/internal/fixed"
)

// Model is a named, immutable parameter record shared by reference between every
// neuron bound to it. Rebinding a neuron to different parameters means building
// a new Model.
type Model struct {
	name      string
	family    string
	params    Params
	evaluator Evaluator
}

func NewModel(name, family string, params Params, format fixed.Format) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrMissingParam)
	}
	build, err := Lookup(family)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(format); err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	evaluator, err := build(params, format)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	if family == "" {
		family = DefaultFamily
	}
	return &Model{name: name, family: family, params: params, evaluator: evaluator}, nil
}

func (m *Model) Name() string   { return m.name }
func (m *Model) Family() string { return m.family }
func (m *Model) Params() Params { return m.params }

func (m *Model) Evaluate(potential int64, rng *rand.Rand) (int64, bool) {
	return m.evaluator.Evaluate(potential, rng)
}

type lif struct {
	p Params
}

func newLIF(p Params, _ fixed.Format) (Evaluator, error) {
	return lif{p: p}, nil
}

// Evaluate applies leak, draws the threshold offset and fires when the leaked
// potential reaches the effective threshold. The offset is drawn only when the
// perturbation amplitude is positive, so deterministic models never advance rng.
func (n lif) Evaluate(potential int64, rng *rand.Rand) (int64, bool) {
	v := fixed.Leak(potential, n.p.Leak)

	threshold := n.p.Threshold
	if n.p.Perturbation > 0 && rng != nil {
		threshold += rng.Int63n(2*n.p.Perturbation+1) - n.p.Perturbation
	}
	if v < threshold {
		return v, false
	}

	switch n.p.Reset {
	case SubtractThreshold:
		return v - n.p.Threshold, true
	default:
		return 0, true
	}
}
