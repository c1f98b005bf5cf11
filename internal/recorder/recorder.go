package recorder

import (
	"errors"
	"fmt"

	"crisim/internal/topology"
)

var (
	ErrUnknownTarget   = fmt.Errorf("%w: recorded output is not a declared neuron", topology.ErrUnknownTarget)
	ErrDuplicateOutput = errors.New("duplicate recorded output")
)

// SpikeSet holds the ids of every neuron that fired in one step.
type SpikeSet map[string]struct{}

func (s SpikeSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Frame is one recorded step. Outputs is the layout the vector is aligned to;
// it is shared between frames recorded under the same configuration and must
// not be modified.
type Frame struct {
	Step    uint64
	Outputs []string
	Vector  []bool
}

// Spiked returns the ids of the outputs that fired, in declared order.
func (f Frame) Spiked() []string {
	out := make([]string, 0, len(f.Vector))
	for i, fired := range f.Vector {
		if fired {
			out = append(out, f.Outputs[i])
		}
	}
	return out
}

// Recorder captures the spikes of a configured, ordered subset of neurons.
// History is append-only and is cleared only by Reset.
type Recorder struct {
	outputs []string
	history []Frame
	step    uint64
}

func New() *Recorder {
	return &Recorder{}
}

// Configure replaces the recorded outputs. known reports whether an id is a
// declared neuron. Existing history is kept with the layout it was recorded under.
func (r *Recorder) Configure(outputIDs []string, known func(string) bool) error {
	seen := make(map[string]struct{}, len(outputIDs))
	for _, id := range outputIDs {
		if !known(id) {
			return fmt.Errorf("%w: %s", ErrUnknownTarget, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateOutput, id)
		}
		seen[id] = struct{}{}
	}
	r.outputs = append([]string(nil), outputIDs...)
	return nil
}

func (r *Recorder) Outputs() []string {
	return append([]string(nil), r.outputs...)
}

// RecordStep appends one frame and returns its vector aligned to the outputs.
func (r *Recorder) RecordStep(spikes SpikeSet) []bool {
	vector := make([]bool, len(r.outputs))
	for i, id := range r.outputs {
		vector[i] = spikes.Has(id)
	}
	r.history = append(r.history, Frame{Step: r.step, Outputs: r.outputs, Vector: vector})
	r.step++
	return append([]bool(nil), vector...)
}

// History returns copies of every recorded frame in step order.
func (r *Recorder) History() []Frame {
	out := make([]Frame, len(r.history))
	for i, f := range r.history {
		out[i] = Frame{Step: f.Step, Outputs: f.Outputs, Vector: append([]bool(nil), f.Vector...)}
	}
	return out
}

func (r *Recorder) Len() int { return len(r.history) }

// Reset clears history and the step counter. The configured outputs stay.
func (r *Recorder) Reset() {
	r.history = nil
	r.step = 0
}
