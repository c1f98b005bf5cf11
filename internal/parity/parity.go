package parity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"crisim/internal/model"
	"crisim/internal/network"
)

var ErrMismatch = errors.New("trace mismatch")

// Mismatch is the first difference found between two traces. Output is empty
// when the traces differ in layout or length rather than in a spike value.
type Mismatch struct {
	Step   int
	Output string
	Got    string
	Want   string
}

func (m *Mismatch) Error() string {
	if m.Output == "" {
		return fmt.Sprintf("%s at step %d: got %s, want %s", ErrMismatch, m.Step, m.Got, m.Want)
	}
	return fmt.Sprintf("%s at step %d output %s: got %s, want %s", ErrMismatch, m.Step, m.Output, m.Got, m.Want)
}

func (m *Mismatch) Unwrap() error { return ErrMismatch }

// Compare returns nil when got reproduces want bit for bit, and a *Mismatch
// describing the first difference otherwise.
func Compare(got, want model.Trace) error {
	if strings.Join(got.Outputs, ",") != strings.Join(want.Outputs, ",") {
		return &Mismatch{Step: 0, Got: fmt.Sprintf("outputs %v", got.Outputs), Want: fmt.Sprintf("outputs %v", want.Outputs)}
	}
	for step := 0; step < len(got.Steps) && step < len(want.Steps); step++ {
		if len(got.Steps[step]) != len(want.Outputs) {
			return &Mismatch{Step: step, Got: fmt.Sprintf("%d values", len(got.Steps[step])), Want: fmt.Sprintf("%d values", len(want.Outputs))}
		}
		if len(want.Steps[step]) != len(want.Outputs) {
			return &Mismatch{Step: step, Got: fmt.Sprintf("%d values", len(got.Steps[step])), Want: fmt.Sprintf("%d values", len(want.Steps[step]))}
		}
		for i, output := range want.Outputs {
			g, w := got.Steps[step][i], want.Steps[step][i]
			if g != w {
				return &Mismatch{Step: step, Output: output, Got: spike(g), Want: spike(w)}
			}
		}
	}
	if len(got.Steps) != len(want.Steps) {
		step := min(len(got.Steps), len(want.Steps))
		return &Mismatch{Step: step, Got: fmt.Sprintf("%d steps", len(got.Steps)), Want: fmt.Sprintf("%d steps", len(want.Steps))}
	}
	return nil
}

func spike(v bool) string {
	if v {
		return "spike"
	}
	return "silent"
}

// LoadGolden reads a JSON trace fixture.
func LoadGolden(path string) (model.Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Trace{}, err
	}
	var trace model.Trace
	if err := json.Unmarshal(data, &trace); err != nil {
		return model.Trace{}, fmt.Errorf("parse golden trace %s: %w", path, err)
	}
	for i, step := range trace.Steps {
		if len(step) != len(trace.Outputs) {
			return model.Trace{}, fmt.Errorf("golden trace %s step %d: %d values for %d outputs", path, i, len(step), len(trace.Outputs))
		}
	}
	return trace, nil
}

// Replay drives net with stimulus from its current state and returns the
// recorded trace. The trace carries no id; callers persisting it assign one.
func Replay(net *network.Network, stimulus model.Stimulus) (model.Trace, error) {
	return ReplayContext(context.Background(), net, stimulus)
}

// ReplayContext is Replay with ctx checked between steps.
func ReplayContext(ctx context.Context, net *network.Network, stimulus model.Stimulus) (model.Trace, error) {
	if err := stimulus.Validate(); err != nil {
		return model.Trace{}, err
	}
	trace := model.Trace{
		NetworkID:    net.ID(),
		CreatedAtUTC: time.Now().UTC().Format(model.TimestampLayout),
		Seed:         net.Seed(),
		Outputs:      net.Outputs(),
		Steps:        make([][]bool, 0, stimulus.Steps),
	}
	for step := 0; step < stimulus.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return model.Trace{}, err
		}
		frame, err := net.StepFrame(stimulus.FiringAt(step))
		if err != nil {
			return model.Trace{}, err
		}
		trace.Steps = append(trace.Steps, frame.Vector)
	}
	return trace, nil
}
