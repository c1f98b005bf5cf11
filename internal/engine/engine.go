package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"crisim/internal/fanout"
	"crisim/internal/fixed"
	"crisim/internal/logging"
	"crisim/internal/recorder"
	"crisim/internal/state"
	"crisim/internal/topology"
)

var (
	ErrStepInFlight = errors.New("a step is in flight")
	ErrUnknownAxon  = fmt.Errorf("%w: firing id is not a declared axon", topology.ErrUnknownID)

	// ErrOverflow is returned (wrapped) when a step would leave the potential range.
	ErrOverflow = fixed.ErrOverflow
)

// Phase is the engine state within a step.
type Phase int

const (
	Idle Phase = iota
	Injecting
	Evaluating
	Propagating
	Recorded
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Injecting:
		return "injecting"
	case Evaluating:
		return "evaluating"
	case Propagating:
		return "propagating"
	case Recorded:
		return "recorded"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Frame is the result of one step.
type Frame struct {
	Step uint64
	// Spiked lists every neuron that fired, in declaration order.
	Spiked []string
	// Outputs and Vector are the recorded outputs and whether each fired.
	Outputs []string
	Vector  []bool
}

// OutputSpikes returns the recorded outputs that fired, in declared order.
func (f Frame) OutputSpikes() []string {
	out := make([]string, 0, len(f.Vector))
	for i, fired := range f.Vector {
		if fired {
			out = append(out, f.Outputs[i])
		}
	}
	return out
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// Engine is single-threaded: callers serialize Step, Rebuild and Reset.
// Neurons at rest are skipped during evaluation; this is exact because a
// model's effective threshold is always positive.
type Engine struct {
	store    *topology.Store
	recorder *recorder.Recorder
	index    *fanout.Index
	bank     *state.Bank

	seed   int64
	rng    *rand.Rand
	logger *slog.Logger

	phase Phase
	t     uint64

	epoch  uint64
	queued []uint64
	ready  rankHeap
}

// New builds an engine over store and derives its first index.
func New(store *topology.Store, rec *recorder.Recorder, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    store,
		recorder: rec,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rng = rand.New(rand.NewSource(e.seed))
	if err := e.Rebuild(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Phase() Phase                 { return e.phase }
func (e *Engine) Time() uint64                 { return e.t }
func (e *Engine) Index() *fanout.Index         { return e.index }
func (e *Engine) Recorder() *recorder.Recorder { return e.recorder }

// Stale reports whether the store changed structurally since the last Rebuild.
func (e *Engine) Stale() bool {
	return e.index.Check(e.store) != nil
}

// Rebuild derives a new fan-out index from the store. Potentials of neurons that
// survive the edit are carried over by id; new neurons start at rest.
func (e *Engine) Rebuild() error {
	if e.phase != Idle {
		return ErrStepInFlight
	}
	idx, err := fanout.Rebuild(e.store)
	if err != nil {
		return err
	}

	if e.bank == nil || e.index == nil {
		e.bank = state.NewBank(e.store.Format(), idx.NumNeurons())
	} else {
		carry := make([]int, idx.NumNeurons())
		for slot := range carry {
			carry[slot] = -1
			if old, ok := e.index.NeuronSlot(idx.NeuronID(slot)); ok {
				carry[slot] = old
			}
		}
		e.bank = e.bank.Resize(carry)
	}
	e.index = idx
	e.queued = make([]uint64, idx.NumNeurons())
	e.ready = rankHeap{rank: idx.Rank}
	e.logger.Debug("fan-out index rebuilt",
		"version", idx.Version(),
		"axons", idx.NumAxons(),
		"neurons", idx.NumNeurons(),
		"synapses", idx.NumSynapses(),
	)
	return nil
}

// Reset returns the network to its initial dynamic state: potentials at rest,
// empty history, time zero and a reseeded perturbation source.
func (e *Engine) Reset() error {
	if e.phase != Idle {
		return ErrStepInFlight
	}
	e.bank.Reset()
	e.recorder.Reset()
	e.t = 0
	e.rng = rand.New(rand.NewSource(e.seed))
	return nil
}

// Potentials returns the membrane potential of every neuron by id.
func (e *Engine) Potentials() map[string]int64 {
	snap := e.bank.Snapshot()
	out := make(map[string]int64, len(snap))
	for slot, v := range snap {
		out[e.index.NeuronID(slot)] = v
	}
	return out
}

// ApplyCurrent injects delta into a neuron outside of a step.
func (e *Engine) ApplyCurrent(id string, delta int64) error {
	if e.phase != Idle {
		return ErrStepInFlight
	}
	if err := e.index.Check(e.store); err != nil {
		return err
	}
	slot, ok := e.index.NeuronSlot(id)
	if !ok {
		return fmt.Errorf("%w: neuron %s", topology.ErrUnknownID, id)
	}
	if err := e.bank.ApplyCurrent(slot, delta); err != nil {
		return fmt.Errorf("neuron %s: %w", id, err)
	}
	return nil
}

// Step runs one timestep with the given axons firing. On error every potential
// is restored to its pre-step value and nothing is recorded; perturbation
// draws already taken are not returned to the random source.
func (e *Engine) Step(firing []string) (Frame, error) {
	if e.phase != Idle {
		return Frame{}, ErrStepInFlight
	}
	if err := e.index.Check(e.store); err != nil {
		return Frame{}, err
	}
	axons, err := e.resolveFiring(firing)
	if err != nil {
		return Frame{}, err
	}

	e.bank.Begin()
	frame, err := e.run(axons)
	e.phase = Idle
	if err != nil {
		if rbErr := e.bank.Rollback(); rbErr != nil {
			return Frame{}, errors.Join(err, rbErr)
		}
		return Frame{}, fmt.Errorf("step %d: %w", e.t, err)
	}
	if err := e.bank.Commit(); err != nil {
		return Frame{}, err
	}
	e.t++
	return frame, nil
}

func (e *Engine) resolveFiring(firing []string) ([]int, error) {
	slots := make([]int, 0, len(firing))
	seen := make(map[int]struct{}, len(firing))
	for _, id := range firing {
		slot, ok := e.index.AxonSlot(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAxon, id)
		}
		if _, dup := seen[slot]; dup {
			continue
		}
		seen[slot] = struct{}{}
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots, nil
}

func (e *Engine) enqueue(slot int) {
	if e.queued[slot] == e.epoch {
		return
	}
	e.queued[slot] = e.epoch
	heap.Push(&e.ready, slot)
}

func (e *Engine) run(axons []int) (Frame, error) {
	e.epoch++
	e.ready.slots = e.ready.slots[:0]

	// resting neurons cannot fire, so only carried-over potentials and
	// neurons reached this step are evaluated
	for _, slot := range e.bank.Active() {
		e.enqueue(slot)
	}

	e.phase = Injecting
	for _, a := range axons {
		for _, edge := range e.index.AxonFanOutAt(a) {
			if err := e.bank.ApplyCurrent(edge.Target, edge.Weight); err != nil {
				return Frame{}, fmt.Errorf("axon %s -> %s: %w", e.index.AxonID(a), e.index.NeuronID(edge.Target), err)
			}
			e.enqueue(edge.Target)
		}
	}

	var spiked []int
	evaluated := 0
	for e.ready.Len() > 0 {
		e.phase = Evaluating
		slot := heap.Pop(&e.ready).(int)
		evaluated++

		v, err := e.bank.Potential(slot)
		if err != nil {
			return Frame{}, err
		}
		next, fired := e.index.Model(slot).Evaluate(v, e.rng)
		if err := e.bank.Set(slot, next); err != nil {
			return Frame{}, fmt.Errorf("neuron %s: %w", e.index.NeuronID(slot), err)
		}
		if !fired {
			continue
		}
		spiked = append(spiked, slot)

		e.phase = Propagating
		for _, edge := range e.index.NeuronFanOut(slot) {
			if err := e.bank.ApplyCurrent(edge.Target, edge.Weight); err != nil {
				return Frame{}, fmt.Errorf("neuron %s -> %s: %w", e.index.NeuronID(slot), e.index.NeuronID(edge.Target), err)
			}
			e.enqueue(edge.Target)
		}
	}

	e.phase = Recorded
	sort.Ints(spiked)
	ids := make([]string, len(spiked))
	set := make(recorder.SpikeSet, len(spiked))
	for i, slot := range spiked {
		ids[i] = e.index.NeuronID(slot)
		set[ids[i]] = struct{}{}
	}
	vector := e.recorder.RecordStep(set)

	e.logger.Debug("step",
		"t", e.t,
		"firing_axons", len(axons),
		"evaluated", evaluated,
		"spiked", len(ids),
	)
	if e.logger.Enabled(context.Background(), logging.LevelTrace) {
		e.logger.Log(context.Background(), logging.LevelTrace, "spikes", "t", e.t, "neurons", ids)
	}

	return Frame{
		Step:    e.t,
		Spiked:  ids,
		Outputs: e.recorder.Outputs(),
		Vector:  vector,
	}, nil
}

// rankHeap orders queued slots by topological rank.
type rankHeap struct {
	slots []int
	rank  func(int) int
}

func (h rankHeap) Len() int           { return len(h.slots) }
func (h rankHeap) Less(i, j int) bool { return h.rank(h.slots[i]) < h.rank(h.slots[j]) }
func (h rankHeap) Swap(i, j int)      { h.slots[i], h.slots[j] = h.slots[j], h.slots[i] }

func (h *rankHeap) Push(x any) { h.slots = append(h.slots, x.(int)) }

func (h *rankHeap) Pop() any {
	old := h.slots
	n := len(old)
	x := old[n-1]
	h.slots = old[:n-1]
	return x
}
