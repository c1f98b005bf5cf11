package topology

import (
	"errors"
	"fmt"

	"crisim/internal/fixed"
	"crisim/internal/neuron"
)

var (
	ErrDuplicateID    = errors.New("duplicate id")
	ErrUnknownID      = errors.New("unknown id")
	ErrUnknownTarget  = fmt.Errorf("%w: synapse target is not a declared neuron", ErrUnknownID)
	ErrUnknownSynapse = fmt.Errorf("%w: no such synapse", ErrUnknownID)
	ErrCyclicTopology = errors.New("cyclic neuron fan-out")
	ErrMissingModel   = errors.New("neuron model is required")
	ErrEmptyID        = errors.New("id is required")
)

type Synapse struct {
	Target string
	Weight int64
}

type Axon struct {
	ID     string
	FanOut []Synapse
}

type Neuron struct {
	ID     string
	Model  *neuron.Model
	FanOut []Synapse
}

// Store holds the axons and neurons of a network. Axons and neurons share one
// id namespace; every synapse target must be a declared neuron and
// neuron-to-neuron fan-out stays acyclic. Structural edits bump Version.
type Store struct {
	format fixed.Format

	axons   map[string]*Axon
	neurons map[string]*Neuron

	// declaration order, kept so slot numbering is deterministic
	axonOrder   []string
	neuronOrder []string

	version uint64
}

func NewStore(format fixed.Format) *Store {
	return &Store{
		format:  format,
		axons:   make(map[string]*Axon),
		neurons: make(map[string]*Neuron),
	}
}

func (s *Store) Format() fixed.Format { return s.format }

// Version changes after every structural edit.
func (s *Store) Version() uint64 { return s.version }

func (s *Store) exists(id string) bool {
	_, isAxon := s.axons[id]
	_, isNeuron := s.neurons[id]
	return isAxon || isNeuron
}

func (s *Store) checkNewID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if s.exists(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	return nil
}

// checkFanOut validates targets and weights of a fan-out list whose source is src.
func (s *Store) checkFanOut(src string, fanout []Synapse, declared func(string) bool) error {
	seen := make(map[string]struct{}, len(fanout))
	for _, syn := range fanout {
		if syn.Target == src {
			return fmt.Errorf("%w: %s targets itself", ErrCyclicTopology, src)
		}
		if !declared(syn.Target) {
			return fmt.Errorf("%w: %s -> %s", ErrUnknownTarget, src, syn.Target)
		}
		if _, dup := seen[syn.Target]; dup {
			return fmt.Errorf("%w: synapse %s -> %s", ErrDuplicateID, src, syn.Target)
		}
		seen[syn.Target] = struct{}{}
		if err := s.format.CheckWeight(syn.Weight); err != nil {
			return fmt.Errorf("synapse %s -> %s: %w", src, syn.Target, err)
		}
	}
	return nil
}

func (s *Store) isNeuron(id string) bool {
	_, ok := s.neurons[id]
	return ok
}

func (s *Store) AddAxon(id string, fanout []Synapse) error {
	if err := s.checkNewID(id); err != nil {
		return err
	}
	if err := s.checkFanOut(id, fanout, s.isNeuron); err != nil {
		return err
	}
	s.axons[id] = &Axon{ID: id, FanOut: cloneSynapses(fanout)}
	s.axonOrder = append(s.axonOrder, id)
	s.version++
	return nil
}

// AddNeuron declares a neuron. A new neuron has no incoming edges, so its
// fan-out cannot close a cycle unless it targets itself.
func (s *Store) AddNeuron(id string, m *neuron.Model, fanout []Synapse) error {
	if err := s.checkNewID(id); err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: %s", ErrMissingModel, id)
	}
	if err := s.checkFanOut(id, fanout, s.isNeuron); err != nil {
		return err
	}
	s.neurons[id] = &Neuron{ID: id, Model: m, FanOut: cloneSynapses(fanout)}
	s.neuronOrder = append(s.neuronOrder, id)
	s.version++
	return nil
}

// AddSynapse appends dst to the fan-out of src, which may be an axon or a neuron.
func (s *Store) AddSynapse(src, dst string, weight int64) error {
	fanout, err := s.fanOutOf(src)
	if err != nil {
		return err
	}
	if !s.isNeuron(dst) {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownTarget, src, dst)
	}
	for _, syn := range *fanout {
		if syn.Target == dst {
			return fmt.Errorf("%w: synapse %s -> %s", ErrDuplicateID, src, dst)
		}
	}
	if err := s.format.CheckWeight(weight); err != nil {
		return fmt.Errorf("synapse %s -> %s: %w", src, dst, err)
	}
	if s.isNeuron(src) && (src == dst || s.reaches(dst, src)) {
		return fmt.Errorf("%w: %s -> %s closes a cycle", ErrCyclicTopology, src, dst)
	}
	*fanout = append(*fanout, Synapse{Target: dst, Weight: weight})
	s.version++
	return nil
}

// RemoveNeuron deletes id and strips it from every fan-out that references it.
func (s *Store) RemoveNeuron(id string) error {
	if !s.isNeuron(id) {
		return fmt.Errorf("%w: neuron %s", ErrUnknownID, id)
	}
	delete(s.neurons, id)
	s.neuronOrder = removeString(s.neuronOrder, id)
	for _, a := range s.axons {
		a.FanOut = stripTarget(a.FanOut, id)
	}
	for _, n := range s.neurons {
		n.FanOut = stripTarget(n.FanOut, id)
	}
	s.version++
	return nil
}

func (s *Store) RemoveAxon(id string) error {
	if _, ok := s.axons[id]; !ok {
		return fmt.Errorf("%w: axon %s", ErrUnknownID, id)
	}
	delete(s.axons, id)
	s.axonOrder = removeString(s.axonOrder, id)
	s.version++
	return nil
}

func (s *Store) RemoveSynapse(src, dst string) error {
	fanout, err := s.fanOutOf(src)
	if err != nil {
		return err
	}
	next := stripTarget(*fanout, dst)
	if len(next) == len(*fanout) {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownSynapse, src, dst)
	}
	*fanout = next
	s.version++
	return nil
}

// SetWeight changes an existing synapse in place. It is not a structural edit.
func (s *Store) SetWeight(src, dst string, weight int64) error {
	fanout, err := s.fanOutOf(src)
	if err != nil {
		return err
	}
	if err := s.format.CheckWeight(weight); err != nil {
		return fmt.Errorf("synapse %s -> %s: %w", src, dst, err)
	}
	for i := range *fanout {
		if (*fanout)[i].Target == dst {
			(*fanout)[i].Weight = weight
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrUnknownSynapse, src, dst)
}

func (s *Store) Weight(src, dst string) (int64, error) {
	fanout, err := s.fanOutOf(src)
	if err != nil {
		return 0, err
	}
	for _, syn := range *fanout {
		if syn.Target == dst {
			return syn.Weight, nil
		}
	}
	return 0, fmt.Errorf("%w: %s -> %s", ErrUnknownSynapse, src, dst)
}

func (s *Store) Axon(id string) (Axon, bool) {
	a, ok := s.axons[id]
	if !ok {
		return Axon{}, false
	}
	return Axon{ID: a.ID, FanOut: cloneSynapses(a.FanOut)}, true
}

func (s *Store) Neuron(id string) (Neuron, bool) {
	n, ok := s.neurons[id]
	if !ok {
		return Neuron{}, false
	}
	return Neuron{ID: n.ID, Model: n.Model, FanOut: cloneSynapses(n.FanOut)}, true
}

func (s *Store) HasNeuron(id string) bool { return s.isNeuron(id) }

// Axons returns copies in declaration order.
func (s *Store) Axons() []Axon {
	out := make([]Axon, 0, len(s.axonOrder))
	for _, id := range s.axonOrder {
		a, _ := s.Axon(id)
		out = append(out, a)
	}
	return out
}

// Neurons returns copies in declaration order.
func (s *Store) Neurons() []Neuron {
	out := make([]Neuron, 0, len(s.neuronOrder))
	for _, id := range s.neuronOrder {
		n, _ := s.Neuron(id)
		out = append(out, n)
	}
	return out
}

func (s *Store) fanOutOf(src string) (*[]Synapse, error) {
	if a, ok := s.axons[src]; ok {
		return &a.FanOut, nil
	}
	if n, ok := s.neurons[src]; ok {
		return &n.FanOut, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownID, src)
}

// reaches reports whether to is reachable from from along neuron fan-out.
func (s *Store) reaches(from, to string) bool {
	visited := map[string]struct{}{from: {}}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		n, ok := s.neurons[id]
		if !ok {
			continue
		}
		for _, syn := range n.FanOut {
			if _, seen := visited[syn.Target]; seen {
				continue
			}
			visited[syn.Target] = struct{}{}
			stack = append(stack, syn.Target)
		}
	}
	return false
}

func cloneSynapses(in []Synapse) []Synapse {
	if len(in) == 0 {
		return nil
	}
	return append([]Synapse(nil), in...)
}

func stripTarget(in []Synapse, target string) []Synapse {
	out := in[:0]
	for _, syn := range in {
		if syn.Target != target {
			out = append(out, syn)
		}
	}
	return out
}

func removeString(in []string, v string) []string {
	for i, s := range in {
		if s == v {
			return append(in[:i], in[i+1:]...)
		}
	}
	return in
}
