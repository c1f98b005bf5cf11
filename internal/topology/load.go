package topology

import (
	"errors"
	"fmt"
	"sort"
)

// Load fills an empty store in one pass. Forward references between neurons are
// allowed because every neuron is declared before any fan-out is checked; the
// neuron graph is then checked for cycles as a whole. Nothing is kept on error.
func (s *Store) Load(axons []Axon, neurons []Neuron) error {
	if len(s.axons) != 0 || len(s.neurons) != 0 {
		return errors.New("load into non-empty store")
	}

	declared := make(map[string]struct{}, len(neurons))
	seen := make(map[string]struct{}, len(axons)+len(neurons))
	for _, n := range neurons {
		if n.ID == "" {
			return ErrEmptyID
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
		}
		if n.Model == nil {
			return fmt.Errorf("%w: %s", ErrMissingModel, n.ID)
		}
		seen[n.ID] = struct{}{}
		declared[n.ID] = struct{}{}
	}
	for _, a := range axons {
		if a.ID == "" {
			return ErrEmptyID
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
		}
		seen[a.ID] = struct{}{}
	}

	isDeclared := func(id string) bool {
		_, ok := declared[id]
		return ok
	}
	for _, a := range axons {
		if err := s.checkFanOut(a.ID, a.FanOut, isDeclared); err != nil {
			return err
		}
	}
	for _, n := range neurons {
		if err := s.checkFanOut(n.ID, n.FanOut, isDeclared); err != nil {
			return err
		}
	}
	if _, err := TopoOrder(neurons); err != nil {
		return err
	}

	for _, a := range axons {
		s.axons[a.ID] = &Axon{ID: a.ID, FanOut: cloneSynapses(a.FanOut)}
		s.axonOrder = append(s.axonOrder, a.ID)
	}
	for _, n := range neurons {
		s.neurons[n.ID] = &Neuron{ID: n.ID, Model: n.Model, FanOut: cloneSynapses(n.FanOut)}
		s.neuronOrder = append(s.neuronOrder, n.ID)
	}
	s.version++
	return nil
}

// TopoOrder returns neuron ids so that every neuron comes after all neurons that
// feed it (Kahn's algorithm). Ties are broken by declaration order. Targets not
// in neurons are ignored.
func TopoOrder(neurons []Neuron) ([]string, error) {
	pos := make(map[string]int, len(neurons))
	for i, n := range neurons {
		pos[n.ID] = i
	}
	indegree := make([]int, len(neurons))
	for _, n := range neurons {
		for _, syn := range n.FanOut {
			if j, ok := pos[syn.Target]; ok {
				indegree[j]++
			}
		}
	}

	ready := make([]int, 0, len(neurons))
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(neurons))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, neurons[i].ID)

		released := false
		for _, syn := range neurons[i].FanOut {
			j, ok := pos[syn.Target]
			if !ok {
				continue
			}
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
				released = true
			}
		}
		if released {
			sort.Ints(ready)
		}
	}

	if len(order) != len(neurons) {
		stuck := make([]string, 0, len(neurons)-len(order))
		for i, d := range indegree {
			if d > 0 {
				stuck = append(stuck, neurons[i].ID)
			}
		}
		return nil, fmt.Errorf("%w: involving %v", ErrCyclicTopology, stuck)
	}
	return order, nil
}
