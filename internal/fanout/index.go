package fanout

import (
	"errors"
	"fmt"

	"crisim/internal/neuron"
	"crisim/internal/topology"
)

var ErrStaleIndex = errors.New("fan-out index is stale; commit topology changes before stepping")

// Edge is a synapse resolved to the target's slot.
type Edge struct {
	Target int
	Weight int64
}

type Index struct {
	version uint64

	axonSlots   map[string]int
	neuronSlots map[string]int

	axonIDs   []string
	neuronIDs []string
	models    []*neuron.Model

	axonFanOut   [][]Edge
	neuronFanOut [][]Edge

	// rank[slot] is the position of the neuron in topological order
	rank []int
}

// Rebuild derives a fresh index. Neuron slots follow declaration order.
func Rebuild(store *topology.Store) (*Index, error) {
	axons := store.Axons()
	neurons := store.Neurons()

	idx := &Index{
		version:      store.Version(),
		axonSlots:    make(map[string]int, len(axons)),
		neuronSlots:  make(map[string]int, len(neurons)),
		axonIDs:      make([]string, len(axons)),
		neuronIDs:    make([]string, len(neurons)),
		models:       make([]*neuron.Model, len(neurons)),
		axonFanOut:   make([][]Edge, len(axons)),
		neuronFanOut: make([][]Edge, len(neurons)),
		rank:         make([]int, len(neurons)),
	}
	for slot, n := range neurons {
		idx.neuronSlots[n.ID] = slot
		idx.neuronIDs[slot] = n.ID
		idx.models[slot] = n.Model
	}
	for slot, a := range axons {
		idx.axonSlots[a.ID] = slot
		idx.axonIDs[slot] = a.ID
		edges, err := idx.resolve(a.ID, a.FanOut)
		if err != nil {
			return nil, err
		}
		idx.axonFanOut[slot] = edges
	}
	for slot, n := range neurons {
		edges, err := idx.resolve(n.ID, n.FanOut)
		if err != nil {
			return nil, err
		}
		idx.neuronFanOut[slot] = edges
	}

	order, err := topology.TopoOrder(neurons)
	if err != nil {
		return nil, err
	}
	for r, id := range order {
		idx.rank[idx.neuronSlots[id]] = r
	}
	return idx, nil
}

func (x *Index) resolve(src string, fanout []topology.Synapse) ([]Edge, error) {
	edges := make([]Edge, 0, len(fanout))
	for _, syn := range fanout {
		slot, ok := x.neuronSlots[syn.Target]
		if !ok {
			return nil, fmt.Errorf("%w: %s -> %s", topology.ErrUnknownTarget, src, syn.Target)
		}
		edges = append(edges, Edge{Target: slot, Weight: syn.Weight})
	}
	return edges, nil
}

// Check returns ErrStaleIndex when store has changed structurally since x was built.
func (x *Index) Check(store *topology.Store) error {
	if x == nil || x.version != store.Version() {
		return ErrStaleIndex
	}
	return nil
}

func (x *Index) Version() uint64 { return x.version }

func (x *Index) NumAxons() int   { return len(x.axonIDs) }
func (x *Index) NumNeurons() int { return len(x.neuronIDs) }

func (x *Index) NumSynapses() int {
	total := 0
	for _, edges := range x.axonFanOut {
		total += len(edges)
	}
	for _, edges := range x.neuronFanOut {
		total += len(edges)
	}
	return total
}

func (x *Index) AxonSlot(id string) (int, bool) {
	slot, ok := x.axonSlots[id]
	return slot, ok
}

func (x *Index) NeuronSlot(id string) (int, bool) {
	slot, ok := x.neuronSlots[id]
	return slot, ok
}

func (x *Index) AxonID(slot int) string   { return x.axonIDs[slot] }
func (x *Index) NeuronID(slot int) string { return x.neuronIDs[slot] }

func (x *Index) NeuronIDs() []string { return append([]string(nil), x.neuronIDs...) }

func (x *Index) Model(slot int) *neuron.Model { return x.models[slot] }
func (x *Index) Rank(slot int) int            { return x.rank[slot] }

// AxonFanOut returns the resolved fan-out of an axon by id. The slice is owned
// by the index.
func (x *Index) AxonFanOut(id string) ([]Edge, bool) {
	slot, ok := x.axonSlots[id]
	if !ok {
		return nil, false
	}
	return x.axonFanOut[slot], true
}

func (x *Index) AxonFanOutAt(slot int) []Edge { return x.axonFanOut[slot] }
func (x *Index) NeuronFanOut(slot int) []Edge { return x.neuronFanOut[slot] }

// UpdateWeight mirrors a non-structural weight change into the index.
func (x *Index) UpdateWeight(src, dst string, weight int64) error {
	target, ok := x.neuronSlots[dst]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", topology.ErrUnknownTarget, src, dst)
	}
	var edges []Edge
	if slot, ok := x.axonSlots[src]; ok {
		edges = x.axonFanOut[slot]
	} else if slot, ok := x.neuronSlots[src]; ok {
		edges = x.neuronFanOut[slot]
	} else {
		return fmt.Errorf("%w: %s", topology.ErrUnknownID, src)
	}
	for i := range edges {
		if edges[i].Target == target {
			edges[i].Weight = weight
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", topology.ErrUnknownSynapse, src, dst)
}
