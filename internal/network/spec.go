package network

import (
	"fmt"
	"strings"
	"unsafe"

	"crisim/internal/fanout"
	"crisim/internal/fixed"
	"crisim/internal/model"
	"crisim/internal/topology"

	"github.com/c2h5oh/datasize"
)

// Spec returns the current topology as a configuration payload. Building the
// result yields a network with the same structure, models and outputs.
func (n *Network) Spec() model.NetworkSpec {
	used := make(map[string]bool, len(n.models))
	connections := make([]model.NeuronSpec, 0)
	for _, nr := range n.store.Neurons() {
		name := nr.Model.Name()
		used[name] = true
		connections = append(connections, model.NeuronSpec{
			ID:       nr.ID,
			Model:    name,
			Synapses: fromSynapses(nr.FanOut),
		})
	}
	axons := make([]model.AxonSpec, 0)
	for _, a := range n.store.Axons() {
		axons = append(axons, model.AxonSpec{ID: a.ID, Synapses: fromSynapses(a.FanOut)})
	}

	models := make([]model.ModelSpec, 0, len(n.modelOrder))
	for _, name := range n.modelOrder {
		// the implicit default model is rebuilt from the global parameters
		if name == DefaultModelName && !used[name] {
			continue
		}
		models = append(models, n.modelSpecs[name])
	}

	var fp *model.FixedPointSpec
	if n.format != fixed.DefaultFormat() {
		fp = &model.FixedPointSpec{PotentialBits: n.format.PotentialBits, WeightBits: n.format.WeightBits}
	}
	return model.NetworkSpec{
		ID:     n.id,
		Target: n.target,
		Config: model.NetworkConfig{
			NeuronType:         n.neuronType,
			GlobalNeuronParams: n.global,
			FixedPoint:         fp,
			Seed:               n.seed,
		},
		Models:      models,
		Axons:       axons,
		Connections: connections,
		Outputs:     n.recorder.Outputs(),
	}
}

func fromSynapses(in []topology.Synapse) []model.SynapseSpec {
	out := make([]model.SynapseSpec, len(in))
	for i, s := range in {
		out[i] = model.SynapseSpec{Target: s.Target, Weight: s.Weight}
	}
	return out
}

// SizeReport returns the neuron and synapse counts of the committed index and
// their memory footprint.
func (n *Network) SizeReport() string {
	idx := n.engine.Index()
	var b strings.Builder

	potMem := idx.NumNeurons() * int(unsafe.Sizeof(int64(0)))
	axonSyn := 0
	for slot := 0; slot < idx.NumAxons(); slot++ {
		axonSyn += len(idx.AxonFanOutAt(slot))
	}
	neurSyn := idx.NumSynapses() - axonSyn
	edge := int(unsafe.Sizeof(fanout.Edge{}))

	fmt.Fprintf(&b, "%14s:\t Axons: %d\t Syns: %d\t SynMem: %v\n", "axons", idx.NumAxons(), axonSyn, datasize.ByteSize(axonSyn*edge).HumanReadable())
	fmt.Fprintf(&b, "%14s:\t Neurons: %d\t NeurMem: %v\t Syns: %d\t SynMem: %v\n", "neurons", idx.NumNeurons(), datasize.ByteSize(potMem).HumanReadable(), neurSyn, datasize.ByteSize(neurSyn*edge).HumanReadable())
	fmt.Fprintf(&b, "\n%14s:\t Syns: %d\t TotalMem: %v\n", n.id, idx.NumSynapses(), datasize.ByteSize(potMem+idx.NumSynapses()*edge).HumanReadable())
	return b.String()
}
