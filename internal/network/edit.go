package network

import (
	"fmt"

	"crisim/internal/engine"
	"crisim/internal/model"
	"crisim/internal/topology"
)

func (n *Network) checkIdle() error {
	if n.engine.Phase() != engine.Idle {
		return ErrStepInFlight
	}
	return nil
}

// AddModel registers a new shared parameter record for later AddNeuron calls.
func (n *Network) AddModel(ms model.ModelSpec) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	return n.addModel(ms)
}

func (n *Network) AddAxon(id string, synapses []model.SynapseSpec) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	return n.store.AddAxon(id, toSynapses(synapses))
}

// AddNeuron declares a neuron bound to the named model. An empty name binds
// the default model built from the global parameters.
func (n *Network) AddNeuron(id, modelName string, synapses []model.SynapseSpec) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	m, err := n.resolveModel(modelName)
	if err != nil {
		return err
	}
	return n.store.AddNeuron(id, m, toSynapses(synapses))
}

func (n *Network) AddSynapse(src, dst string, weight int64) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	return n.store.AddSynapse(src, dst, weight)
}

// RemoveNeuron deletes a neuron, strips it from every fan-out list and from
// the recorded outputs.
func (n *Network) RemoveNeuron(id string) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	if err := n.store.RemoveNeuron(id); err != nil {
		return err
	}
	outputs := n.recorder.Outputs()
	kept := outputs[:0]
	for _, out := range outputs {
		if out != id {
			kept = append(kept, out)
		}
	}
	return n.recorder.Configure(kept, n.store.HasNeuron)
}

func (n *Network) RemoveAxon(id string) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	return n.store.RemoveAxon(id)
}

func (n *Network) RemoveSynapse(src, dst string) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	return n.store.RemoveSynapse(src, dst)
}

// WriteSynapse changes the weight of an existing synapse. It is not a
// structural edit: a committed network can keep stepping without Commit.
func (n *Network) WriteSynapse(src, dst string, weight int64) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	if err := n.store.SetWeight(src, dst, weight); err != nil {
		return err
	}
	if n.engine.Stale() {
		return nil
	}
	if err := n.engine.Index().UpdateWeight(src, dst, weight); err != nil {
		return fmt.Errorf("mirror weight %s -> %s: %w", src, dst, err)
	}
	return nil
}

// ReadSynapse returns the weight of the synapse src -> dst.
func (n *Network) ReadSynapse(src, dst string) (int64, error) {
	return n.store.Weight(src, dst)
}

// SetOutputs replaces the recorded outputs. History recorded under the old
// outputs keeps its layout.
func (n *Network) SetOutputs(ids []string) error {
	if err := n.checkIdle(); err != nil {
		return err
	}
	return n.recorder.Configure(ids, n.store.HasNeuron)
}

// Axons returns the declared axons in declaration order.
func (n *Network) Axons() []topology.Axon { return n.store.Axons() }

// Neurons returns the declared neurons in declaration order.
func (n *Network) Neurons() []topology.Neuron { return n.store.Neurons() }
