package network

import (
	"fmt"
	"log/slog"
	"strings"

	"crisim/internal/engine"
	"crisim/internal/fixed"
	"crisim/internal/logging"
	"crisim/internal/model"
	"crisim/internal/neuron"
	"crisim/internal/recorder"
	"crisim/internal/topology"
)

// DefaultModelName is the model bound to connections that name none. It is
// built from the global parameters on first use.
const DefaultModelName = "default"

type Option func(*options)

type options struct {
	logger *slog.Logger
	seed   *int64
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSeed overrides the perturbation seed of the payload.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

// Network is single-threaded. Structural edits mark the fan-out index stale;
// Commit must run before the next Step.
type Network struct {
	id         string
	target     string
	neuronType string
	global     model.GlobalParams
	format     fixed.Format
	seed       int64

	models     map[string]*neuron.Model
	modelOrder []string
	modelSpecs map[string]model.ModelSpec

	store    *topology.Store
	recorder *recorder.Recorder
	engine   *engine.Engine
	logger   *slog.Logger
}

// Build validates spec and returns a ready network. Every failure is a
// *ConfigError and no partial network is returned.
func Build(spec model.NetworkSpec, opts ...Option) (*Network, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	target, err := resolveTarget(spec.Target)
	if err != nil {
		return nil, configErr("target", err)
	}

	format := fixed.DefaultFormat()
	if fp := spec.Config.FixedPoint; fp != nil {
		format = fixed.Format{PotentialBits: fp.PotentialBits, WeightBits: fp.WeightBits}
	}
	if err := format.Validate(); err != nil {
		return nil, configErr("fixed_point", err)
	}

	neuronType := spec.Config.NeuronType
	if neuronType == "" {
		neuronType = neuron.DefaultFamily
	}
	if _, err := neuron.Lookup(neuronType); err != nil {
		return nil, configErr("neuron_type", err)
	}

	seed := spec.Config.Seed
	if o.seed != nil {
		seed = *o.seed
	}

	n := &Network{
		id:         spec.ID,
		target:     target,
		neuronType: neuronType,
		global:     spec.Config.GlobalNeuronParams,
		format:     format,
		seed:       seed,
		models:     make(map[string]*neuron.Model, len(spec.Models)),
		modelSpecs: make(map[string]model.ModelSpec, len(spec.Models)),
		store:      topology.NewStore(format),
		recorder:   recorder.New(),
		logger:     o.logger,
	}

	for _, ms := range spec.Models {
		if err := n.addModel(ms); err != nil {
			return nil, configErr("models", err)
		}
	}

	axons := make([]topology.Axon, 0, len(spec.Axons))
	for _, a := range spec.Axons {
		axons = append(axons, topology.Axon{ID: a.ID, FanOut: toSynapses(a.Synapses)})
	}
	neurons := make([]topology.Neuron, 0, len(spec.Connections))
	for _, c := range spec.Connections {
		m, err := n.resolveModel(c.Model)
		if err != nil {
			return nil, configErr(fmt.Sprintf("connection %s", c.ID), err)
		}
		neurons = append(neurons, topology.Neuron{ID: c.ID, Model: m, FanOut: toSynapses(c.Synapses)})
	}
	if err := n.store.Load(axons, neurons); err != nil {
		return nil, configErr("topology", err)
	}
	if err := n.recorder.Configure(spec.Outputs, n.store.HasNeuron); err != nil {
		return nil, configErr("outputs", err)
	}

	eng, err := engine.New(n.store, n.recorder, engine.WithLogger(o.logger), engine.WithSeed(seed))
	if err != nil {
		return nil, configErr("index", err)
	}
	n.engine = eng

	n.logger.Info("network built",
		"id", n.id,
		"target", n.target,
		"neuron_type", n.neuronType,
		"axons", len(axons),
		"neurons", len(neurons),
		"outputs", len(spec.Outputs),
	)
	return n, nil
}

func resolveTarget(target string) (string, error) {
	switch {
	case target == "", strings.EqualFold(target, model.TargetSimpleSim):
		return model.TargetSimpleSim, nil
	default:
		return "", fmt.Errorf("%w: %q (only %s is executable)", ErrUnsupportedTarget, target, model.TargetSimpleSim)
	}
}

func toSynapses(in []model.SynapseSpec) []topology.Synapse {
	out := make([]topology.Synapse, len(in))
	for i, s := range in {
		out[i] = topology.Synapse{Target: s.Target, Weight: s.Weight}
	}
	return out
}

func (n *Network) addModel(ms model.ModelSpec) error {
	if _, exists := n.models[ms.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, ms.Name)
	}
	params, err := neuron.ParamsFromSpec(ms, n.global)
	if err != nil {
		return fmt.Errorf("model %q: %w", ms.Name, err)
	}
	m, err := neuron.NewModel(ms.Name, n.neuronType, params, n.format)
	if err != nil {
		return err
	}
	n.models[ms.Name] = m
	n.modelOrder = append(n.modelOrder, ms.Name)
	n.modelSpecs[ms.Name] = ms
	return nil
}

func (n *Network) resolveModel(name string) (*neuron.Model, error) {
	if name == "" {
		name = DefaultModelName
		if _, ok := n.models[name]; !ok {
			if err := n.addModel(model.ModelSpec{Name: name}); err != nil {
				return nil, err
			}
		}
	}
	m, ok := n.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

func (n *Network) ID() string                { return n.id }
func (n *Network) Target() string            { return n.target }
func (n *Network) Seed() int64               { return n.seed }
func (n *Network) Format() fixed.Format      { return n.format }
func (n *Network) Time() uint64              { return n.engine.Time() }
func (n *Network) Outputs() []string         { return n.recorder.Outputs() }
func (n *Network) History() []recorder.Frame { return n.recorder.History() }

// Stale reports whether structural edits are waiting for Commit.
func (n *Network) Stale() bool { return n.engine.Stale() }

// Model returns the shared parameter record registered under name.
func (n *Network) Model(name string) (*neuron.Model, bool) {
	m, ok := n.models[name]
	return m, ok
}

// Step runs one timestep and returns the recorded outputs that spiked, in
// declared output order.
func (n *Network) Step(firing []string) ([]string, error) {
	frame, err := n.engine.Step(firing)
	if err != nil {
		return nil, err
	}
	return frame.OutputSpikes(), nil
}

// StepFrame runs one timestep and returns the full frame, including every
// neuron that fired.
func (n *Network) StepFrame(firing []string) (engine.Frame, error) {
	return n.engine.Step(firing)
}

// Potentials returns the membrane potential of every neuron by id.
func (n *Network) Potentials() map[string]int64 {
	return n.engine.Potentials()
}

// Commit rebuilds the fan-out index after structural edits.
func (n *Network) Commit() error {
	if err := n.engine.Rebuild(); err != nil {
		return err
	}
	n.logger.Debug("topology committed", "id", n.id, "version", n.store.Version())
	return nil
}

// Reset zeros every potential, clears the recorded history and the step
// counter, and reseeds the perturbation source.
func (n *Network) Reset() error {
	return n.engine.Reset()
}
