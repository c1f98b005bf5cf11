package model

import (
	"errors"
	"fmt"
)

var ErrInvalidStimulus = errors.New("invalid stimulus")

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version" yaml:"schema_version" toml:"schema_version"`
	CodecVersion  int `json:"codec_version" yaml:"codec_version" toml:"codec_version"`
}

// TargetSimpleSim selects the software simulation backend.
const TargetSimpleSim = "simpleSim"

// NetworkSpec is the configuration payload a network is built from.
type NetworkSpec struct {
	VersionedRecord
	ID          string        `json:"id" yaml:"id" toml:"id"`
	Target      string        `json:"target" yaml:"target" toml:"target"`
	Config      NetworkConfig `json:"config" yaml:"config" toml:"config"`
	Models      []ModelSpec   `json:"models" yaml:"models" toml:"models"`
	Axons       []AxonSpec    `json:"axons" yaml:"axons" toml:"axons"`
	Connections []NeuronSpec  `json:"connections" yaml:"connections" toml:"connections"`
	Outputs     []string      `json:"outputs" yaml:"outputs" toml:"outputs"`
	Stimulus    *Stimulus     `json:"stimulus,omitempty" yaml:"stimulus,omitempty" toml:"stimulus,omitempty"`
}

type NetworkConfig struct {
	NeuronType         string          `json:"neuron_type" yaml:"neuron_type" toml:"neuron_type"`
	GlobalNeuronParams GlobalParams    `json:"global_neuron_params" yaml:"global_neuron_params" toml:"global_neuron_params"`
	FixedPoint         *FixedPointSpec `json:"fixed_point,omitempty" yaml:"fixed_point,omitempty" toml:"fixed_point,omitempty"`
	Seed               int64           `json:"seed" yaml:"seed" toml:"seed"`
}

type GlobalParams struct {
	VThr *int64 `json:"v_thr,omitempty" yaml:"v_thr,omitempty" toml:"v_thr,omitempty"`
}

// FixedPointSpec overrides the register widths of the target core.
type FixedPointSpec struct {
	PotentialBits int `json:"potential_bits" yaml:"potential_bits" toml:"potential_bits"`
	WeightBits    int `json:"weight_bits" yaml:"weight_bits" toml:"weight_bits"`
}

// ModelSpec is a named parameter record shared by every neuron that references it.
// Omitted fields fall back to the global parameters or the family defaults.
type ModelSpec struct {
	Name         string `json:"name" yaml:"name" toml:"name"`
	VThr         *int64 `json:"v_thr,omitempty" yaml:"v_thr,omitempty" toml:"v_thr,omitempty"`
	Leak         *int   `json:"leak,omitempty" yaml:"leak,omitempty" toml:"leak,omitempty"`
	Perturbation int64  `json:"perturbation" yaml:"perturbation" toml:"perturbation"`
	Reset        string `json:"reset,omitempty" yaml:"reset,omitempty" toml:"reset,omitempty"`
}

type AxonSpec struct {
	ID       string        `json:"id" yaml:"id" toml:"id"`
	Synapses []SynapseSpec `json:"synapses" yaml:"synapses" toml:"synapses"`
}

type NeuronSpec struct {
	ID       string        `json:"id" yaml:"id" toml:"id"`
	Model    string        `json:"model" yaml:"model" toml:"model"`
	Synapses []SynapseSpec `json:"synapses" yaml:"synapses" toml:"synapses"`
}

// SynapseSpec is one weighted fan-out edge. In files it may be written either as
// a {target, weight} mapping or as a [target, weight] pair.
type SynapseSpec struct {
	Target string `json:"target" yaml:"target" toml:"target"`
	Weight int64  `json:"weight" yaml:"weight" toml:"weight"`
}

// Stimulus describes which axons fire at each timestep of a run. When Schedule is
// set it wins over Firing; steps past the end of Schedule fire nothing.
type Stimulus struct {
	Steps    int        `json:"steps" yaml:"steps" toml:"steps"`
	Firing   []string   `json:"firing,omitempty" yaml:"firing,omitempty" toml:"firing,omitempty"`
	Schedule [][]string `json:"schedule,omitempty" yaml:"schedule,omitempty" toml:"schedule,omitempty"`
}

func (s Stimulus) Validate() error {
	if s.Steps < 0 {
		return fmt.Errorf("%w: steps must be >= 0, got %d", ErrInvalidStimulus, s.Steps)
	}
	return nil
}

func (s Stimulus) FiringAt(step int) []string {
	if s.Schedule != nil {
		if step < 0 || step >= len(s.Schedule) {
			return nil
		}
		return s.Schedule[step]
	}
	return s.Firing
}

// TimestampLayout is a fixed-width UTC layout, so timestamps sort as strings.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Trace is the recorded output of one run: one vector per completed step,
// aligned to Outputs.
type Trace struct {
	VersionedRecord
	ID           string   `json:"id"`
	NetworkID    string   `json:"network_id"`
	CreatedAtUTC string   `json:"created_at_utc,omitempty"`
	Seed         int64    `json:"seed"`
	Outputs      []string `json:"outputs"`
	Steps        [][]bool `json:"steps"`
}

// TraceSummary is the listing form of a stored trace.
type TraceSummary struct {
	ID           string `json:"id"`
	NetworkID    string `json:"network_id"`
	CreatedAtUTC string `json:"created_at_utc"`
	Seed         int64  `json:"seed"`
	Steps        int    `json:"steps"`
	Outputs      int    `json:"outputs"`
}
