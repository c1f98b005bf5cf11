package network

import (
	"errors"
	"fmt"

	"crisim/internal/engine"
	"crisim/internal/fanout"
)

var (
	ErrConfig            = errors.New("invalid network configuration")
	ErrUnsupportedTarget = errors.New("unsupported execution target")
	ErrUnknownModel      = errors.New("unknown neuron model")
	ErrDuplicateModel    = errors.New("duplicate neuron model")

	ErrStepInFlight = engine.ErrStepInFlight
	ErrStaleIndex   = fanout.ErrStaleIndex
)

// ConfigError reports why a payload could not be built into a network. It
// matches both ErrConfig and the underlying cause under errors.Is.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrConfig, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", ErrConfig, e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}

func configErr(reason string, err error) error {
	return &ConfigError{Reason: reason, Err: err}
}
