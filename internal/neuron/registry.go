package neuron

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"crisim/internal/fixed"
)

const DefaultFamily = "LIF"

var (
	ErrFamilyExists   = errors.New("neuron family already registered")
	ErrFamilyNotFound = errors.New("neuron family not found")
)

// Evaluator runs one timestep of a neuron model over a membrane potential that
// already holds this step's input current.
type Evaluator interface {
	Evaluate(potential int64, rng *rand.Rand) (next int64, spiked bool)
}

// Family builds an evaluator from validated parameters.
type Family func(p Params, format fixed.Format) (Evaluator, error)

var familyRegistry = struct {
	mu sync.RWMutex
	m  map[string]Family
}{
	m: make(map[string]Family),
}

func init() {
	MustRegister(DefaultFamily, newLIF)
}

func Register(name string, family Family) error {
	if name == "" {
		return errors.New("neuron family name is required")
	}
	if family == nil {
		return errors.New("neuron family constructor is required")
	}
	key := strings.ToUpper(name)

	familyRegistry.mu.Lock()
	defer familyRegistry.mu.Unlock()

	if _, exists := familyRegistry.m[key]; exists {
		return fmt.Errorf("%w: %s", ErrFamilyExists, name)
	}
	familyRegistry.m[key] = family
	return nil
}

func MustRegister(name string, family Family) {
	if err := Register(name, family); err != nil {
		panic(err)
	}
}

// Lookup is case-insensitive; an empty name resolves to the LIF family.
func Lookup(name string) (Family, error) {
	if name == "" {
		name = DefaultFamily
	}
	familyRegistry.mu.RLock()
	family, ok := familyRegistry.m[strings.ToUpper(name)]
	familyRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFamilyNotFound, name)
	}
	return family, nil
}

func List() []string {
	familyRegistry.mu.RLock()
	defer familyRegistry.mu.RUnlock()

	names := make([]string, 0, len(familyRegistry.m))
	for name := range familyRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
