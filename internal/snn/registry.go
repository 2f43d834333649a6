package snn

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

const ModelLIF = "lif"

var (
	ErrModelExists   = errors.New("neuron model already registered")
	ErrModelNotFound = errors.New("neuron model not found")
)

// NeuronFactory builds a neuron from named scalar parameters.
type NeuronFactory func(params map[string]float64) (Neuron, error)

var modelRegistry = struct {
	mu sync.RWMutex
	m  map[string]NeuronFactory
}{
	m: make(map[string]NeuronFactory),
}

func init() {
	initializeBuiltInModels()
}

func initializeBuiltInModels() {
	MustRegisterModel(ModelLIF, newLIFFromParams)
}

func RegisterModel(name string, factory NeuronFactory) error {
	if name == "" {
		return errors.New("neuron model name is required")
	}
	if factory == nil {
		return errors.New("neuron factory is required")
	}

	modelRegistry.mu.Lock()
	defer modelRegistry.mu.Unlock()

	if _, exists := modelRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrModelExists, name)
	}
	modelRegistry.m[name] = factory
	return nil
}

func MustRegisterModel(name string, factory NeuronFactory) {
	if err := RegisterModel(name, factory); err != nil {
		panic(err)
	}
}

// NewNeuron builds a neuron of the named model. An empty name selects LIF.
func NewNeuron(name string, params map[string]float64) (Neuron, error) {
	if name == "" {
		name = ModelLIF
	}
	modelRegistry.mu.RLock()
	factory, ok := modelRegistry.m[name]
	modelRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return factory(params)
}

func ListModels() []string {
	modelRegistry.mu.RLock()
	defer modelRegistry.mu.RUnlock()

	names := make([]string, 0, len(modelRegistry.m))
	for name := range modelRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetModelRegistryForTests() {
	modelRegistry.mu.Lock()
	modelRegistry.m = make(map[string]NeuronFactory)
	modelRegistry.mu.Unlock()
	initializeBuiltInModels()
}

func newLIFFromParams(params map[string]float64) (Neuron, error) {
	keys := []string{"v_th", "v_rest", "v_reset", "tau", "dt"}
	values := make([]float64, len(keys))
	for i, key := range keys {
		v, ok := params[key]
		if !ok {
			return nil, fmt.Errorf("lif parameter %s is required", key)
		}
		values[i] = v
	}
	for key := range params {
		if !containsString(keys, key) {
			return nil, fmt.Errorf("unknown lif parameter: %s", key)
		}
	}
	if values[3] <= 0 {
		return nil, fmt.Errorf("lif tau must be > 0, got %g", values[3])
	}
	return NewLIFNeuron(LIFParams{
		VTh:    values[0],
		VRest:  values[1],
		VReset: values[2],
		Tau:    values[3],
		DT:     values[4],
	}), nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
