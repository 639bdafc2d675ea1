package strategy

import (
	"slices"
	"sync"

	"github.com/rxtech-lab/tradermind/pkg/errors"
)

// Definition describes one registered strategy.
type Definition struct {
	Key         string
	Description string
	// Params is the zero-or-default value of the strategy's parameter
	// struct. It is only used to produce the parameter schema.
	Params  any
	Factory Factory
}

// Descriptor is the public listing of a registered strategy.
type Descriptor struct {
	Key          string `json:"key" yaml:"key"`
	Description  string `json:"description" yaml:"description"`
	ParamsSchema string `json:"params_schema" yaml:"params_schema"`
}

// Registry maps strategy keys to factories.
type Registry interface {
	Register(def Definition) error
	New(key string, params map[string]any) (Strategy, error)
	Has(key string) bool
	List() []Descriptor
}

// RegistryV1 is a Registry guarded by a read/write lock.
type RegistryV1 struct {
	definitions map[string]Definition
	mu          sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *RegistryV1 {
	return &RegistryV1{
		definitions: make(map[string]Definition),
		mu:          sync.RWMutex{},
	}
}

// Register adds a strategy definition.
func (r *RegistryV1) Register(def Definition) error {
	if def.Key == "" || def.Factory == nil {
		return errors.New(errors.ErrCodeMissingParameter, "Register: strategy key and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.Key]; exists {
		return errors.Newf(errors.ErrCodeStrategyExists, "Register: strategy with key %s already registered", def.Key)
	}

	r.definitions[def.Key] = def

	return nil
}

// New builds the strategy registered under key.
func (r *RegistryV1) New(key string, params map[string]any) (Strategy, error) {
	r.mu.RLock()
	def, exists := r.definitions[key]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "New: strategy with key %s not found", key)
	}

	strategy, err := def.Factory(params)
	if err != nil {
		if errors.GetCode(err) != errors.ErrCodeUnknown {
			return nil, err
		}

		return nil, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "New: invalid parameters for %s", key)
	}

	return strategy, nil
}

// Has reports whether key is registered.
func (r *RegistryV1) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.definitions[key]

	return exists
}

// List returns the registered strategies sorted by key.
func (r *RegistryV1) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.definitions))

	for _, def := range r.definitions {
		schema := ""
		if def.Params != nil {
			// a schema that fails to render is listed empty
			schema, _ = ToJSONSchema(def.Params)
		}

		descriptors = append(descriptors, Descriptor{
			Key:          def.Key,
			Description:  def.Description,
			ParamsSchema: schema,
		})
	}

	slices.SortFunc(descriptors, func(a, b Descriptor) int {
		if a.Key < b.Key {
			return -1
		}

		if a.Key > b.Key {
			return 1
		}

		return 0
	})

	return descriptors
}
