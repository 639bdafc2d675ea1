package screener

import (
	"slices"
	"strings"
	"sync"

	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/pkg/errors"
)

// Definition describes one registered screener.
type Definition struct {
	Key         string
	Description string
	// Params is the default value of the parameter struct, used for the schema.
	Params  any
	Factory Factory
}

// Registry maps screener keys to factories. Listings share the strategy
// descriptor shape.
type Registry interface {
	Register(def Definition) error
	New(key string, params map[string]any) (Screener, error)
	Has(key string) bool
	List() []strategy.Descriptor
}

type registry struct {
	definitions map[string]Definition
	mu          sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() Registry {
	return &registry{
		definitions: make(map[string]Definition),
		mu:          sync.RWMutex{},
	}
}

// DefaultRegistry returns a registry holding roc130 and ema_touch.
func DefaultRegistry() (Registry, error) {
	r := NewRegistry()

	definitions := []Definition{
		{
			Key:         "ema_touch",
			Description: "Last bar's low is at or below the EMA and its close at or above it",
			Params:      EMATouchParams{Period: 200},
			Factory:     NewEMATouch,
		},
		{
			Key:         "roc130",
			Description: "Rate of change crossed above the threshold on the last bar",
			Params:      ROCCrossParams{Period: 130, Threshold: 40},
			Factory:     NewROCCross,
		},
	}

	for _, def := range definitions {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *registry) Register(def Definition) error {
	if def.Key == "" || def.Factory == nil {
		return errors.New(errors.ErrCodeMissingParameter, "Register: screener key and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.Key]; exists {
		return errors.Newf(errors.ErrCodeScreenerExists, "Register: screener with key %s already registered", def.Key)
	}

	r.definitions[def.Key] = def

	return nil
}

func (r *registry) New(key string, params map[string]any) (Screener, error) {
	r.mu.RLock()
	def, exists := r.definitions[key]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrCodeUnknownScreener, "New: screener with key %s not found", key)
	}

	s, err := def.Factory(params)
	if err != nil {
		if errors.GetCode(err) != errors.ErrCodeUnknown {
			return nil, err
		}

		return nil, errors.Wrapf(errors.ErrCodeScreenerConfigError, err, "New: invalid parameters for %s", key)
	}

	return s, nil
}

func (r *registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.definitions[key]

	return exists
}

func (r *registry) List() []strategy.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]strategy.Descriptor, 0, len(r.definitions))

	for _, def := range r.definitions {
		schema := ""
		if def.Params != nil {
			schema, _ = strategy.ToJSONSchema(def.Params)
		}

		descriptors = append(descriptors, strategy.Descriptor{
			Key:          def.Key,
			Description:  def.Description,
			ParamsSchema: schema,
		})
	}

	slices.SortFunc(descriptors, func(a, b strategy.Descriptor) int {
		return strings.Compare(a.Key, b.Key)
	})

	return descriptors
}
