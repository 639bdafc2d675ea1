package strategy

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/tradermind/pkg/utils"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// DecodeParams overlays params onto defaults using the yaml tags of T and
// validates the result.
func DecodeParams[T any](params map[string]any, defaults T) (T, error) {
	cfg := defaults

	if len(params) > 0 {
		raw, err := yaml.Marshal(params)
		if err != nil {
			return defaults, fmt.Errorf("failed to encode params: %w", err)
		}

		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return defaults, fmt.Errorf("failed to decode params: %w", err)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return defaults, fmt.Errorf("invalid params: %w", err)
	}

	return cfg, nil
}

// ToJSONSchema converts a struct to a JSON schema
func ToJSONSchema[T any](t T) (string, error) {
	return utils.GetSchemaFromConfig(t, false)
}
