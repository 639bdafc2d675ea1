package api

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/coordinator"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
)

const dateLayout = "2006-01-02"

// RunRequestBody is the JSON body of POST /api/run. Dates are YYYY-MM-DD;
// capital and allocation fall back to the configured defaults.
type RunRequestBody struct {
	Dataset            string         `json:"dataset"`
	Symbols            []string       `json:"symbols,omitempty"`
	Start              string         `json:"start,omitempty"`
	End                string         `json:"end,omitempty"`
	Capital            *float64       `json:"capital,omitempty"`
	AllocationFraction *float64       `json:"allocation_fraction,omitempty"`
	Strategy           string         `json:"strategy"`
	Params             map[string]any `json:"params,omitempty"`
}

// ScreenRequestBody is the JSON body of POST /api/screen. as_of is
// YYYY-MM-DD and defaults to the latest bar.
type ScreenRequestBody struct {
	Dataset  string         `json:"dataset"`
	Symbols  []string       `json:"symbols,omitempty"`
	AsOf     string         `json:"as_of,omitempty"`
	Screener string         `json:"screener"`
	Params   map[string]any `json:"params,omitempty"`
}

type startRunResponse struct {
	RunID string `json:"run_id"`
}

// statusResponse adds the running flag to the job state.
type statusResponse struct {
	types.JobState
	IsRunning bool `json:"is_running"`
}

type stopRunResponse struct {
	Stopped bool `json:"stopped"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// ToRunRequest converts the body into a coordinator request.
func (b RunRequestBody) ToRunRequest(defaults Sizing) (coordinator.RunRequest, error) {
	key, err := parseDataset(b.Dataset)
	if err != nil {
		return coordinator.RunRequest{}, err
	}

	start, err := parseDate("start", b.Start)
	if err != nil {
		return coordinator.RunRequest{}, err
	}

	end, err := parseDate("end", b.End)
	if err != nil {
		return coordinator.RunRequest{}, err
	}

	capital := defaults.Capital
	if b.Capital != nil {
		capital = *b.Capital
	}

	fraction := defaults.AllocationFraction
	if b.AllocationFraction != nil {
		fraction = *b.AllocationFraction
	}

	return coordinator.RunRequest{
		DatasetKey:         key,
		Symbols:            b.Symbols,
		Start:              start,
		End:                end,
		Capital:            capital,
		AllocationFraction: fraction,
		Strategy:           b.Strategy,
		Params:             b.Params,
	}, nil
}

// ToScreenRequest converts the body into a coordinator request.
func (b ScreenRequestBody) ToScreenRequest() (coordinator.ScreenRequest, error) {
	key, err := parseDataset(b.Dataset)
	if err != nil {
		return coordinator.ScreenRequest{}, err
	}

	asOf, err := parseDate("as_of", b.AsOf)
	if err != nil {
		return coordinator.ScreenRequest{}, err
	}

	return coordinator.ScreenRequest{
		DatasetKey: key,
		Symbols:    b.Symbols,
		AsOf:       asOf,
		Screener:   b.Screener,
		Params:     b.Params,
	}, nil
}

// parseDataset defaults an empty value to the all-symbols key.
func parseDataset(value string) (types.DatasetKey, error) {
	if value == "" {
		value = string(types.DatasetAll)
	}

	key, err := types.ParseDatasetKey(value)
	if err != nil {
		return types.DatasetKey{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid dataset", err)
	}

	return key, nil
}

func parseDate(field string, value string) (optional.Option[time.Time], error) {
	if value == "" {
		return optional.None[time.Time](), nil
	}

	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return optional.None[time.Time](), errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid %s date %q, expected YYYY-MM-DD", field, value)
	}

	return optional.Some(t), nil
}
