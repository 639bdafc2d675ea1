package strategy

import (
	"github.com/rxtech-lab/tradermind/internal/ledger"
	"github.com/rxtech-lab/tradermind/internal/types"
)

type RateOfChangeParams struct {
	Period    int     `yaml:"period" json:"period" jsonschema:"description=Look-back in bars,default=130" validate:"gte=1"`
	Threshold float64 `yaml:"threshold" json:"threshold" jsonschema:"description=Rate of change in percent that must be exceeded,default=0"`
}

// RateOfChange holds while the close is up more than Threshold percent over
// the last Period bars.
type RateOfChange struct {
	params RateOfChangeParams
}

func NewRateOfChange(params map[string]any) (Strategy, error) {
	cfg, err := DecodeParams(params, RateOfChangeParams{Period: 130, Threshold: 0})
	if err != nil {
		return nil, err
	}

	return &RateOfChange{params: cfg}, nil
}

func (s *RateOfChange) Name() string {
	return "roc"
}

func (s *RateOfChange) Prepare(bars []types.Bar) (ledger.SignalExtractor, error) {
	signals := newPrecomputed(len(bars))

	for i, bar := range bars {
		on := false

		if i >= s.params.Period {
			base := bars[i-s.params.Period].Close
			if base > 0 {
				on = (bar.Close-base)/base*100 > s.params.Threshold
			}
		}

		signals.set(bar, on)
	}

	return signals, nil
}
