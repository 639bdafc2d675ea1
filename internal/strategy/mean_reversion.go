package strategy

import (
	"github.com/rxtech-lab/tradermind/internal/ledger"
	"github.com/rxtech-lab/tradermind/internal/types"
)

// MeanReversionParams configures the gap-down mean reversion strategy.
type MeanReversionParams struct {
	// Gap between the previous close and today's open, as a fraction. A bar
	// that opens at or below this gap triggers an entry.
	GapThreshold float64 `yaml:"gap_threshold" json:"gap_threshold" jsonschema:"description=Opening gap (fraction of the previous close) that triggers an entry,default=-0.03" validate:"lt=0"`
	// Number of bars the signal stays on after a gap.
	ExitDays int `yaml:"exit_days" json:"exit_days" jsonschema:"description=Bars to hold after the gap,default=5" validate:"gte=1"`
}

// MeanReversion buys opening gaps down and holds for a fixed number of bars.
type MeanReversion struct {
	params MeanReversionParams
}

func defaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		GapThreshold: -0.03,
		ExitDays:     5,
	}
}

// NewMeanReversion is the registry factory of MeanReversion.
func NewMeanReversion(params map[string]any) (Strategy, error) {
	cfg, err := DecodeParams(params, defaultMeanReversionParams())
	if err != nil {
		return nil, err
	}

	return &MeanReversion{params: cfg}, nil
}

func (s *MeanReversion) Name() string {
	return "mean_reversion"
}

func (s *MeanReversion) Prepare(bars []types.Bar) (ledger.SignalExtractor, error) {
	signals := newPrecomputed(len(bars))
	holdUntil := -1

	for i, bar := range bars {
		if i > 0 && bars[i-1].Close > 0 {
			gap := (bar.Open - bars[i-1].Close) / bars[i-1].Close
			if gap <= s.params.GapThreshold {
				holdUntil = i + s.params.ExitDays - 1
			}
		}

		signals.set(bar, i <= holdUntil)
	}

	return signals, nil
}
