package strategy

import (
	"github.com/rxtech-lab/tradermind/internal/ledger"
	"github.com/rxtech-lab/tradermind/internal/types"
)

type SMACrossoverParams struct {
	Fast int `yaml:"fast" json:"fast" jsonschema:"description=Fast moving average period,default=20" validate:"gte=1"`
	Slow int `yaml:"slow" json:"slow" jsonschema:"description=Slow moving average period,default=50" validate:"gtfield=Fast"`
}

// SMACrossover holds while the fast simple moving average of the close is
// above the slow one.
type SMACrossover struct {
	params SMACrossoverParams
}

func NewSMACrossover(params map[string]any) (Strategy, error) {
	cfg, err := DecodeParams(params, SMACrossoverParams{Fast: 20, Slow: 50})
	if err != nil {
		return nil, err
	}

	return &SMACrossover{params: cfg}, nil
}

func (s *SMACrossover) Name() string {
	return "sma_crossover"
}

func (s *SMACrossover) Prepare(bars []types.Bar) (ledger.SignalExtractor, error) {
	signals := newPrecomputed(len(bars))
	fast := movingAverage(bars, s.params.Fast)
	slow := movingAverage(bars, s.params.Slow)

	for i, bar := range bars {
		// undefined until the slow window is full
		signals.set(bar, i >= s.params.Slow-1 && fast[i] > slow[i])
	}

	return signals, nil
}

// movingAverage returns the rolling mean of the close. Entries before the
// window is full are zero.
func movingAverage(bars []types.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	sum := 0.0

	for i, bar := range bars {
		sum += bar.Close
		if i >= period {
			sum -= bars[i-period].Close
		}

		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}

	return out
}
