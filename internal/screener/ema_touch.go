package screener

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/internal/types"
)

type EMATouchParams struct {
	Period int `yaml:"period" json:"period" jsonschema:"description=EMA span in bars,default=200" validate:"gte=1"`
}

// EMATouch matches when the last bar trades through the EMA of the close
// and closes at or above it: low <= ema <= close.
type EMATouch struct {
	params EMATouchParams
}

func NewEMATouch(params map[string]any) (Screener, error) {
	cfg, err := strategy.DecodeParams(params, EMATouchParams{Period: 200})
	if err != nil {
		return nil, err
	}

	return &EMATouch{params: cfg}, nil
}

func (s *EMATouch) Name() string {
	return "ema_touch"
}

func (s *EMATouch) Screen(symbol string, bars []types.Bar) (optional.Option[types.ScreenMatch], error) {
	if len(bars) == 0 {
		return optional.None[types.ScreenMatch](), nil
	}

	ema := EMA(bars, s.params.Period)
	last := bars[len(bars)-1]

	if last.Low <= ema && ema <= last.Close {
		return match(symbol, last, map[string]float64{
			"ema":   ema,
			"low":   last.Low,
			"close": last.Close,
		}), nil
	}

	return optional.None[types.ScreenMatch](), nil
}

// EMA returns the exponential moving average of the closes at the last bar
// with alpha = 2/(span+1). Early bars are weighted by the sum of the decay
// factors seen so far, so a short series is not biased towards zero.
func EMA(bars []types.Bar, span int) float64 {
	decay := 1 - 2/(float64(span)+1)

	var num, den float64
	for _, bar := range bars {
		num = bar.Close + decay*num
		den = 1 + decay*den
	}

	if den == 0 {
		return 0
	}

	return num / den
}
