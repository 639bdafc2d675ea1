package screener

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/internal/types"
)

type ROCCrossParams struct {
	Period    int     `yaml:"period" json:"period" jsonschema:"description=Look-back in bars,default=130" validate:"gte=1"`
	Threshold float64 `yaml:"threshold" json:"threshold" jsonschema:"description=Rate of change in percent to cross,default=40"`
}

// ROCCross matches when the rate of change was below Threshold on the
// second to last bar and above it on the last bar. A reading exactly at the
// threshold on either bar is not a cross.
type ROCCross struct {
	params ROCCrossParams
}

func NewROCCross(params map[string]any) (Screener, error) {
	cfg, err := strategy.DecodeParams(params, ROCCrossParams{Period: 130, Threshold: 40})
	if err != nil {
		return nil, err
	}

	return &ROCCross{params: cfg}, nil
}

func (s *ROCCross) Name() string {
	return "roc130"
}

func (s *ROCCross) Screen(symbol string, bars []types.Bar) (optional.Option[types.ScreenMatch], error) {
	n := len(bars)
	if n < s.params.Period+2 {
		return optional.None[types.ScreenMatch](), nil
	}

	yesterday, ok := s.roc(bars, n-1)
	if !ok {
		return optional.None[types.ScreenMatch](), nil
	}

	dayBefore, ok := s.roc(bars, n-2)
	if !ok {
		return optional.None[types.ScreenMatch](), nil
	}

	if dayBefore < s.params.Threshold && yesterday > s.params.Threshold {
		return match(symbol, bars[n-1], map[string]float64{
			"roc_yesterday":  yesterday,
			"roc_day_before": dayBefore,
		}), nil
	}

	return optional.None[types.ScreenMatch](), nil
}

// roc is the percent change of the close at i over Period bars.
func (s *ROCCross) roc(bars []types.Bar, i int) (float64, bool) {
	base := bars[i-s.params.Period].Close
	if base <= 0 {
		return 0, false
	}

	return (bars[i].Close - base) * 100 / base, true
}
