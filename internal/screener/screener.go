// Package screener holds the scans a job can run over a dataset. A screener
// looks at the bars of one symbol up to the scan date and reports whether
// the symbol shows its setup on the last bar.
package screener

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/types"
)

// Screener checks the ordered bars of one symbol. It returns None when the
// symbol does not match, including when there is not enough history.
type Screener interface {
	Name() string
	Screen(symbol string, bars []types.Bar) (optional.Option[types.ScreenMatch], error)
}

// Factory builds a screener from loosely typed parameters.
type Factory func(params map[string]any) (Screener, error)

func match(symbol string, last types.Bar, values map[string]float64) optional.Option[types.ScreenMatch] {
	return optional.Some(types.ScreenMatch{
		Symbol: symbol,
		Date:   last.Time,
		Values: values,
	})
}
