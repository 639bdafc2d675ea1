package dataset

import (
	"slices"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/types"
)

// Filter narrows a projection of a cache entry. Dates are inclusive and
// compared by calendar day. An empty symbol list keeps every symbol.
type Filter struct {
	Start   optional.Option[time.Time]
	End     optional.Option[time.Time]
	Symbols []string
}

// Select returns the bars of entry matching filter, in stored order. The
// entry itself is not modified.
func Select(entry types.CacheEntry, filter Filter) []types.Bar {
	var wanted map[string]struct{}
	if len(filter.Symbols) > 0 {
		wanted = make(map[string]struct{}, len(filter.Symbols))
		for _, s := range filter.Symbols {
			wanted[s] = struct{}{}
		}
	}

	var startDay, endDay time.Time
	if filter.Start.IsSome() {
		startDay = day(filter.Start.Unwrap())
	}

	if filter.End.IsSome() {
		endDay = day(filter.End.Unwrap())
	}

	out := make([]types.Bar, 0, len(entry.Bars))

	for _, bar := range entry.Bars {
		if wanted != nil {
			if _, ok := wanted[bar.Symbol]; !ok {
				continue
			}
		}

		barDay := day(bar.Time)

		if filter.Start.IsSome() && barDay.Before(startDay) {
			continue
		}

		if filter.End.IsSome() && barDay.After(endDay) {
			continue
		}

		out = append(out, bar)
	}

	return out
}

// Symbols lists the symbols of bars in order of first appearance.
func Symbols(bars []types.Bar) []string {
	seen := make(map[string]struct{})

	var symbols []string

	for _, bar := range bars {
		if _, ok := seen[bar.Symbol]; ok {
			continue
		}

		seen[bar.Symbol] = struct{}{}
		symbols = append(symbols, bar.Symbol)
	}

	return symbols
}

// GroupBySymbol splits bars per symbol, each group sorted by time.
func GroupBySymbol(bars []types.Bar) map[string][]types.Bar {
	groups := make(map[string][]types.Bar)
	for _, bar := range bars {
		groups[bar.Symbol] = append(groups[bar.Symbol], bar)
	}

	for _, group := range groups {
		slices.SortStableFunc(group, func(a, b types.Bar) int {
			return a.Time.Compare(b.Time)
		})
	}

	return groups
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
