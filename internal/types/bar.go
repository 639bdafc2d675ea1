package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Bar is one OHLCV observation for one symbol on one date.
// Extra holds additional numeric columns (for example a precomputed signal)
// keyed by their lower-cased name.
type Bar struct {
	Symbol string             `json:"symbol" yaml:"symbol"`
	Time   time.Time          `json:"date" yaml:"date"`
	Open   float64            `json:"open" yaml:"open"`
	High   float64            `json:"high" yaml:"high"`
	Low    float64            `json:"low" yaml:"low"`
	Close  float64            `json:"close" yaml:"close"`
	Volume float64            `json:"volume" yaml:"volume"`
	Extra  map[string]float64 `json:"extra,omitempty" yaml:"extra,omitempty"`
}

var (
	symbolAliases = []string{"symbol", "ticker"}
	timeAliases   = []string{"date", "time", "timestamp", "datetime"}
)

// Get returns a numeric field by name, ignoring case. Extra columns are
// looked up after the OHLCV fields.
func (b Bar) Get(name string) (float64, bool) {
	switch strings.ToLower(name) {
	case "open":
		return b.Open, true
	case "high":
		return b.High, true
	case "low":
		return b.Low, true
	case "close":
		return b.Close, true
	case "volume":
		return b.Volume, true
	}

	v, ok := b.Extra[strings.ToLower(name)]

	return v, ok
}

// IsBarField reports whether name, ignoring case, is read by NormalizeBar as
// the symbol, the date or an OHLCV value rather than as an extra column.
func IsBarField(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case "open", "high", "low", "close", "volume":
		return true
	}

	return slices.Contains(symbolAliases, name) || slices.Contains(timeAliases, name)
}

// NormalizeBar builds a Bar from a loosely keyed row. Keys are matched
// case-insensitively; numbers may be any int or float type or a numeric
// string. Unknown numeric columns are kept in Extra.
func NormalizeBar(values map[string]any) (Bar, error) {
	lowered := make(map[string]any, len(values))
	for k, v := range values {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	var bar Bar

	for _, alias := range symbolAliases {
		if v, ok := lowered[alias]; ok {
			s, ok := v.(string)
			if !ok {
				return Bar{}, fmt.Errorf("NormalizeBar: %s must be a string, got %T", alias, v)
			}

			bar.Symbol = s

			delete(lowered, alias)

			break
		}
	}

	if bar.Symbol == "" {
		return Bar{}, fmt.Errorf("NormalizeBar: missing symbol")
	}

	found := false

	for _, alias := range timeAliases {
		if v, ok := lowered[alias]; ok {
			t, err := toTime(v)
			if err != nil {
				return Bar{}, fmt.Errorf("NormalizeBar: %s: %w", alias, err)
			}

			bar.Time = t
			found = true

			delete(lowered, alias)

			break
		}
	}

	if !found {
		return Bar{}, fmt.Errorf("NormalizeBar: missing date for %s", bar.Symbol)
	}

	targets := []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"volume", &bar.Volume},
	}

	for _, target := range targets {
		v, ok := lowered[target.name]
		if !ok {
			if target.name == "close" {
				return Bar{}, fmt.Errorf("NormalizeBar: missing close for %s", bar.Symbol)
			}

			continue
		}

		f, err := toFloat(v)
		if err != nil {
			return Bar{}, fmt.Errorf("NormalizeBar: %s: %w", target.name, err)
		}

		*target.dst = f

		delete(lowered, target.name)
	}

	for k, v := range lowered {
		f, err := toFloat(v)
		if err != nil {
			// non-numeric extra columns are not carried
			continue
		}

		if bar.Extra == nil {
			bar.Extra = make(map[string]float64)
		}

		bar.Extra[k] = f
	}

	return bar, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}

		return 0, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}

		return time.Time{}, fmt.Errorf("unrecognized date %q", t)
	case int64:
		return time.UnixMilli(t).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}
