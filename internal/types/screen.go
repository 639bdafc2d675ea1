package types

import (
	"time"
)

// ScreenMatch is one symbol selected by a screener. Values holds the
// indicator readings that made it match, keyed by name.
type ScreenMatch struct {
	Symbol string             `json:"symbol" yaml:"symbol"`
	Date   time.Time          `json:"date" yaml:"date"`
	Values map[string]float64 `json:"values" yaml:"values"`
}
