package types

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

type DatasetKind string

const (
	// DatasetAll is the collection of every known symbol.
	DatasetAll DatasetKind = "all"
	// DatasetGroup is a named symbol-group such as a watchlist or an index.
	DatasetGroup DatasetKind = "group"
)

// DatasetKey identifies a cached time-series collection.
type DatasetKey struct {
	Kind DatasetKind `json:"kind" yaml:"kind" validate:"required,oneof=all group"`
	Name string      `json:"name,omitempty" yaml:"name,omitempty" validate:"required_if=Kind group"`
}

// AllSymbols returns the key of the all-symbols dataset.
func AllSymbols() DatasetKey {
	return DatasetKey{Kind: DatasetAll, Name: ""}
}

// SymbolGroup returns the key of a named symbol-group dataset.
func SymbolGroup(name string) DatasetKey {
	return DatasetKey{Kind: DatasetGroup, Name: name}
}

// ParseDatasetKey parses "all" or "group:<name>".
func ParseDatasetKey(s string) (DatasetKey, error) {
	if strings.EqualFold(s, string(DatasetAll)) {
		return AllSymbols(), nil
	}

	name, ok := strings.CutPrefix(s, string(DatasetGroup)+":")
	if !ok || strings.TrimSpace(name) == "" {
		return DatasetKey{}, fmt.Errorf("invalid dataset key %q: expected \"all\" or \"group:<name>\"", s)
	}

	return SymbolGroup(strings.TrimSpace(name)), nil
}

// String returns the form accepted by ParseDatasetKey.
func (k DatasetKey) String() string {
	if k.Kind == DatasetAll {
		return string(DatasetAll)
	}

	return string(DatasetGroup) + ":" + k.Name
}

// FileName returns the base name (without extension) of the cache location.
// Group names are lower-cased and every run of characters other than letters
// and digits becomes a single underscore, so "S&P 500" maps to "s_p_500_data".
func (k DatasetKey) FileName() string {
	if k.Kind == DatasetAll {
		return "all_symbols"
	}

	var b strings.Builder

	pendingSep := false

	for _, r := range strings.ToLower(k.Name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}

			pendingSep = false

			b.WriteRune(r)

			continue
		}

		pendingSep = true
	}

	if b.Len() == 0 {
		b.WriteString("unnamed")
	}

	return b.String() + "_data"
}

// CacheEntry is one stored dataset. It is replaced on refresh, never mutated.
type CacheEntry struct {
	Key       DatasetKey `json:"key" yaml:"key"`
	Bars      []Bar      `json:"bars" yaml:"-"`
	FetchedAt time.Time  `json:"fetched_at" yaml:"fetched_at"`
}

// FreshnessPolicy decides how long a cached dataset may be reused.
type FreshnessPolicy struct {
	MaxAge time.Duration `json:"max_age" yaml:"max_age"`
}
