package dataset

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/types"
)

// IsValid reports whether entry may be reused under policy at now.
// A missing entry is never valid.
func IsValid(entry optional.Option[types.CacheEntry], policy types.FreshnessPolicy, now time.Time) bool {
	if entry.IsNone() {
		return false
	}

	return now.Sub(entry.Unwrap().FetchedAt) <= policy.MaxAge
}

// RefreshWindow returns the date range fetched on refresh: from January 1st
// of lookbackYears years before now, up to now.
func RefreshWindow(now time.Time, lookbackYears int) (time.Time, time.Time) {
	start := time.Date(now.Year()-lookbackYears, time.January, 1, 0, 0, 0, 0, time.UTC)

	return start, now
}
