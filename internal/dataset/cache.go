// Package dataset owns the cached bar collections of each dataset key and
// decides between reusing a stored entry and refreshing it from the market
// data provider.
package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/rxtech-lab/tradermind/pkg/marketdata/provider"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultLookbackYears is how many calendar years before the current one a refresh covers.
const DefaultLookbackYears = 5

type Outcome string

const (
	// OutcomeHit means a valid stored entry was returned.
	OutcomeHit Outcome = "hit"
	// OutcomeRefreshed means new data was fetched, stored and installed.
	OutcomeRefreshed Outcome = "refreshed"
	// OutcomeStale means refresh failed and the previous entry was returned.
	OutcomeStale Outcome = "stale"
	// OutcomeUnpersisted means new data was fetched but could not be stored.
	// It is returned to the caller but not installed as the fresh entry.
	OutcomeUnpersisted Outcome = "unpersisted"
	// OutcomeFailed is only reported to the Recorder, for loads that returned an error.
	OutcomeFailed Outcome = "failed"
)

// LoadResult is the entry returned by Load together with how it was obtained.
type LoadResult struct {
	Entry         types.CacheEntry
	Outcome       Outcome
	FailedSymbols []string
	Warnings      []string
}

// Recorder receives cache instrumentation.
type Recorder interface {
	ObserveLoad(outcome Outcome, duration time.Duration)
	ObserveFetchFailures(count int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(Outcome, time.Duration) {}
func (nopRecorder) ObserveFetchFailures(int)           {}

// Config tunes a Cache. Zero values select the defaults.
type Config struct {
	LookbackYears int
	Clock         func() time.Time
	Recorder      Recorder
}

// Cache serves dataset entries from memory, then from the store, and
// refreshes them from the provider when they are missing or stale.
type Cache struct {
	store         Store
	source        provider.Provider
	universe      provider.Universe
	logger        *logger.Logger
	clock         func() time.Time
	lookbackYears int
	recorder      Recorder

	mu          sync.RWMutex
	entries     map[string]types.CacheEntry
	invalidated map[string]bool

	refreshes singleflight.Group
}

// NewCache creates a cache on top of store, refreshing through source for
// the symbols universe resolves.
func NewCache(store Store, source provider.Provider, universe provider.Universe, log *logger.Logger, config Config) *Cache {
	if config.LookbackYears <= 0 {
		config.LookbackYears = DefaultLookbackYears
	}

	if config.Clock == nil {
		config.Clock = time.Now
	}

	if config.Recorder == nil {
		config.Recorder = nopRecorder{}
	}

	return &Cache{
		store:         store,
		source:        source,
		universe:      universe,
		logger:        log.Named("dataset_cache"),
		clock:         config.Clock,
		lookbackYears: config.LookbackYears,
		recorder:      config.Recorder,
		mu:            sync.RWMutex{},
		entries:       make(map[string]types.CacheEntry),
		invalidated:   make(map[string]bool),
		refreshes:     singleflight.Group{},
	}
}

// Load returns the entry of key, refreshing it when it is not valid under policy.
//
// When the refresh fails and a previous entry exists, that entry is returned
// with OutcomeStale and a warning. When there is no previous entry the error
// has code ErrCodeDataUnavailable.
func (c *Cache) Load(ctx context.Context, key types.DatasetKey, policy types.FreshnessPolicy) (LoadResult, error) {
	started := c.clock()

	result, err := c.load(ctx, key, policy)
	if err != nil {
		c.recorder.ObserveLoad(OutcomeFailed, c.clock().Sub(started))

		return result, err
	}

	c.recorder.ObserveLoad(result.Outcome, c.clock().Sub(started))

	return result, nil
}

func (c *Cache) load(ctx context.Context, key types.DatasetKey, policy types.FreshnessPolicy) (LoadResult, error) {
	if hit, ok := c.hit(ctx, key, policy); ok {
		return hit, nil
	}

	v, err, shared := c.refreshes.Do(key.FileName(), func() (any, error) {
		// another caller may have installed a fresh entry meanwhile
		if hit, ok := c.hit(ctx, key, policy); ok {
			return hit, nil
		}

		return c.refresh(ctx, key)
	})
	if err != nil {
		return LoadResult{}, err
	}

	if shared {
		c.logger.Debug("Joined in-flight refresh", zap.String("dataset", key.String()))
	}

	return v.(LoadResult), nil
}

// Invalidate makes the next Load of key refresh regardless of its age. The
// current entry is kept as the stale fallback.
func (c *Cache) Invalidate(key types.DatasetKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidated[key.FileName()] = true
}

// Current returns the installed entry of key without refreshing.
func (c *Cache) Current(ctx context.Context, key types.DatasetKey) (optional.Option[types.CacheEntry], error) {
	return c.lookup(ctx, key)
}

func (c *Cache) hit(ctx context.Context, key types.DatasetKey, policy types.FreshnessPolicy) (LoadResult, bool) {
	existing, err := c.lookup(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to read stored dataset, treating as missing", zap.String("dataset", key.String()), zap.Error(err))

		return LoadResult{}, false
	}

	c.mu.RLock()
	invalidated := c.invalidated[key.FileName()]
	c.mu.RUnlock()

	if invalidated || !IsValid(existing, policy, c.clock()) {
		return LoadResult{}, false
	}

	c.logger.Debug("Dataset cache hit", zap.String("dataset", key.String()))

	return LoadResult{
		Entry:         existing.Unwrap(),
		Outcome:       OutcomeHit,
		FailedSymbols: nil,
		Warnings:      nil,
	}, true
}

// lookup returns the in-memory entry, falling back to the store on a miss.
func (c *Cache) lookup(ctx context.Context, key types.DatasetKey) (optional.Option[types.CacheEntry], error) {
	name := key.FileName()

	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if ok {
		return optional.Some(entry), nil
	}

	stored, err := c.store.Read(ctx, key)
	if err != nil {
		return optional.None[types.CacheEntry](), err
	}

	if stored.IsNone() {
		return stored, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// keep whatever a concurrent refresh installed first
	if current, ok := c.entries[name]; ok {
		return optional.Some(current), nil
	}

	c.entries[name] = stored.Unwrap()

	return stored, nil
}

func (c *Cache) refresh(ctx context.Context, key types.DatasetKey) (LoadResult, error) {
	// a read error here already surfaced through hit; refresh as if missing
	previous, _ := c.lookup(ctx, key)

	now := c.clock().UTC()
	start, end := RefreshWindow(now, c.lookbackYears)

	c.logger.Info("Refreshing dataset",
		zap.String("dataset", key.String()),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	bars, failed, err := c.fetch(ctx, key, start, end)
	if err != nil {
		return c.fallback(key, previous, err)
	}

	entry := types.CacheEntry{
		Key:       key,
		Bars:      bars,
		FetchedAt: now,
	}

	warnings := make([]string, 0, len(failed))
	for _, symbol := range failed {
		warnings = append(warnings, fmt.Sprintf("%s: fetch failed", symbol))
	}

	if err := c.store.Write(ctx, entry); err != nil {
		c.logger.Error("Failed to persist refreshed dataset, using it for this load only",
			zap.String("dataset", key.String()),
			zap.Error(err),
		)

		return LoadResult{
			Entry:         entry,
			Outcome:       OutcomeUnpersisted,
			FailedSymbols: failed,
			Warnings:      append(warnings, errors.Wrap(errors.ErrCodeCacheWriteFailed, "dataset not persisted", err).Error()),
		}, nil
	}

	c.mu.Lock()
	c.entries[key.FileName()] = entry
	delete(c.invalidated, key.FileName())
	c.mu.Unlock()

	c.logger.Info("Dataset refreshed",
		zap.String("dataset", key.String()),
		zap.Int("bars", len(bars)),
		zap.Int("failed_symbols", len(failed)),
	)

	return LoadResult{
		Entry:         entry,
		Outcome:       OutcomeRefreshed,
		FailedSymbols: failed,
		Warnings:      warnings,
	}, nil
}

// fetch resolves the symbols of key and downloads them. Symbols that fail
// are dropped and returned by name; it is an error only if none succeed.
func (c *Cache) fetch(ctx context.Context, key types.DatasetKey, start time.Time, end time.Time) ([]types.Bar, []string, error) {
	if c.source == nil || c.universe == nil {
		return nil, nil, errors.New(errors.ErrCodeDataUnavailable, "no market data provider configured")
	}

	symbols, err := c.universe.Symbols(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	results, err := c.source.Fetch(ctx, symbols, start, end)
	if err != nil {
		return nil, nil, err
	}

	var (
		bars   []types.Bar
		failed []string
	)

	for _, result := range results {
		if result.Err != nil {
			c.logger.Warn("Dropping symbol from refresh", zap.String("symbol", result.Symbol), zap.Error(result.Err))
			failed = append(failed, result.Symbol)

			continue
		}

		bars = append(bars, result.Bars...)
	}

	c.recorder.ObserveFetchFailures(len(failed))

	if len(bars) == 0 {
		return nil, failed, errors.Newf(errors.ErrCodeDataUnavailable, "no data loaded for %s: all %d symbols failed", key.String(), len(results))
	}

	return bars, failed, nil
}

func (c *Cache) fallback(key types.DatasetKey, previous optional.Option[types.CacheEntry], cause error) (LoadResult, error) {
	if previous.IsNone() {
		c.logger.Error("Refresh failed and no cached dataset exists", zap.String("dataset", key.String()), zap.Error(cause))

		return LoadResult{}, errors.Wrapf(errors.ErrCodeDataUnavailable, cause, "dataset %s is unavailable", key.String())
	}

	entry := previous.Unwrap()

	c.logger.Warn("Refresh failed, serving stale dataset",
		zap.String("dataset", key.String()),
		zap.Time("fetched_at", entry.FetchedAt),
		zap.Error(cause),
	)

	return LoadResult{
		Entry:         entry,
		Outcome:       OutcomeStale,
		FailedSymbols: nil,
		Warnings:      []string{fmt.Sprintf("refresh failed, using data fetched at %s: %v", entry.FetchedAt.Format(time.RFC3339), cause)},
	}, nil
}
