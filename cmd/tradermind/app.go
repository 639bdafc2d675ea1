package main

import (
	"fmt"

	"github.com/rxtech-lab/tradermind/internal/api"
	"github.com/rxtech-lab/tradermind/internal/config"
	"github.com/rxtech-lab/tradermind/internal/coordinator"
	"github.com/rxtech-lab/tradermind/internal/dataset"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/metrics"
	"github.com/rxtech-lab/tradermind/internal/results"
	"github.com/rxtech-lab/tradermind/internal/screener"
	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/pkg/marketdata/provider"
)

// app holds every long-lived component of one process.
type app struct {
	config    config.Config
	logger    *logger.Logger
	metrics   *metrics.Recorder
	cache     *dataset.Cache
	registry  *strategy.RegistryV1
	screeners screener.Registry
	results   *results.ParquetSink
	coord     *coordinator.Coordinator
}

// newApp wires the components described by cfg. A nil registry means the
// built-in strategies. Screeners are always the built-in ones.
func newApp(cfg config.Config, log *logger.Logger, registry *strategy.RegistryV1) (*app, error) {
	source, err := newProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	if registry == nil {
		registry, err = strategy.DefaultRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to register strategies: %w", err)
		}
	}

	screeners, err := screener.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to register screeners: %w", err)
	}

	recorder := metrics.New(nil)
	store := dataset.NewParquetStore(cfg.Cache.Dir, log)
	cache := dataset.NewCache(store, source, newUniverse(cfg), log, dataset.Config{
		LookbackYears: cfg.Cache.LookbackYears,
		Clock:         nil,
		Recorder:      recorder,
	})
	sink := results.NewParquetSink(cfg.Results.Dir, log)

	coord := coordinator.NewCoordinator(log, coordinator.Config{
		Loader:    cache,
		Registry:  registry,
		Screeners: screeners,
		Sink:      sink,
		Policy:    cfg.Policy(),
		Clock:     nil,
		Recorder:  recorder,
	})

	return &app{
		config:    cfg,
		logger:    log,
		metrics:   recorder,
		cache:     cache,
		registry:  registry,
		screeners: screeners,
		results:   sink,
		coord:     coord,
	}, nil
}

// newProvider returns nil when the configuration disables refreshing.
func newProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	marketData := cfg.MarketData()
	if marketData.IsNone() {
		return nil, nil //nolint:nilnil
	}

	source, err := provider.NewMarketDataProvider(marketData.Unwrap())
	if err != nil {
		return nil, fmt.Errorf("failed to create market data provider: %w", err)
	}

	return source, nil
}

func newUniverse(cfg config.Config) provider.Universe {
	static := provider.NewStaticUniverse(cfg.Universe.All, cfg.Universe.Groups)

	if cfg.Provider.Type == string(provider.ProviderPolygon) && len(cfg.Universe.All) == 0 {
		return provider.NewPolygonUniverse(provider.NewPolygonAPI(cfg.Provider.PolygonAPIKey), static)
	}

	return static
}

// server returns the HTTP API over the app's coordinator.
func (a *app) server() *api.Server {
	return api.NewServer(a.coord, a.registry, a.logger, api.Options{
		Results:   a.results,
		Screeners: a.screeners,
		Metrics:   a.metrics,
		Sizing: api.Sizing{
			Capital:            a.config.Backtest.Capital,
			AllocationFraction: a.config.Backtest.AllocationFraction,
		},
		StreamInterval: a.config.Server.StreamInterval,
	})
}
