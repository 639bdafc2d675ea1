// Package config loads the yaml configuration of tradermind.
package config

import (
	"maps"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/rxtech-lab/tradermind/pkg/marketdata/provider"
	"github.com/rxtech-lab/tradermind/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvPolygonAPIKey = "POLYGON_API_KEY"
	EnvLogLevel      = "TRADERMIND_LOG_LEVEL"
)

// ProviderNone disables refreshing; only stored datasets can be loaded.
const ProviderNone = "none"

type Config struct {
	Log      LogConfig      `yaml:"log" jsonschema:"title=Logging"`
	Server   ServerConfig   `yaml:"server" jsonschema:"title=HTTP server"`
	Cache    CacheConfig    `yaml:"cache" jsonschema:"title=Dataset cache"`
	Provider ProviderConfig `yaml:"provider" jsonschema:"title=Market data provider"`
	Universe UniverseConfig `yaml:"universe" jsonschema:"title=Symbol universe"`
	Backtest BacktestConfig `yaml:"backtest" jsonschema:"title=Backtest defaults"`
	Results  ResultsConfig  `yaml:"results" jsonschema:"title=Run results"`
}

type LogConfig struct {
	Level string `yaml:"level" jsonschema:"title=Level,description=Minimum log level,enum=debug,enum=info,enum=warn,enum=error,default=info" validate:"oneof=debug info warn error"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" jsonschema:"title=Address,description=Listen address of the HTTP API,default=:8080" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" jsonschema:"title=Shutdown timeout,description=How long shutdown waits for the active run,type=string,default=30s" validate:"gt=0"`
	StreamInterval  time.Duration `yaml:"stream_interval" jsonschema:"title=Stream interval,description=Interval between status pushes on the websocket stream,type=string,default=1s" validate:"gt=0"`
}

type CacheConfig struct {
	Dir           string        `yaml:"dir" jsonschema:"title=Directory,description=Where cached datasets are stored,default=data/cache" validate:"required"`
	MaxAge        time.Duration `yaml:"max_age" jsonschema:"title=Max age,description=Age after which a cached dataset is refreshed,type=string,default=24h" validate:"gte=0"`
	LookbackYears int           `yaml:"lookback_years" jsonschema:"title=Lookback years,description=Calendar years before the current one fetched on refresh,default=5" validate:"gte=1,lte=50"`
}

type ProviderConfig struct {
	Type          string `yaml:"type" jsonschema:"title=Type,description=Market data provider,enum=polygon,enum=binance,enum=none,default=none" validate:"oneof=polygon binance none"`
	PolygonAPIKey string `yaml:"polygon_api_key" jsonschema:"title=Polygon API key,description=Also read from POLYGON_API_KEY" validate:"required_if=Type polygon"`
	Concurrency   int    `yaml:"concurrency" jsonschema:"title=Concurrency,description=Symbols fetched in parallel,default=4" validate:"gte=1,lte=64"`
}

type UniverseConfig struct {
	// All lists the symbols of the all-symbols dataset. With the polygon
	// provider it may be left empty to use every active ticker.
	All    []string            `yaml:"all" jsonschema:"title=All symbols"`
	Groups map[string][]string `yaml:"groups" jsonschema:"title=Groups,description=Named symbol groups"`
}

type BacktestConfig struct {
	Capital            float64 `yaml:"capital" jsonschema:"title=Capital,description=Capital available to each position,default=100000" validate:"gt=0"`
	AllocationFraction float64 `yaml:"allocation_fraction" jsonschema:"title=Allocation fraction,description=Share of capital per position,default=0.1" validate:"gt=0,lte=1"`
}

type ResultsConfig struct {
	Dir string `yaml:"dir" jsonschema:"title=Directory,description=Where run results are written,default=data/results" validate:"required"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 30 * time.Second,
			StreamInterval:  time.Second,
		},
		Cache: CacheConfig{
			Dir:           "data/cache",
			MaxAge:        24 * time.Hour,
			LookbackYears: 5,
		},
		Provider: ProviderConfig{
			Type:          ProviderNone,
			PolygonAPIKey: "",
			Concurrency:   provider.DefaultConcurrency,
		},
		Universe: UniverseConfig{All: nil, Groups: nil},
		Backtest: BacktestConfig{
			Capital:            100000,
			AllocationFraction: 0.1,
		},
		Results: ResultsConfig{Dir: "data/results"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	var data []byte

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
		}

		data = raw
	}

	return Parse(data, os.LookupEnv)
}

// Parse decodes data over the defaults and applies overrides found through lookupEnv.
func Parse(data []byte, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
		}
	}

	if lookupEnv != nil {
		cfg.applyEnv(lookupEnv)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) {
	if v, ok := lookupEnv(EnvPolygonAPIKey); ok && v != "" {
		c.Provider.PolygonAPIKey = v
	}

	if v, ok := lookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	return c.Universe.validateGroups()
}

// validateGroups rejects group names that map to the same cache name, such
// as "Tech" and "tech" or "S&P 500" and "s&p-500".
func (u UniverseConfig) validateGroups() error {
	seen := make(map[string]string, len(u.Groups))

	for _, name := range slices.Sorted(maps.Keys(u.Groups)) {
		fileName := types.SymbolGroup(name).FileName()
		if other, ok := seen[fileName]; ok {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "symbol groups %q and %q share the cache name %s", other, name, fileName)
		}

		seen[fileName] = name
	}

	return nil
}

// Policy returns the freshness policy of the dataset cache.
func (c Config) Policy() types.FreshnessPolicy {
	return types.FreshnessPolicy{MaxAge: c.Cache.MaxAge}
}

// MarketData returns the provider configuration, or None when refreshing is disabled.
func (c ProviderConfig) MarketData() optional.Option[provider.Config] {
	if c.Type == ProviderNone {
		return optional.None[provider.Config]()
	}

	return optional.Some(provider.Config{
		Type:          provider.ProviderType(c.Type),
		PolygonAPIKey: c.PolygonAPIKey,
		Concurrency:   c.Concurrency,
	})
}

// Schema returns the JSON schema of the configuration file.
func Schema() (string, error) {
	return utils.GetSchemaFromConfig(Config{}, true) //nolint:exhaustruct
}
