package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/tradermind/internal/config"
	"github.com/rxtech-lab/tradermind/internal/coordinator"
	"github.com/rxtech-lab/tradermind/internal/dataset"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/mocks"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/urfave/cli/v3"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]string
		expected map[string]any
	}{
		{
			name:     "empty",
			input:    nil,
			expected: nil,
		},
		{
			name:     "integers",
			input:    map[string]string{"fast": "5", "slow": "20"},
			expected: map[string]any{"fast": 5, "slow": 20},
		},
		{
			name:     "mixed scalars",
			input:    map[string]string{"threshold": "1.5", "column": "signal", "enabled": "true"},
			expected: map[string]any{"threshold": 1.5, "column": "signal", "enabled": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseParams(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseParams_Invalid(t *testing.T) {
	_, err := parseParams(map[string]string{"fast": "[1, 2"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

type AppTestSuite struct {
	suite.Suite
	dir string
	cfg config.Config
	app *app
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func (suite *AppTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()

	cfg := config.Default()
	cfg.Cache.Dir = filepath.Join(suite.dir, "cache")
	cfg.Results.Dir = filepath.Join(suite.dir, "results")
	cfg.Universe.All = []string{"AAPL", "MSFT"}
	suite.cfg = cfg

	a, err := newApp(cfg, logger.NewNopLogger(), nil)
	suite.Require().NoError(err)
	suite.app = a
}

func (suite *AppTestSuite) seed() {
	store := dataset.NewParquetStore(suite.cfg.Cache.Dir, logger.NewNopLogger())
	err := store.Write(context.Background(), types.CacheEntry{
		Key:       types.AllSymbols(),
		Bars:      mocks.GenerateDailyMultiSymbol([]string{"AAPL", "MSFT"}, 120),
		FetchedAt: time.Now(),
	})
	suite.Require().NoError(err)
}

func (suite *AppTestSuite) TestNewAppWithoutProvider() {
	suite.NotNil(suite.app.coord)
	suite.NotNil(suite.app.cache)
	suite.True(suite.app.registry.Has("sma_crossover"))
	suite.Equal(types.JobStatusIdle, suite.app.coord.GetStatus().Status)
}

func (suite *AppTestSuite) TestNewAppInvalidProvider() {
	cfg := suite.cfg
	cfg.Provider.Type = "polygon"
	cfg.Provider.PolygonAPIKey = ""

	_, err := newApp(cfg, logger.NewNopLogger(), nil)
	suite.Error(err)
}

func (suite *AppTestSuite) TestRunForeground() {
	suite.seed()

	req := coordinator.RunRequest{
		DatasetKey:         types.AllSymbols(),
		Capital:            10000,
		AllocationFraction: 0.5,
		Strategy:           "sma_crossover",
		Params:             map[string]any{"fast": 3, "slow": 10},
	}

	var out bytes.Buffer
	result, err := suite.app.runForeground(context.Background(), req, &out)
	suite.Require().NoError(err)

	suite.Equal(types.JobStatusCompleted, result.Status)
	suite.Equal("sma_crossover", result.Strategy)
	suite.Empty(result.FailedSymbols)
	suite.Equal(2, suite.app.coord.GetStatus().Progress.ProcessedSymbols)

	_, err = os.Stat(filepath.Join(suite.cfg.Results.Dir, result.RunID, "stats.yaml"))
	suite.NoError(err)

	var summary bytes.Buffer
	printResult(&summary, result)
	suite.Contains(summary.String(), result.RunID)
	suite.Contains(summary.String(), "completed")
}

func (suite *AppTestSuite) TestRunForegroundWithoutDataset() {
	req := coordinator.RunRequest{
		DatasetKey:         types.AllSymbols(),
		Capital:            10000,
		AllocationFraction: 0.5,
		Strategy:           "sma_crossover",
	}

	var out bytes.Buffer
	result, err := suite.app.runForeground(context.Background(), req, &out)
	suite.Require().NoError(err)

	suite.Equal(types.JobStatusError, result.Status)
	suite.Contains(suite.app.coord.GetStatus().Progress.ErrorMessage, "no market data provider")
}

func (suite *AppTestSuite) TestRunForegroundRejectsUnknownStrategy() {
	req := coordinator.RunRequest{
		DatasetKey:         types.AllSymbols(),
		Capital:            10000,
		AllocationFraction: 0.5,
		Strategy:           "missing",
	}

	_, err := suite.app.runForeground(context.Background(), req, &bytes.Buffer{})
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownStrategy))
}

func (suite *AppTestSuite) TestRunRequestFromFlags() {
	var req coordinator.RunRequest

	cmd := runCommand()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		var err error
		req, err = suite.app.runRequest(c)

		return err
	}

	err := cmd.Run(context.Background(), []string{
		"run",
		"--strategy", "sma_crossover",
		"--dataset", "group:tech",
		"--symbol", "AAPL",
		"--symbol", "MSFT",
		"--start", "2024-01-02",
		"--allocation", "0.25",
		"--param", "fast=5",
	})
	suite.Require().NoError(err)

	suite.Equal(types.SymbolGroup("tech"), req.DatasetKey)
	suite.Equal([]string{"AAPL", "MSFT"}, req.Symbols)
	suite.True(req.Start.IsSome())
	suite.Equal(2024, req.Start.Unwrap().Year())
	suite.True(req.End.IsNone())
	suite.Equal(suite.cfg.Backtest.Capital, req.Capital)
	suite.Equal(0.25, req.AllocationFraction)
	suite.Equal(map[string]any{"fast": 5}, req.Params)
}

func (suite *AppTestSuite) TestScreenForeground() {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := append(
		mocks.BarsFromCloses("AAPL", start, 100, 95, 98, 105),
		mocks.BarsFromCloses("MSFT", start, 100, 100, 100, 100)...,
	)

	store := dataset.NewParquetStore(suite.cfg.Cache.Dir, logger.NewNopLogger())
	err := store.Write(context.Background(), types.CacheEntry{Key: types.AllSymbols(), Bars: bars, FetchedAt: time.Now()})
	suite.Require().NoError(err)

	req := coordinator.ScreenRequest{
		DatasetKey: types.AllSymbols(),
		Screener:   "roc130",
		Params:     map[string]any{"period": 1, "threshold": 5},
	}

	result, err := suite.app.screenForeground(context.Background(), req, &bytes.Buffer{})
	suite.Require().NoError(err)

	suite.Equal(types.JobStatusCompleted, result.Status)
	suite.Equal("roc130", result.Screener)
	suite.Equal(2, suite.app.coord.GetStatus().Progress.ProcessedSymbols)
	suite.Require().Len(result.Matches, 1)
	suite.Equal("AAPL", result.Matches[0].Symbol)

	stats, err := suite.app.results.Load(result.RunID)
	suite.Require().NoError(err)
	suite.Len(stats.Matches, 1)

	var summary bytes.Buffer
	printMatches(&summary, result)
	suite.Contains(summary.String(), "matches:  1")
	suite.Contains(summary.String(), "AAPL     "+result.Matches[0].Date.Format(time.DateOnly)+" roc_day_before=3.16 roc_yesterday=7.14")
}

func (suite *AppTestSuite) TestScreenRequestFromFlags() {
	var req coordinator.ScreenRequest

	cmd := screenCommand()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		var err error
		req, err = suite.app.screenRequest(c)

		return err
	}

	err := cmd.Run(context.Background(), []string{
		"screen",
		"--screener", "ema_touch",
		"--symbol", "AAPL",
		"--as-of", "2024-05-06",
		"--param", "period=50",
	})
	suite.Require().NoError(err)

	suite.Equal(types.AllSymbols(), req.DatasetKey)
	suite.Equal("ema_touch", req.Screener)
	suite.Equal([]string{"AAPL"}, req.Symbols)
	suite.Require().True(req.AsOf.IsSome())
	suite.Equal(time.May, req.AsOf.Unwrap().Month())
	suite.Equal(map[string]any{"period": 50}, req.Params)
}

func (suite *AppTestSuite) TestScreenRejectsUnknownScreener() {
	req := coordinator.ScreenRequest{DatasetKey: types.AllSymbols(), Screener: "rsi"}

	_, err := suite.app.screenForeground(context.Background(), req, &bytes.Buffer{})
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownScreener))
}

func (suite *AppTestSuite) TestRefreshWithoutProviderFallsBackToStored() {
	suite.seed()

	result, err := suite.app.refresh(context.Background(), types.AllSymbols())
	suite.Require().NoError(err)

	suite.Equal(dataset.OutcomeStale, result.Outcome)
	suite.NotEmpty(result.Warnings)
	suite.Len(result.Entry.Bars, 240)
}

func (suite *AppTestSuite) TestServeStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- suite.app.serve(ctx, "127.0.0.1:0")
	}()

	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(5 * time.Second):
		suite.Fail("serve did not return after cancel")
	}
}

func TestStrategiesCommand(t *testing.T) {
	var out bytes.Buffer

	cmd := newCommand()
	cmd.Writer = &out

	err := cmd.Run(context.Background(), []string{"tradermind", "strategies"})
	require.NoError(t, err)

	for _, key := range []string{"mean_reversion", "roc", "signal_column", "sma_crossover"} {
		assert.Contains(t, out.String(), key)
	}
}

func TestScreenersCommand(t *testing.T) {
	var out bytes.Buffer

	cmd := newCommand()
	cmd.Writer = &out

	err := cmd.Run(context.Background(), []string{"tradermind", "screeners"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "ema_touch")
	assert.Contains(t, out.String(), "roc130")
}

func TestSchemaCommand(t *testing.T) {
	var out bytes.Buffer

	cmd := newCommand()
	cmd.Writer = &out

	err := cmd.Run(context.Background(), []string{"tradermind", "schema"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "lookback_years")
	assert.Contains(t, out.String(), "polygon_api_key")
}

func TestCacheShowCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "cache:\n  dir: " + filepath.Join(dir, "cache") + "\nresults:\n  dir: " + filepath.Join(dir, "results") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	var out bytes.Buffer

	cmd := newCommand()
	cmd.Writer = &out

	err := cmd.Run(context.Background(), []string{"tradermind", "--config", path, "cache", "show", "group:tech"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "group:tech is not cached")
}
