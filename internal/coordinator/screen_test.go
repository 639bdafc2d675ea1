package coordinator

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/dataset"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/mocks"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"go.uber.org/mock/gomock"
)

// gatedScreener blocks for one symbol until released and matches every
// symbol it sees.
type gatedScreener struct {
	symbol  string
	reached chan struct{}
	release chan struct{}
}

func (g *gatedScreener) Name() string {
	return "gated_screen"
}

func (g *gatedScreener) Screen(symbol string, bars []types.Bar) (optional.Option[types.ScreenMatch], error) {
	if symbol == g.symbol {
		close(g.reached)
		<-g.release
	}

	return optional.Some(types.ScreenMatch{Symbol: symbol, Date: bars[len(bars)-1].Time, Values: nil}), nil
}

var screenStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// rocSeries returns 130 flat closes followed by the last two closes, so the
// final two ROC(130) readings are dayBefore-100 and yesterday-100.
func rocSeries(symbol string, dayBefore, yesterday float64) []types.Bar {
	closes := make([]float64, 0, 132)
	for range 130 {
		closes = append(closes, 100)
	}

	return mocks.BarsFromCloses(symbol, screenStart, append(closes, dayBefore, yesterday)...)
}

func screenLoad(series ...[]types.Bar) dataset.LoadResult {
	var bars []types.Bar
	for _, s := range series {
		bars = append(bars, s...)
	}

	return dataset.LoadResult{
		Entry:         types.CacheEntry{Key: testKey, Bars: bars, FetchedAt: time.Now()},
		Outcome:       dataset.OutcomeHit,
		FailedSymbols: nil,
		Warnings:      nil,
	}
}

func screenRequest(key string) ScreenRequest {
	return ScreenRequest{
		DatasetKey: testKey,
		Symbols:    nil,
		AsOf:       optional.None[time.Time](),
		Screener:   key,
		Params:     nil,
	}
}

func (suite *CoordinatorTestSuite) TestScreenCollectsMatches() {
	loaded := screenLoad(
		rocSeries("CROSS", 139, 141),
		rocSeries("EDGE", 140, 150),
		rocSeries("TOUCH", 139, 140),
	)
	suite.loader.EXPECT().Load(gomock.Any(), testKey, testPolicy).Return(loaded, nil)

	var saved types.RunResult
	suite.sink.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, result types.RunResult) error {
		saved = result

		return nil
	})

	handle, err := suite.coord.StartScreen(screenRequest("roc130"))
	suite.Require().NoError(err)
	suite.wait(handle)

	state := suite.coord.GetStatus()
	suite.Equal(types.JobStatusCompleted, state.Status)
	suite.Equal(3, state.Progress.TotalSymbols)
	suite.Equal(3, state.Progress.ProcessedSymbols)

	suite.Equal("roc130", saved.Screener)
	suite.Empty(saved.Strategy)
	suite.Empty(saved.Trades)
	suite.Require().Len(saved.Matches, 1)
	suite.Equal("CROSS", saved.Matches[0].Symbol)
	suite.Equal(41.0, saved.Matches[0].Values["roc_yesterday"])
	suite.Equal(39.0, saved.Matches[0].Values["roc_day_before"])
	suite.Equal(saved, suite.coord.Result().Unwrap())
}

func (suite *CoordinatorTestSuite) TestScreenAsOfEndsTheSeries() {
	// the crossing happens on the second to last bar; the scan date hides the last one
	series := rocSeries("CROSS", 139, 141)
	series = append(series, mocks.BarsFromCloses("CROSS", series[len(series)-1].Time.AddDate(0, 0, 1), 160)...)

	suite.loader.EXPECT().Load(gomock.Any(), testKey, testPolicy).Return(screenLoad(series), nil)
	suite.sink.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	req := screenRequest("roc130")
	req.AsOf = optional.Some(series[len(series)-2].Time)

	handle, err := suite.coord.StartScreen(req)
	suite.Require().NoError(err)
	suite.wait(handle)

	matches := suite.coord.Result().Unwrap().Matches
	suite.Require().Len(matches, 1)
	suite.Equal(series[len(series)-2].Time, matches[0].Date)
}

func (suite *CoordinatorTestSuite) TestStopDuringScan() {
	loaded := screenLoad(
		mocks.BarsFromCloses("S1", screenStart, 1, 2),
		mocks.BarsFromCloses("S2", screenStart, 1, 2),
		mocks.BarsFromCloses("S3", screenStart, 1, 2),
		mocks.BarsFromCloses("S4", screenStart, 1, 2),
	)
	suite.loader.EXPECT().Load(gomock.Any(), testKey, testPolicy).Return(loaded, nil)
	suite.sink.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	handle, err := suite.coord.StartScreen(screenRequest("gated_screen"))
	suite.Require().NoError(err)

	select {
	case <-suite.screenGate.reached:
	case <-time.After(5 * time.Second):
		suite.FailNow("scan never reached the gated symbol")
	}

	running := suite.coord.GetStatus()
	suite.Equal(types.JobStatusRunning, running.Status)
	suite.Equal(4, running.Progress.TotalSymbols)
	suite.Equal("S2", running.Progress.CurrentSymbol)

	_, err = suite.coord.StartRun(request("signal_column"))
	suite.True(errors.HasCode(err, errors.ErrCodeAlreadyRunning))

	suite.True(suite.coord.RequestStop())
	suite.Equal(types.JobStatusStopping, suite.coord.GetStatus().Status)

	close(suite.screenGate.release)
	suite.wait(handle)

	final := suite.coord.GetStatus()
	suite.Equal(types.JobStatusCompleted, final.Status)
	suite.Equal(2, final.Progress.ProcessedSymbols)
	suite.Empty(final.Progress.ErrorMessage)

	// matches found before the stop are kept
	result := suite.coord.Result().Unwrap()
	suite.Require().Len(result.Matches, 2)
	suite.Equal("S1", result.Matches[0].Symbol)
	suite.Equal("S2", result.Matches[1].Symbol)
}

func (suite *CoordinatorTestSuite) TestStartScreenValidation() {
	_, err := suite.coord.StartScreen(screenRequest("rsi"))
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownScreener))

	_, err = suite.coord.StartScreen(screenRequest(""))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	badParams := screenRequest("roc130")
	badParams.Params = map[string]any{"period": 0}
	_, err = suite.coord.StartScreen(badParams)
	suite.True(errors.HasCode(err, errors.ErrCodeScreenerConfigError))

	badKey := screenRequest("roc130")
	badKey.DatasetKey = types.DatasetKey{Kind: types.DatasetGroup, Name: ""}
	_, err = suite.coord.StartScreen(badKey)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	coord := NewCoordinator(logger.NewNopLogger(), Config{Loader: suite.loader}) //nolint:exhaustruct
	_, err = coord.StartScreen(screenRequest("roc130"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	suite.Equal(types.JobStatusIdle, suite.coord.GetStatus().Status)
	suite.Equal(0, suite.recorder.started)
}
