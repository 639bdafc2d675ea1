package screener

import (
	"testing"
	"time"

	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/mocks"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ScreenerTestSuite struct {
	suite.Suite
	registry Registry
	start    time.Time
}

func TestScreenerSuite(t *testing.T) {
	suite.Run(t, new(ScreenerTestSuite))
}

func (suite *ScreenerTestSuite) SetupTest() {
	registry, err := DefaultRegistry()
	suite.Require().NoError(err)

	suite.registry = registry
	suite.start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

// flatThen returns count closes of 100 followed by tail.
func flatThen(count int, tail ...float64) []float64 {
	closes := make([]float64, 0, count+len(tail))
	for range count {
		closes = append(closes, 100)
	}

	return append(closes, tail...)
}

func (suite *ScreenerTestSuite) roc130() Screener {
	s, err := suite.registry.New("roc130", nil)
	suite.Require().NoError(err)

	return s
}

func (suite *ScreenerTestSuite) TestROCCrossing() {
	tests := []struct {
		name      string
		dayBefore float64
		yesterday float64
		matches   bool
	}{
		{"crosses above", 139, 141, true},
		{"day before exactly at threshold", 140, 150, false},
		{"yesterday exactly at threshold", 139, 140, false},
		{"already above", 150, 160, false},
		{"falls below", 141, 139, false},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			bars := mocks.BarsFromCloses("AAPL", suite.start, flatThen(130, tt.dayBefore, tt.yesterday)...)

			result, err := suite.roc130().Screen("AAPL", bars)
			suite.Require().NoError(err)
			suite.Equal(tt.matches, result.IsSome())

			if tt.matches {
				m := result.Unwrap()
				suite.Equal("AAPL", m.Symbol)
				suite.Equal(bars[len(bars)-1].Time, m.Date)
				suite.Equal(41.0, m.Values["roc_yesterday"])
				suite.Equal(39.0, m.Values["roc_day_before"])
			}
		})
	}
}

func (suite *ScreenerTestSuite) TestROCNeedsTwoReadings() {
	bars := mocks.BarsFromCloses("AAPL", suite.start, flatThen(130, 200)...)

	result, err := suite.roc130().Screen("AAPL", bars)
	suite.Require().NoError(err)
	suite.True(result.IsNone())
}

func (suite *ScreenerTestSuite) TestROCCustomParams() {
	s, err := suite.registry.New("roc130", map[string]any{"period": 2, "threshold": 10})
	suite.Require().NoError(err)

	bars := mocks.BarsFromCloses("MSFT", suite.start, 100, 100, 105, 112)

	result, err := s.Screen("MSFT", bars)
	suite.Require().NoError(err)
	suite.Require().True(result.IsSome())
	suite.Equal(5.0, result.Unwrap().Values["roc_day_before"])
	suite.Equal(12.0, result.Unwrap().Values["roc_yesterday"])
}

func (suite *ScreenerTestSuite) TestEMATouch() {
	s, err := suite.registry.New("ema_touch", nil)
	suite.Require().NoError(err)

	tests := []struct {
		name    string
		low     float64
		close   float64
		matches bool
	}{
		{"trades through and closes above", 90, 110, true},
		{"stays above the average", 101, 105, false},
		{"closes below the average", 90, 99, false},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			bars := mocks.BarsFromCloses("SPY", suite.start, flatThen(250, tt.close)...)
			bars[len(bars)-1].Low = tt.low

			result, err := s.Screen("SPY", bars)
			suite.Require().NoError(err)
			suite.Equal(tt.matches, result.IsSome())

			if tt.matches {
				values := result.Unwrap().Values
				suite.LessOrEqual(values["low"], values["ema"])
				suite.LessOrEqual(values["ema"], values["close"])
			}
		})
	}

	result, err := s.Screen("SPY", nil)
	suite.Require().NoError(err)
	suite.True(result.IsNone())
}

func (suite *ScreenerTestSuite) TestEMA() {
	bars := mocks.BarsFromCloses("SPY", suite.start, flatThen(50)...)
	suite.InDelta(100.0, EMA(bars, 200), 1e-9)

	// span 1 gives all weight to the last close
	bars = mocks.BarsFromCloses("SPY", suite.start, 10, 20, 30)
	suite.InDelta(30.0, EMA(bars, 1), 1e-9)

	// with span 3 the weights are 1, 0.5, 0.25 from the last bar back
	suite.InDelta((30+0.5*20+0.25*10)/1.75, EMA(bars, 3), 1e-9)
}

func (suite *ScreenerTestSuite) TestRegistry() {
	descriptors := suite.registry.List()
	suite.Require().Len(descriptors, 2)
	suite.Equal("ema_touch", descriptors[0].Key)
	suite.Equal("roc130", descriptors[1].Key)
	suite.Contains(descriptors[1].ParamsSchema, "threshold")

	suite.True(suite.registry.Has("roc130"))
	suite.False(suite.registry.Has("rsi"))

	_, err := suite.registry.New("rsi", nil)
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownScreener))

	_, err = suite.registry.New("roc130", map[string]any{"period": 0})
	suite.True(errors.HasCode(err, errors.ErrCodeScreenerConfigError))

	err = suite.registry.Register(Definition{Key: "roc130", Factory: NewROCCross})
	suite.True(errors.HasCode(err, errors.ErrCodeScreenerExists))

	err = suite.registry.Register(Definition{Key: "incomplete"})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *ScreenerTestSuite) TestMatchCarriesLastBar() {
	bars := []types.Bar{{Symbol: "X", Time: suite.start, Close: 1}} //nolint:exhaustruct

	m := match("X", bars[0], map[string]float64{"v": 1}).Unwrap()
	suite.Equal(suite.start, m.Date)
	suite.Equal(1.0, m.Values["v"])
}
