package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/tradermind/internal/coordinator"
	"github.com/rxtech-lab/tradermind/internal/dataset"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/metrics"
	"github.com/rxtech-lab/tradermind/internal/screener"
	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/mocks"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type ServerTestSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	loader  *mocks.MockDatasetLoader
	coord   *coordinator.Coordinator
	results *fakeResults
	server  *Server
	router  http.Handler

	release     chan struct{}
	releaseOnce sync.Once
}

type fakeResults struct {
	stats  map[string]types.RunStats
	trades map[string][]types.Trade
}

func (f *fakeResults) Load(runID string) (types.RunStats, error) {
	stats, ok := f.stats[runID]
	if !ok {
		return types.RunStats{}, errors.Newf(errors.ErrCodeNoResult, "no saved result for run %s", runID)
	}

	return stats, nil
}

func (f *fakeResults) LoadTrades(_ context.Context, runID string) ([]types.Trade, error) {
	if _, err := f.Load(runID); err != nil {
		return nil, err
	}

	return f.trades[runID], nil
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (suite *ServerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.loader = mocks.NewMockDatasetLoader(suite.ctrl)
	suite.release = make(chan struct{})
	suite.releaseOnce = sync.Once{}

	registry, err := strategy.DefaultRegistry()
	suite.Require().NoError(err)

	screeners, err := screener.DefaultRegistry()
	suite.Require().NoError(err)

	suite.coord = coordinator.NewCoordinator(logger.NewNopLogger(), coordinator.Config{
		Loader:    suite.loader,
		Registry:  registry,
		Screeners: screeners,
		Sink:      nil,
		Policy:    types.FreshnessPolicy{MaxAge: time.Hour},
		Clock:     nil,
		Recorder:  nil,
	})

	suite.results = &fakeResults{
		stats:  map[string]types.RunStats{"saved": {ID: "saved", Strategy: "signal_column"}}, //nolint:exhaustruct
		trades: map[string][]types.Trade{},
	}

	suite.server = NewServer(suite.coord, registry, logger.NewNopLogger(), Options{
		Results:        suite.results,
		Screeners:      screeners,
		Metrics:        metrics.New(nil),
		Sizing:         Sizing{Capital: 10000, AllocationFraction: 0.1},
		StreamInterval: 10 * time.Millisecond,
	})
	suite.router = suite.server.Router()
}

func (suite *ServerTestSuite) TearDownTest() {
	suite.unblock()
	suite.coord.Shutdown(5 * time.Second)
	suite.ctrl.Finish()
}

func (suite *ServerTestSuite) unblock() {
	suite.releaseOnce.Do(func() { close(suite.release) })
}

func roundTrip(symbol string) []types.Bar {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 95, 98, 105}
	signals := []float64{0, 1, 1, 0}

	bars := make([]types.Bar, len(closes))
	for i := range closes {
		bars[i] = types.Bar{
			Symbol: symbol,
			Time:   day.AddDate(0, 0, i),
			Open:   closes[i],
			High:   closes[i],
			Low:    closes[i],
			Close:  closes[i],
			Volume: 1000,
			Extra:  map[string]float64{"signal": signals[i]},
		}
	}

	return bars
}

// expectLoad makes the loader wait for release before returning one symbol.
func (suite *ServerTestSuite) expectLoad(blocking bool) {
	suite.loader.EXPECT().Load(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key types.DatasetKey, _ types.FreshnessPolicy) (dataset.LoadResult, error) {
			if blocking {
				<-suite.release
			}

			return dataset.LoadResult{
				Entry:         types.CacheEntry{Key: key, Bars: roundTrip("AAPL"), FetchedAt: time.Now()},
				Outcome:       dataset.OutcomeHit,
				FailedSymbols: nil,
				Warnings:      nil,
			}, nil
		})
}

func (suite *ServerTestSuite) do(method string, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))

	return rec
}

func (suite *ServerTestSuite) decode(rec *httptest.ResponseRecorder, v any) {
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v))
}

func (suite *ServerTestSuite) waitTerminal() types.JobState {
	suite.Require().Eventually(func() bool {
		return suite.coord.GetStatus().Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)

	return suite.coord.GetStatus()
}

func (suite *ServerTestSuite) TestStartRunAndFetchResult() {
	suite.expectLoad(false)

	rec := suite.do(http.MethodPost, "/api/run", `{"dataset":"group:Tech","strategy":"signal_column"}`)
	suite.Require().Equal(http.StatusAccepted, rec.Code)

	var started startRunResponse
	suite.decode(rec, &started)
	suite.NotEmpty(started.RunID)

	state := suite.waitTerminal()
	suite.Equal(types.JobStatusCompleted, state.Status)

	rec = suite.do(http.MethodGet, "/api/run/status", "")
	suite.Equal(http.StatusOK, rec.Code)

	var status statusResponse
	suite.decode(rec, &status)
	suite.Equal(started.RunID, status.RunID)
	suite.Equal(1, status.Progress.ProcessedSymbols)
	suite.False(status.IsRunning)
	suite.Contains(rec.Body.String(), `"is_running":false`)

	rec = suite.do(http.MethodGet, "/api/run/result", "")
	suite.Require().Equal(http.StatusOK, rec.Code)

	var result types.RunResult
	suite.decode(rec, &result)
	suite.Equal(started.RunID, result.RunID)
	suite.Equal("group:Tech", result.Dataset)
	suite.Equal(1, result.Metrics.TotalTrades)
	suite.InDelta(10.526, result.Metrics.AvgReturn, 0.001)
}

func (suite *ServerTestSuite) TestResultBeforeAnyRun() {
	rec := suite.do(http.MethodGet, "/api/run/result", "")
	suite.Equal(http.StatusNotFound, rec.Code)

	var body errorResponse
	suite.decode(rec, &body)
	suite.Equal(int(errors.ErrCodeNoResult), body.Code)
}

func (suite *ServerTestSuite) TestConflictAndStop() {
	suite.expectLoad(true)

	rec := suite.do(http.MethodPost, "/api/run", `{"strategy":"signal_column"}`)
	suite.Require().Equal(http.StatusAccepted, rec.Code)

	rec = suite.do(http.MethodPost, "/api/run", `{"strategy":"signal_column"}`)
	suite.Equal(http.StatusConflict, rec.Code)

	rec = suite.do(http.MethodPost, "/api/run/stop", "")
	suite.Equal(http.StatusOK, rec.Code)

	var stopped stopRunResponse
	suite.decode(rec, &stopped)
	suite.True(stopped.Stopped)
	suite.Equal(types.JobStatusStopping, suite.coord.GetStatus().Status)

	suite.unblock()

	state := suite.waitTerminal()
	suite.Equal(types.JobStatusCompleted, state.Status)
	suite.Equal(0, state.Progress.ProcessedSymbols)
}

func (suite *ServerTestSuite) TestStopWhenIdle() {
	rec := suite.do(http.MethodPost, "/api/run/stop", "")
	suite.Equal(http.StatusOK, rec.Code)

	var stopped stopRunResponse
	suite.decode(rec, &stopped)
	suite.False(stopped.Stopped)
}

func (suite *ServerTestSuite) TestBadRequests() {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"strategy":`, http.StatusBadRequest},
		{"bad dataset", `{"dataset":"sector","strategy":"signal_column"}`, http.StatusBadRequest},
		{"bad date", `{"strategy":"signal_column","start":"01/02/2024"}`, http.StatusBadRequest},
		{"unknown strategy", `{"strategy":"astrology"}`, http.StatusBadRequest},
		{"missing strategy", `{"dataset":"all"}`, http.StatusBadRequest},
		{"negative capital", `{"strategy":"signal_column","capital":-5}`, http.StatusBadRequest},
		{"bad params", `{"strategy":"mean_reversion","params":{"exit_days":0}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			rec := suite.do(http.MethodPost, "/api/run", tt.body)
			suite.Equal(tt.code, rec.Code)
		})
	}

	suite.Equal(types.JobStatusIdle, suite.coord.GetStatus().Status)
}

func (suite *ServerTestSuite) TestStrategies() {
	rec := suite.do(http.MethodGet, "/api/strategies", "")
	suite.Require().Equal(http.StatusOK, rec.Code)

	var listed []strategy.Descriptor
	suite.decode(rec, &listed)

	keys := make([]string, 0, len(listed))
	for _, d := range listed {
		keys = append(keys, d.Key)
	}

	suite.Contains(keys, "mean_reversion")
	suite.Contains(keys, "signal_column")
}

func (suite *ServerTestSuite) TestStartScreenAndFetchMatches() {
	suite.expectLoad(false)

	// closes 95, 98, 105 give one-bar ROC readings of 3.16 and 7.14
	rec := suite.do(http.MethodPost, "/api/screen", `{"dataset":"group:Tech","screener":"roc130","params":{"period":1,"threshold":5}}`)
	suite.Require().Equal(http.StatusAccepted, rec.Code)

	var started startRunResponse
	suite.decode(rec, &started)

	state := suite.waitTerminal()
	suite.Equal(types.JobStatusCompleted, state.Status)
	suite.Equal(started.RunID, state.RunID)

	rec = suite.do(http.MethodGet, "/api/run/result", "")
	suite.Require().Equal(http.StatusOK, rec.Code)

	var result types.RunResult
	suite.decode(rec, &result)
	suite.Equal("roc130", result.Screener)
	suite.Require().Len(result.Matches, 1)
	suite.Equal("AAPL", result.Matches[0].Symbol)
	suite.InDelta(7.14, result.Matches[0].Values["roc_yesterday"], 0.01)
}

func (suite *ServerTestSuite) TestScreenBadRequests() {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"screener":`},
		{"unknown screener", `{"screener":"astrology"}`},
		{"missing screener", `{"dataset":"all"}`},
		{"bad as_of", `{"screener":"roc130","as_of":"yesterday"}`},
		{"bad params", `{"screener":"ema_touch","params":{"period":0}}`},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			rec := suite.do(http.MethodPost, "/api/screen", tt.body)
			suite.Equal(http.StatusBadRequest, rec.Code)
		})
	}

	suite.Equal(types.JobStatusIdle, suite.coord.GetStatus().Status)
}

func (suite *ServerTestSuite) TestScreeners() {
	rec := suite.do(http.MethodGet, "/api/screeners", "")
	suite.Require().Equal(http.StatusOK, rec.Code)

	var listed []strategy.Descriptor
	suite.decode(rec, &listed)
	suite.Require().Len(listed, 2)
	suite.Equal("ema_touch", listed[0].Key)
	suite.Equal("roc130", listed[1].Key)

	bare := NewServer(suite.coord, strategy.NewRegistry(), logger.NewNopLogger(), Options{}) //nolint:exhaustruct
	rec = httptest.NewRecorder()
	bare.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/screeners", nil))
	suite.Equal(http.StatusOK, rec.Code)
	suite.JSONEq("[]", rec.Body.String())
}

func (suite *ServerTestSuite) TestSavedRuns() {
	rec := suite.do(http.MethodGet, "/api/runs/saved", "")
	suite.Require().Equal(http.StatusOK, rec.Code)

	var stats types.RunStats
	suite.decode(rec, &stats)
	suite.Equal("signal_column", stats.Strategy)

	rec = suite.do(http.MethodGet, "/api/runs/saved/trades", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.JSONEq("[]", rec.Body.String())

	rec = suite.do(http.MethodGet, "/api/runs/unknown", "")
	suite.Equal(http.StatusNotFound, rec.Code)
}

func (suite *ServerTestSuite) TestMetricsEndpoint() {
	suite.do(http.MethodGet, "/api/run/status", "")

	rec := suite.do(http.MethodGet, "/metrics", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), `route="/api/run/status"`)
}

func (suite *ServerTestSuite) dial(srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/run/status/stream"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	suite.Require().NoError(err)
	resp.Body.Close()

	return conn
}

func (suite *ServerTestSuite) TestStatusStreamWhenIdle() {
	srv := httptest.NewServer(suite.router)
	defer srv.Close()

	conn := suite.dial(srv)
	defer conn.Close()

	var state types.JobState
	suite.Require().NoError(conn.ReadJSON(&state))
	suite.Equal(types.JobStatusIdle, state.Status)

	_, _, err := conn.ReadMessage()
	suite.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func (suite *ServerTestSuite) TestStatusStreamFollowsRun() {
	suite.expectLoad(true)

	_, err := suite.coord.StartRun(coordinator.RunRequest{ //nolint:exhaustruct
		DatasetKey:         types.AllSymbols(),
		Capital:            10000,
		AllocationFraction: 0.1,
		Strategy:           "signal_column",
	})
	suite.Require().NoError(err)

	srv := httptest.NewServer(suite.router)
	defer srv.Close()

	conn := suite.dial(srv)
	defer conn.Close()

	var first types.JobState
	suite.Require().NoError(conn.ReadJSON(&first))
	suite.Equal(types.JobStatusRunning, first.Status)

	suite.unblock()

	var last types.JobState

	for {
		var state types.JobState
		if err := conn.ReadJSON(&state); err != nil {
			suite.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))

			break
		}

		last = state
	}

	suite.Equal(types.JobStatusCompleted, last.Status)
	suite.Equal(1, last.Progress.ProcessedSymbols)
}

func (suite *ServerTestSuite) TestStatusFor() {
	tests := []struct {
		err  error
		code int
	}{
		{errors.New(errors.ErrCodeAlreadyRunning, "busy"), http.StatusConflict},
		{errors.New(errors.ErrCodeNoResult, "none"), http.StatusNotFound},
		{errors.New(errors.ErrCodeInvalidParameter, "bad"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeUnknownStrategy, "who"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeUnknownScreener, "which"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeDataUnavailable, "down"), http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		suite.Equal(tt.code, statusFor(tt.err), tt.err.Error())
	}
}
