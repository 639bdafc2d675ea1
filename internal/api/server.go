// Package api serves the coordinator over HTTP: JSON endpoints to start,
// stop and inspect runs and scans, and a websocket stream of status snapshots.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/coordinator"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/metrics"
	"github.com/rxtech-lab/tradermind/internal/screener"
	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"go.uber.org/zap"
)

// Coordinator is the part of the job coordinator the API drives.
type Coordinator interface {
	StartRun(req coordinator.RunRequest) (coordinator.RunHandle, error)
	StartScreen(req coordinator.ScreenRequest) (coordinator.RunHandle, error)
	RequestStop() bool
	GetStatus() types.JobState
	Result() optional.Option[types.RunResult]
}

// ResultStore reads results of earlier runs.
type ResultStore interface {
	Load(runID string) (types.RunStats, error)
	LoadTrades(ctx context.Context, runID string) ([]types.Trade, error)
}

// Options are the optional collaborators and defaults of a Server.
type Options struct {
	Results        ResultStore
	Screeners      screener.Registry
	Metrics        *metrics.Recorder
	Sizing         Sizing
	StreamInterval time.Duration
}

// Sizing holds the capital defaults used when a request leaves them out.
type Sizing struct {
	Capital            float64
	AllocationFraction float64
}

type Server struct {
	coord          Coordinator
	registry       strategy.Registry
	screeners      screener.Registry
	results        ResultStore
	metrics        *metrics.Recorder
	sizing         Sizing
	streamInterval time.Duration
	logger         *logger.Logger
	upgrader       websocket.Upgrader
}

func NewServer(coord Coordinator, registry strategy.Registry, log *logger.Logger, opts Options) *Server {
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}

	return &Server{
		coord:          coord,
		registry:       registry,
		screeners:      opts.Screeners,
		results:        opts.Results,
		metrics:        opts.Metrics,
		sizing:         opts.Sizing,
		streamInterval: opts.StreamInterval,
		logger:         log.Named("api"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Router returns the handler of every route.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	if s.metrics != nil {
		router.Use(s.metrics.Middleware)
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/run", s.handleStartRun).Methods(http.MethodPost)
	api.HandleFunc("/run/stop", s.handleStopRun).Methods(http.MethodPost)
	api.HandleFunc("/run/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/run/status/stream", s.handleStatusStream).Methods(http.MethodGet)
	api.HandleFunc("/run/result", s.handleResult).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleSavedRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/trades", s.handleSavedTrades).Methods(http.MethodGet)
	api.HandleFunc("/screen", s.handleStartScreen).Methods(http.MethodPost)
	api.HandleFunc("/strategies", s.handleStrategies).Methods(http.MethodGet)
	api.HandleFunc("/screeners", s.handleScreeners).Methods(http.MethodGet)

	return router
}

// handleStartRun handles POST /api/run
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	req, err := body.ToRunRequest(s.sizing)
	if err != nil {
		s.writeError(w, err)

		return
	}

	handle, err := s.coord.StartRun(req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusAccepted, startRunResponse{RunID: handle.ID})
}

// handleStartScreen handles POST /api/screen
func (s *Server) handleStartScreen(w http.ResponseWriter, r *http.Request) {
	var body ScreenRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	req, err := body.ToScreenRequest()
	if err != nil {
		s.writeError(w, err)

		return
	}

	handle, err := s.coord.StartScreen(req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusAccepted, startRunResponse{RunID: handle.ID})
}

// handleStopRun handles POST /api/run/stop
func (s *Server) handleStopRun(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, stopRunResponse{Stopped: s.coord.RequestStop()})
}

// handleStatus handles GET /api/run/status
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.coord.GetStatus()

	s.writeJSON(w, http.StatusOK, statusResponse{JobState: state, IsRunning: state.IsRunning()})
}

// handleResult handles GET /api/run/result
func (s *Server) handleResult(w http.ResponseWriter, _ *http.Request) {
	result := s.coord.Result()
	if result.IsNone() {
		s.writeError(w, errors.New(errors.ErrCodeNoResult, "no run has finished yet"))

		return
	}

	s.writeJSON(w, http.StatusOK, result.Unwrap())
}

// handleSavedRun handles GET /api/runs/{id}
func (s *Server) handleSavedRun(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.writeError(w, errors.New(errors.ErrCodeNoResult, "results are not persisted"))

		return
	}

	stats, err := s.results.Load(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// handleSavedTrades handles GET /api/runs/{id}/trades
func (s *Server) handleSavedTrades(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.writeError(w, errors.New(errors.ErrCodeNoResult, "results are not persisted"))

		return
	}

	trades, err := s.results.LoadTrades(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	if trades == nil {
		trades = []types.Trade{}
	}

	s.writeJSON(w, http.StatusOK, trades)
}

// handleStrategies handles GET /api/strategies
func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.List())
}

// handleScreeners handles GET /api/screeners
func (s *Server) handleScreeners(w http.ResponseWriter, _ *http.Request) {
	if s.screeners == nil {
		s.writeJSON(w, http.StatusOK, []strategy.Descriptor{})

		return
	}

	s.writeJSON(w, http.StatusOK, s.screeners.List())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}

	s.writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  int(errors.GetCode(err)),
	})
}

func statusFor(err error) int {
	switch code, category := errors.GetCode(err), errors.CategoryOf(err); {
	case code == errors.ErrCodeAlreadyRunning:
		return http.StatusConflict
	case code == errors.ErrCodeNoResult, code == errors.ErrCodeDataNotFound:
		return http.StatusNotFound
	case category == errors.CategoryValidation, category == errors.CategoryStrategy:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
