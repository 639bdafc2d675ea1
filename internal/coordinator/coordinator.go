// Package coordinator owns the single batch job slot of the process. It
// serializes runs, executes them in the background, publishes progress
// snapshots and supports cooperative stop.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/screener"
	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"go.uber.org/zap"
)

// Work is the body of a run. It reports progress through run and must call
// run.Next before each symbol so that stop requests are honored.
type Work func(ctx context.Context, run *Run) error

// Recorder receives coordinator instrumentation.
type Recorder interface {
	RunStarted()
	RunFinished(status types.JobStatus, duration time.Duration)
	SymbolProcessed()
	SymbolFailed()
}

type nopRecorder struct{}

func (nopRecorder) RunStarted()                                {}
func (nopRecorder) RunFinished(types.JobStatus, time.Duration) {}
func (nopRecorder) SymbolProcessed()                           {}
func (nopRecorder) SymbolFailed()                              {}

// Config wires the collaborators of a Coordinator. Loader and Registry are
// only needed by StartRun, Loader and Screeners by StartScreen. Sink, Clock
// and Recorder are optional.
type Config struct {
	Loader    DatasetLoader
	Registry  strategy.Registry
	Screeners screener.Registry
	Sink      Sink
	Policy    types.FreshnessPolicy
	Clock     func() time.Time
	Recorder  Recorder
}

// RunHandle identifies a started run.
type RunHandle struct {
	ID   string
	done <-chan struct{}
}

// Done is closed once the run reached a terminal state.
func (h RunHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finished or ctx is done.
func (h RunHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Coordinator is the process-wide job slot. Create one in the composition
// root and share it by pointer.
type Coordinator struct {
	logger    *logger.Logger
	loader    DatasetLoader
	registry  strategy.Registry
	screeners screener.Registry
	sink      Sink
	policy    types.FreshnessPolicy
	clock     func() time.Time
	recorder  Recorder

	// mu guards every field below, including the accumulators of the active Run.
	mu     sync.Mutex
	state  types.JobState
	result optional.Option[types.RunResult]
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(log *logger.Logger, config Config) *Coordinator {
	if config.Clock == nil {
		config.Clock = time.Now
	}

	if config.Recorder == nil {
		config.Recorder = nopRecorder{}
	}

	return &Coordinator{
		logger:    log.Named("coordinator"),
		loader:    config.Loader,
		registry:  config.Registry,
		screeners: config.Screeners,
		sink:      config.Sink,
		policy:    config.Policy,
		clock:     config.Clock,
		recorder:  config.Recorder,
		mu:        sync.Mutex{},
		state:     types.JobState{Status: types.JobStatusIdle}, //nolint:exhaustruct
		result:    optional.None[types.RunResult](),
		cancel:    nil,
		done:      nil,
	}
}

// Start launches work in the background and returns without waiting for it.
// It fails with ErrCodeAlreadyRunning while another run is running or stopping.
func (c *Coordinator) Start(work Work) (RunHandle, error) {
	return c.start(runMeta{strategy: "", screener: "", dataset: ""}, work)
}

func (c *Coordinator) start(meta runMeta, work Work) (RunHandle, error) {
	if work == nil {
		return RunHandle{}, errors.New(errors.ErrCodeMissingParameter, "work is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status.IsActive() {
		return RunHandle{}, errors.Newf(errors.ErrCodeAlreadyRunning, "run %s is already %s", c.state.RunID, c.state.Status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	run := newRun(c, uuid.New().String(), meta)

	c.state = types.JobState{
		Status: types.JobStatusRunning,
		Progress: types.Progress{
			TotalSymbols:     0,
			ProcessedSymbols: 0,
			CurrentSymbol:    "",
			ErrorMessage:     "",
			FailedSymbols:    0,
		},
		StopRequested: false,
		RunID:         run.id,
		StartedAt:     c.clock(),
		FinishedAt:    time.Time{},
		Warnings:      nil,
	}
	c.cancel = cancel
	c.done = done

	c.recorder.RunStarted()
	c.logger.Info("Run started",
		zap.String("run_id", run.id),
		zap.String("strategy", meta.strategy),
		zap.String("screener", meta.screener),
		zap.String("dataset", meta.dataset),
	)

	go func() {
		defer close(done)

		err := c.execute(ctx, run, work)
		c.finish(ctx, run, err)
	}()

	return RunHandle{ID: run.id, done: done}, nil
}

// execute runs work, turning a panic into ErrCodeRunInternalError.
func (c *Coordinator) execute(ctx context.Context, run *Run, work Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Run panicked", zap.String("run_id", run.id), zap.Any("panic", r))
			err = errors.Newf(errors.ErrCodeRunInternalError, "run panicked: %v", r)
		}
	}()

	return work(ctx, run)
}

func (c *Coordinator) finish(ctx context.Context, run *Run, workErr error) {
	finishedAt := c.clock()

	status := types.JobStatusCompleted
	if workErr != nil {
		status = types.JobStatusError
	}

	c.mu.Lock()
	result := run.resultLocked(status, c.state.StartedAt, finishedAt)
	processed := c.state.Progress.ProcessedSymbols
	startedAt := c.state.StartedAt
	c.mu.Unlock()

	if c.sink != nil && processed > 0 {
		if err := c.sink.Save(context.WithoutCancel(ctx), result); err != nil {
			c.logger.Error("Failed to save run result", zap.String("run_id", run.id), zap.Error(err))

			if workErr == nil {
				workErr = errors.Wrap(errors.ErrCodeResultSaveFailed, "failed to save run result", err)
			}

			status = types.JobStatusError
			result.Status = status
		}
	}

	c.mu.Lock()
	c.state.Status = status
	c.state.FinishedAt = finishedAt
	c.state.Progress.CurrentSymbol = ""

	if workErr != nil {
		c.state.Progress.ErrorMessage = workErr.Error()
	}

	c.result = optional.Some(result)
	c.cancel()
	c.mu.Unlock()

	c.recorder.RunFinished(status, finishedAt.Sub(startedAt))

	if workErr != nil {
		c.logger.Error("Run failed",
			zap.String("run_id", run.id),
			zap.Int("processed_symbols", processed),
			zap.Error(workErr),
		)

		return
	}

	c.logger.Info("Run completed",
		zap.String("run_id", run.id),
		zap.Int("processed_symbols", processed),
		zap.Int("trades", len(result.Trades)),
		zap.Int("matches", len(result.Matches)),
		zap.Float64("win_rate", result.Metrics.WinRate),
	)
}

// RequestStop asks the active run to stop at the next symbol boundary. It
// returns false when no run is active and never waits for the run to end.
func (c *Coordinator) RequestStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Status.IsActive() {
		return false
	}

	if !c.state.StopRequested {
		c.state.StopRequested = true
		c.state.Status = types.JobStatusStopping

		c.logger.Info("Stop requested",
			zap.String("run_id", c.state.RunID),
			zap.Int("processed_symbols", c.state.Progress.ProcessedSymbols),
		)
	}

	return true
}

// GetStatus returns a consistent snapshot of the job state.
func (c *Coordinator) GetStatus() types.JobState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.Copy()
}

// Result returns the result of the most recently finished run.
func (c *Coordinator) Result() optional.Option[types.RunResult] {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.result
}

// Shutdown requests a stop and waits up to timeout for the active run. On
// timeout it logs a warning and cancels the run's context.
func (c *Coordinator) Shutdown(timeout time.Duration) {
	c.RequestStop()

	c.mu.Lock()
	done := c.done
	cancel := c.cancel
	c.mu.Unlock()

	if done == nil {
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		c.logger.Info("Coordinator shut down")
	case <-timer.C:
		c.logger.Warn("Timed out waiting for run to stop", zap.Duration("timeout", timeout))
		cancel()
	}
}

func (c *Coordinator) String() string {
	state := c.GetStatus()

	return fmt.Sprintf("coordinator(%s, %d/%d)", state.Status, state.Progress.ProcessedSymbols, state.Progress.TotalSymbols)
}
