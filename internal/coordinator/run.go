package coordinator

import (
	"fmt"
	"slices"
	"time"

	"github.com/rxtech-lab/tradermind/internal/ledger"
	"github.com/rxtech-lab/tradermind/internal/types"
	"go.uber.org/zap"
)

type runMeta struct {
	strategy string
	screener string
	dataset  string
}

// Run is the view of the job slot handed to Work. All of its methods take
// the coordinator lock, so progress is published as one snapshot.
type Run struct {
	c    *Coordinator
	id   string
	meta runMeta

	results []ledger.SymbolResult
	matches []types.ScreenMatch
	failed  []string
}

func newRun(c *Coordinator, id string, meta runMeta) *Run {
	return &Run{
		c:       c,
		id:      id,
		meta:    meta,
		results: nil,
		matches: nil,
		failed:  nil,
	}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// SetTotal publishes the number of symbols the run will walk.
func (r *Run) SetTotal(total int) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	r.c.state.Progress.TotalSymbols = total
}

// Next is called before processing symbol. It returns false when a stop was
// requested; otherwise symbol becomes current and is counted as processed.
func (r *Run) Next(symbol string) bool {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if r.c.state.StopRequested {
		return false
	}

	r.c.state.Progress.CurrentSymbol = symbol
	r.c.state.Progress.ProcessedSymbols++
	r.c.recorder.SymbolProcessed()

	return true
}

// RecordFailure counts symbol as failed. The run goes on.
func (r *Run) RecordFailure(symbol string, err error) {
	r.c.logger.Warn("Symbol failed", zap.String("run_id", r.id), zap.String("symbol", symbol), zap.Error(err))

	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	r.failed = append(r.failed, symbol)
	r.c.state.Progress.FailedSymbols++
	r.c.state.Warnings = append(r.c.state.Warnings, fmt.Sprintf("%s: %v", symbol, err))
	r.c.recorder.SymbolFailed()
}

// RecordSymbol merges the outcome of one processed symbol into the run.
func (r *Run) RecordSymbol(result ledger.SymbolResult) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	r.results = append(r.results, result)
}

// RecordMatch keeps a symbol selected by a screener.
func (r *Run) RecordMatch(match types.ScreenMatch) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	r.matches = append(r.matches, match)
}

// Warn attaches a non-fatal message to the job state.
func (r *Run) Warn(message string) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	r.c.state.Warnings = append(r.c.state.Warnings, message)
}

// resultLocked builds the run result. The caller holds the coordinator lock.
func (r *Run) resultLocked(status types.JobStatus, startedAt time.Time, finishedAt time.Time) types.RunResult {
	trades, metrics := ledger.Summarize(r.results)

	perSymbol := make(map[string]types.RunMetrics, len(r.results))
	for _, res := range r.results {
		perSymbol[res.Symbol] = res.Metrics
	}

	return types.RunResult{
		RunID:         r.id,
		Strategy:      r.meta.strategy,
		Screener:      r.meta.screener,
		Dataset:       r.meta.dataset,
		Status:        status,
		Trades:        trades,
		PerSymbol:     perSymbol,
		Metrics:       metrics,
		FailedSymbols: slices.Clone(r.failed),
		Matches:       slices.Clone(r.matches),
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	}
}
