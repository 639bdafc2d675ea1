package coordinator

import (
	"context"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/dataset"
	"github.com/rxtech-lab/tradermind/internal/ledger"
	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"go.uber.org/zap"
)

// DatasetLoader supplies the working dataset of a run.
type DatasetLoader interface {
	Load(ctx context.Context, key types.DatasetKey, policy types.FreshnessPolicy) (dataset.LoadResult, error)
}

// Sink durably records the result of a finished run.
type Sink interface {
	Save(ctx context.Context, result types.RunResult) error
}

// RunRequest describes one backtest run over a dataset.
type RunRequest struct {
	DatasetKey types.DatasetKey `json:"dataset_key" yaml:"dataset_key"`
	// Symbols restricts the run. Empty means every symbol of the dataset.
	Symbols            []string                   `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Start              optional.Option[time.Time] `json:"-" yaml:"-"`
	End                optional.Option[time.Time] `json:"-" yaml:"-"`
	Capital            float64                    `json:"capital" yaml:"capital" validate:"gt=0"`
	AllocationFraction float64                    `json:"allocation_fraction" yaml:"allocation_fraction" validate:"gt=0,lte=1"`
	Strategy           string                     `json:"strategy" yaml:"strategy" validate:"required"`
	Params             map[string]any             `json:"params,omitempty" yaml:"params,omitempty"`
}

var validate = validator.New()

// Sizing returns the ledger sizing parameters of the request.
func (r RunRequest) Sizing() ledger.Sizing {
	return ledger.Sizing{
		Capital:            r.Capital,
		AllocationFraction: r.AllocationFraction,
	}
}

// Validate checks the request without touching any collaborator.
func (r RunRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid run request", err)
	}

	if r.Start.IsSome() && r.End.IsSome() && r.End.Unwrap().Before(r.Start.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidParameter, "end date is before start date")
	}

	return nil
}

// StartRun validates req, resolves its strategy and starts the batch loop
// over the symbols of the requested dataset. Validation and lookup errors
// are returned directly and leave the job state untouched.
func (c *Coordinator) StartRun(req RunRequest) (RunHandle, error) {
	if err := req.Validate(); err != nil {
		return RunHandle{}, err
	}

	if c.loader == nil || c.registry == nil {
		return RunHandle{}, errors.New(errors.ErrCodeInvalidConfiguration, "coordinator has no dataset loader or strategy registry")
	}

	strat, err := c.registry.New(req.Strategy, req.Params)
	if err != nil {
		return RunHandle{}, err
	}

	meta := runMeta{strategy: strat.Name(), screener: "", dataset: req.DatasetKey.String()}

	return c.start(meta, func(ctx context.Context, run *Run) error {
		return c.backtest(ctx, run, req, strat)
	})
}

func (c *Coordinator) backtest(ctx context.Context, run *Run, req RunRequest, strat strategy.Strategy) error {
	filter := dataset.Filter{
		Start:   req.Start,
		End:     req.End,
		Symbols: req.Symbols,
	}
	sizing := req.Sizing()

	return c.walk(ctx, run, req.DatasetKey, filter, func(symbol string, series []types.Bar) error {
		signals, err := strat.Prepare(series)
		if err != nil {
			return err
		}

		result, err := ledger.Process(symbol, series, signals, sizing)
		if err != nil {
			return err
		}

		run.RecordSymbol(result)

		return nil
	})
}

// walk loads the dataset of key and calls visit with the bars of every
// selected symbol, in order, until the symbols run out or a stop is
// requested. Errors returned by visit fail the symbol, not the run.
func (c *Coordinator) walk(
	ctx context.Context,
	run *Run,
	key types.DatasetKey,
	filter dataset.Filter,
	visit func(symbol string, series []types.Bar) error,
) error {
	loaded, err := c.loader.Load(ctx, key, c.policy)
	if err != nil {
		return err
	}

	for _, warning := range loaded.Warnings {
		run.Warn(warning)
	}

	wanted := make(map[string]bool, len(filter.Symbols))
	for _, symbol := range filter.Symbols {
		wanted[symbol] = true
	}

	for _, symbol := range loaded.FailedSymbols {
		if len(wanted) == 0 || wanted[symbol] {
			run.RecordFailure(symbol, errors.Newf(errors.ErrCodeSymbolFetchFailed, "no data fetched for %s", symbol))
		}
	}

	bars := dataset.Select(loaded.Entry, filter)
	groups := dataset.GroupBySymbol(bars)

	symbols := filter.Symbols
	if len(symbols) == 0 {
		symbols = dataset.Symbols(bars)
	}

	run.SetTotal(len(symbols))

	c.logger.Info("Walking symbols",
		zap.String("run_id", run.ID()),
		zap.String("dataset", key.String()),
		zap.String("outcome", string(loaded.Outcome)),
		zap.Int("symbols", len(symbols)),
		zap.Int("bars", len(bars)),
	)

	for _, symbol := range symbols {
		if !run.Next(symbol) {
			c.logger.Info("Run stopped at symbol boundary", zap.String("run_id", run.ID()), zap.String("next_symbol", symbol))

			return nil
		}

		series, ok := groups[symbol]
		if !ok || len(series) == 0 {
			if !slices.Contains(loaded.FailedSymbols, symbol) {
				run.RecordFailure(symbol, errors.Newf(errors.ErrCodeDataNotFound, "no bars for %s in the selected range", symbol))
			}

			continue
		}

		if err := visit(symbol, series); err != nil {
			run.RecordFailure(symbol, err)
		}
	}

	return nil
}
