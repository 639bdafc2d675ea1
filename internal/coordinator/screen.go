package coordinator

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/dataset"
	"github.com/rxtech-lab/tradermind/internal/screener"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"go.uber.org/zap"
)

// ScreenRequest describes one scan over a dataset.
type ScreenRequest struct {
	DatasetKey types.DatasetKey `json:"dataset_key" yaml:"dataset_key"`
	// Symbols restricts the scan. Empty means every symbol of the dataset.
	Symbols []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	// AsOf is the last day a screener sees. None means the latest bar.
	AsOf     optional.Option[time.Time] `json:"-" yaml:"-"`
	Screener string                     `json:"screener" yaml:"screener" validate:"required"`
	Params   map[string]any             `json:"params,omitempty" yaml:"params,omitempty"`
}

// Validate checks the request without touching any collaborator.
func (r ScreenRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid screen request", err)
	}

	return nil
}

// StartScreen validates req, resolves its screener and scans the symbols
// of the requested dataset in the job slot. Matches are kept in the result.
func (c *Coordinator) StartScreen(req ScreenRequest) (RunHandle, error) {
	if err := req.Validate(); err != nil {
		return RunHandle{}, err
	}

	if c.loader == nil || c.screeners == nil {
		return RunHandle{}, errors.New(errors.ErrCodeInvalidConfiguration, "coordinator has no dataset loader or screener registry")
	}

	scr, err := c.screeners.New(req.Screener, req.Params)
	if err != nil {
		return RunHandle{}, err
	}

	meta := runMeta{strategy: "", screener: scr.Name(), dataset: req.DatasetKey.String()}

	return c.start(meta, func(ctx context.Context, run *Run) error {
		return c.screen(ctx, run, req, scr)
	})
}

func (c *Coordinator) screen(ctx context.Context, run *Run, req ScreenRequest, scr screener.Screener) error {
	filter := dataset.Filter{
		Start:   optional.None[time.Time](),
		End:     req.AsOf,
		Symbols: req.Symbols,
	}

	return c.walk(ctx, run, req.DatasetKey, filter, func(symbol string, series []types.Bar) error {
		match, err := scr.Screen(symbol, series)
		if err != nil {
			return err
		}

		if match.IsSome() {
			c.logger.Info("Screen match", zap.String("run_id", run.ID()), zap.String("symbol", symbol), zap.Any("values", match.Unwrap().Values))
			run.RecordMatch(match.Unwrap())
		}

		return nil
	})
}
