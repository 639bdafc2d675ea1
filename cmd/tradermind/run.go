package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/coordinator"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const progressPollInterval = 200 * time.Millisecond

func runAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	req, err := a.runRequest(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := a.runForeground(ctx, req, os.Stderr)
	if err != nil {
		return err
	}

	printResult(cmd.Root().Writer, result)

	if result.Status == types.JobStatusError {
		return errors.New(errors.ErrCodeRunInternalError, a.coord.GetStatus().Progress.ErrorMessage)
	}

	return nil
}

// runRequest builds a run request from the flags of the run command and
// the configured backtest defaults.
func (a *app) runRequest(cmd *cli.Command) (coordinator.RunRequest, error) {
	key, err := types.ParseDatasetKey(cmd.String("dataset"))
	if err != nil {
		return coordinator.RunRequest{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid dataset", err)
	}

	params, err := parseParams(cmd.StringMap("param"))
	if err != nil {
		return coordinator.RunRequest{}, err
	}

	req := coordinator.RunRequest{
		DatasetKey:         key,
		Symbols:            cmd.StringSlice("symbol"),
		Start:              optional.None[time.Time](),
		End:                optional.None[time.Time](),
		Capital:            a.config.Backtest.Capital,
		AllocationFraction: a.config.Backtest.AllocationFraction,
		Strategy:           cmd.String("strategy"),
		Params:             params,
	}

	if cmd.IsSet("start") {
		req.Start = optional.Some(cmd.Timestamp("start"))
	}

	if cmd.IsSet("end") {
		req.End = optional.Some(cmd.Timestamp("end"))
	}

	if cmd.IsSet("capital") {
		req.Capital = cmd.Float64("capital")
	}

	if cmd.IsSet("allocation") {
		req.AllocationFraction = cmd.Float64("allocation")
	}

	return req, nil
}

// parseParams decodes each value as a YAML scalar so that numbers and
// booleans reach the strategy with their natural type.
func parseParams(raw map[string]string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil //nolint:nilnil
	}

	params := make(map[string]any, len(raw))

	for key, value := range raw {
		var decoded any
		if err := yaml.Unmarshal([]byte(value), &decoded); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid value for param %s", key)
		}

		params[key] = decoded
	}

	return params, nil
}

// runForeground starts req and draws its progress on out until the run
// ends. Cancelling ctx requests a stop and keeps waiting for the run.
func (a *app) runForeground(ctx context.Context, req coordinator.RunRequest, out io.Writer) (types.RunResult, error) {
	handle, err := a.coord.StartRun(req)
	if err != nil {
		return types.RunResult{}, err
	}

	return a.follow(ctx, handle, out)
}

// follow draws the progress of the job in the slot until handle is done.
func (a *app) follow(ctx context.Context, handle coordinator.RunHandle, out io.Writer) (types.RunResult, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("loading dataset"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	stopping := false
	known := false

	for {
		select {
		case <-handle.Done():
			_ = bar.Finish()

			result := a.coord.Result()
			if result.IsNone() {
				return types.RunResult{}, errors.New(errors.ErrCodeNoResult, "run finished without a result")
			}

			return result.Unwrap(), nil
		case <-ctx.Done():
			if !stopping {
				stopping = true

				a.coord.RequestStop()
				bar.Describe("stopping")
			}
		case <-ticker.C:
			progress := a.coord.GetStatus().Progress
			if !known && progress.TotalSymbols > 0 {
				known = true

				bar.ChangeMax(progress.TotalSymbols)
			}

			if progress.CurrentSymbol != "" && !stopping {
				bar.Describe(progress.CurrentSymbol)
			}

			_ = bar.Set(progress.ProcessedSymbols)
		}
	}
}

func printResult(w io.Writer, result types.RunResult) {
	fmt.Fprintf(w, "Run %s %s\n", result.RunID, result.Status)
	fmt.Fprintf(w, "  strategy:  %s\n", result.Strategy)
	fmt.Fprintf(w, "  dataset:   %s\n", result.Dataset)
	fmt.Fprintf(w, "  trades:    %d\n", result.Metrics.TotalTrades)
	fmt.Fprintf(w, "  avg return %.2f%%\n", result.Metrics.AvgReturn)
	fmt.Fprintf(w, "  win rate:  %.2f%%\n", result.Metrics.WinRate*100)
	fmt.Fprintf(w, "  total pnl: %.2f\n", result.Metrics.TotalPnL)

	if len(result.FailedSymbols) > 0 {
		fmt.Fprintf(w, "  failed:    %v\n", result.FailedSymbols)
	}
}
