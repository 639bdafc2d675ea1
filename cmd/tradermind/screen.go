package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/coordinator"
	"github.com/rxtech-lab/tradermind/internal/screener"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/urfave/cli/v3"
)

func screenAction(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	req, err := a.screenRequest(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := a.screenForeground(ctx, req, os.Stderr)
	if err != nil {
		return err
	}

	printMatches(cmd.Root().Writer, result)

	if result.Status == types.JobStatusError {
		return errors.New(errors.ErrCodeRunInternalError, a.coord.GetStatus().Progress.ErrorMessage)
	}

	return nil
}

// screenRequest builds a screen request from the flags of the screen command.
func (a *app) screenRequest(cmd *cli.Command) (coordinator.ScreenRequest, error) {
	key, err := types.ParseDatasetKey(cmd.String("dataset"))
	if err != nil {
		return coordinator.ScreenRequest{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid dataset", err)
	}

	params, err := parseParams(cmd.StringMap("param"))
	if err != nil {
		return coordinator.ScreenRequest{}, err
	}

	req := coordinator.ScreenRequest{
		DatasetKey: key,
		Symbols:    cmd.StringSlice("symbol"),
		AsOf:       optional.None[time.Time](),
		Screener:   cmd.String("screener"),
		Params:     params,
	}

	if cmd.IsSet("as-of") {
		req.AsOf = optional.Some(cmd.Timestamp("as-of"))
	}

	return req, nil
}

func (a *app) screenForeground(ctx context.Context, req coordinator.ScreenRequest, out io.Writer) (types.RunResult, error) {
	handle, err := a.coord.StartScreen(req)
	if err != nil {
		return types.RunResult{}, err
	}

	return a.follow(ctx, handle, out)
}

func printMatches(w io.Writer, result types.RunResult) {
	fmt.Fprintf(w, "Screen %s %s\n", result.RunID, result.Status)
	fmt.Fprintf(w, "  screener: %s\n", result.Screener)
	fmt.Fprintf(w, "  dataset:  %s\n", result.Dataset)
	fmt.Fprintf(w, "  matches:  %d\n", len(result.Matches))

	for _, m := range result.Matches {
		fmt.Fprintf(w, "  %-8s %s", m.Symbol, m.Date.Format(time.DateOnly))

		for _, name := range slices.Sorted(maps.Keys(m.Values)) {
			fmt.Fprintf(w, " %s=%.2f", name, m.Values[name])
		}

		fmt.Fprintln(w)
	}

	if len(result.FailedSymbols) > 0 {
		fmt.Fprintf(w, "  failed:   %v\n", result.FailedSymbols)
	}
}

func screenersAction(_ context.Context, cmd *cli.Command) error {
	registry, err := screener.DefaultRegistry()
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	for _, d := range registry.List() {
		fmt.Fprintf(w, "%s\n  %s\n", TitleStyle.Render(d.Key), d.Description)
	}

	return nil
}
