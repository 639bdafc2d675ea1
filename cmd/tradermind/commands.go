package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/config"
	"github.com/rxtech-lab/tradermind/internal/dataset"
	"github.com/rxtech-lab/tradermind/internal/strategy"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/urfave/cli/v3"
)

func datasetArg(cmd *cli.Command) (types.DatasetKey, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return types.AllSymbols(), nil
	}

	key, err := types.ParseDatasetKey(raw)
	if err != nil {
		return types.DatasetKey{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid dataset", err)
	}

	return key, nil
}

func cacheRefreshAction(ctx context.Context, cmd *cli.Command) error {
	key, err := datasetArg(cmd)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	result, err := a.refresh(ctx, key)
	if err != nil {
		return err
	}

	printLoad(cmd.Root().Writer, key, result)

	return nil
}

// refresh drops the in-memory entry of key so the next load fetches again.
func (a *app) refresh(ctx context.Context, key types.DatasetKey) (dataset.LoadResult, error) {
	a.cache.Invalidate(key)

	return a.cache.Load(ctx, key, a.config.Policy())
}

func cacheShowAction(ctx context.Context, cmd *cli.Command) error {
	key, err := datasetArg(cmd)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	entry, err := a.cache.Current(ctx, key)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if entry.IsNone() {
		fmt.Fprintf(w, "%s is not cached\n", key)

		return nil
	}

	printEntry(w, entry.Unwrap(), a.config.Policy(), time.Now())

	return nil
}

func printLoad(w io.Writer, key types.DatasetKey, result dataset.LoadResult) {
	fmt.Fprintf(w, "%s %s\n", key, result.Outcome)
	fmt.Fprintf(w, "  rows:       %d\n", len(result.Entry.Bars))
	fmt.Fprintf(w, "  fetched at: %s\n", result.Entry.FetchedAt.Format(time.RFC3339))

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning:    %s\n", warning)
	}
}

func printEntry(w io.Writer, entry types.CacheEntry, policy types.FreshnessPolicy, now time.Time) {
	state := "fresh"
	if !dataset.IsValid(optional.Some(entry), policy, now) {
		state = "expired"
	}

	fmt.Fprintf(w, "%s %s\n", entry.Key, state)
	fmt.Fprintf(w, "  rows:       %d\n", len(entry.Bars))
	fmt.Fprintf(w, "  symbols:    %d\n", len(dataset.Symbols(entry.Bars)))
	fmt.Fprintf(w, "  fetched at: %s\n", entry.FetchedAt.Format(time.RFC3339))
}

func strategiesAction(_ context.Context, cmd *cli.Command) error {
	registry, err := strategy.DefaultRegistry()
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	for _, d := range registry.List() {
		fmt.Fprintf(w, "%s\n  %s\n", TitleStyle.Render(d.Key), d.Description)
	}

	return nil
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := config.Schema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, schema)

	return nil
}
