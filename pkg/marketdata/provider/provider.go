package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// DefaultConcurrency is the number of symbols fetched in parallel when the
// configuration does not set one.
const DefaultConcurrency = 4

// SymbolResult is the outcome of fetching one symbol. Err is set instead of
// Bars when that symbol could not be fetched.
type SymbolResult struct {
	Symbol string
	Bars   []types.Bar
	Err    error
}

// Provider fetches daily bars for a list of symbols. A failure for one
// symbol is reported in its SymbolResult; the returned error is reserved
// for failures of the whole batch such as cancellation.
type Provider interface {
	Fetch(ctx context.Context, symbols []string, start time.Time, end time.Time) ([]SymbolResult, error)
}

// Config selects and configures a provider.
type Config struct {
	Type          ProviderType `validate:"required,oneof=polygon binance"`
	PolygonAPIKey string       `validate:"required_if=Type polygon"`
	Concurrency   int          `validate:"gte=0"`
}

// NewMarketDataProvider creates a new market data provider based on the provider type.
func NewMarketDataProvider(config Config) (Provider, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid provider configuration", err)
	}

	switch config.Type {
	case ProviderBinance:
		return NewBinanceClient(config.Concurrency), nil
	case ProviderPolygon:
		return NewPolygonClient(config.PolygonAPIKey, config.Concurrency)
	default:
		return nil, fmt.Errorf("unsupported market data provider: %s", config.Type)
	}
}

type fetchFunc func(ctx context.Context, symbol string, start time.Time, end time.Time) ([]types.Bar, error)

// fetchEach runs fetch for every symbol with at most concurrency requests in
// flight. Results keep the order of symbols.
func fetchEach(ctx context.Context, symbols []string, start time.Time, end time.Time, concurrency int, fetch fetchFunc) ([]SymbolResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]SymbolResult, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, symbol := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bars, err := fetch(gctx, symbol, start, end)

			switch {
			case err != nil:
				results[i] = SymbolResult{Symbol: symbol, Bars: nil, Err: errors.Wrapf(errors.ErrCodeSymbolFetchFailed, err, "fetch %s", symbol)}
			case len(bars) == 0:
				results[i] = SymbolResult{Symbol: symbol, Bars: nil, Err: errors.Newf(errors.ErrCodeSymbolFetchFailed, "no bars returned for %s", symbol)}
			default:
				results[i] = SymbolResult{Symbol: symbol, Bars: bars, Err: nil}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
