package provider

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/tradermind/internal/types"
)

// PolygonAggsIterator is the subset of the polygon aggregate iterator we use.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonTickersIterator is the subset of the polygon ticker iterator we use.
type PolygonTickersIterator interface {
	Next() bool
	Item() models.Ticker
	Err() error
}

// PolygonAPIClient abstracts the polygon REST client for testing.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
	ListTickers(ctx context.Context, params *models.ListTickersParams, options ...models.RequestOption) PolygonTickersIterator
}

type polygonAPIAdapter struct {
	client *polygon.Client
}

func (a *polygonAPIAdapter) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return a.client.ListAggs(ctx, params, options...)
}

func (a *polygonAPIAdapter) ListTickers(ctx context.Context, params *models.ListTickersParams, options ...models.RequestOption) PolygonTickersIterator {
	return a.client.ListTickers(ctx, params, options...)
}

// NewPolygonAPI wraps a real polygon client.
func NewPolygonAPI(apiKey string) PolygonAPIClient {
	return &polygonAPIAdapter{client: polygon.New(apiKey)}
}

type PolygonClient struct {
	apiClient   PolygonAPIClient
	concurrency int
}

func NewPolygonClient(apiKey string, concurrency int) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}

	return NewPolygonClientWithAPI(NewPolygonAPI(apiKey), concurrency), nil
}

// NewPolygonClientWithAPI creates a client backed by the given API, used by tests.
func NewPolygonClientWithAPI(api PolygonAPIClient, concurrency int) *PolygonClient {
	return &PolygonClient{
		apiClient:   api,
		concurrency: concurrency,
	}
}

// Fetch downloads daily aggregates for every symbol.
func (c *PolygonClient) Fetch(ctx context.Context, symbols []string, start time.Time, end time.Time) ([]SymbolResult, error) {
	return fetchEach(ctx, symbols, start, end, c.concurrency, c.fetchSymbol)
}

func (c *PolygonClient) fetchSymbol(ctx context.Context, symbol string, start time.Time, end time.Time) ([]types.Bar, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithOrder(models.Asc).WithLimit(50000)

	iter := c.apiClient.ListAggs(ctx, params)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp).UTC(),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
			Extra:  nil,
		})
	}

	if iter.Err() != nil {
		return nil, fmt.Errorf("error iterating polygon aggregates: %w", iter.Err())
	}

	return bars, nil
}
