package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/tradermind/internal/types"
)

// binancePageSize is the number of klines Binance returns per request by default.
const binancePageSize = 500

// BinanceKlinesService is the subset of the klines request builder we use.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient abstracts the Binance client for testing.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

type binanceAPIAdapter struct {
	client *binance.Client
}

func (a *binanceAPIAdapter) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesAdapter{svc: a.client.NewKlinesService()}
}

type binanceKlinesAdapter struct {
	svc *binance.KlinesService
}

func (s *binanceKlinesAdapter) Symbol(symbol string) BinanceKlinesService {
	s.svc.Symbol(symbol)

	return s
}

func (s *binanceKlinesAdapter) Interval(interval string) BinanceKlinesService {
	s.svc.Interval(interval)

	return s
}

func (s *binanceKlinesAdapter) StartTime(startTime int64) BinanceKlinesService {
	s.svc.StartTime(startTime)

	return s
}

func (s *binanceKlinesAdapter) EndTime(endTime int64) BinanceKlinesService {
	s.svc.EndTime(endTime)

	return s
}

func (s *binanceKlinesAdapter) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.svc.Do(ctx)
}

type BinanceClient struct {
	apiClient   BinanceAPIClient
	concurrency int
}

// NewBinanceClient creates a client for public Binance market data. No key is needed.
func NewBinanceClient(concurrency int) *BinanceClient {
	return NewBinanceClientWithAPI(&binanceAPIAdapter{client: binance.NewClient("", "")}, concurrency)
}

func NewBinanceClientWithAPI(api BinanceAPIClient, concurrency int) *BinanceClient {
	return &BinanceClient{
		apiClient:   api,
		concurrency: concurrency,
	}
}

// Fetch downloads daily klines for every symbol.
func (c *BinanceClient) Fetch(ctx context.Context, symbols []string, start time.Time, end time.Time) ([]SymbolResult, error) {
	return fetchEach(ctx, symbols, start, end, c.concurrency, c.fetchSymbol)
}

func (c *BinanceClient) fetchSymbol(ctx context.Context, symbol string, start time.Time, end time.Time) ([]types.Bar, error) {
	endMillis := end.UnixMilli()
	currentStart := start.UnixMilli()

	var bars []types.Bar

	for {
		klines, err := c.apiClient.NewKlinesService().
			Symbol(symbol).
			Interval("1d").
			StartTime(currentStart).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines from Binance: %w", err)
		}

		page, err := klinesToBars(symbol, klines)
		if err != nil {
			return nil, err
		}

		bars = append(bars, page...)

		// a short page is the last one
		if len(klines) < binancePageSize {
			break
		}

		// continue after the close of the last kline to avoid duplicates
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	return bars, nil
}

// klinesToBars converts Binance kline data to bars.
func klinesToBars(symbol string, klines []*binance.Kline) ([]types.Bar, error) {
	bars := make([]types.Bar, 0, len(klines))

	for _, k := range klines {
		values := [5]float64{}
		for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse kline at %d: %w", k.OpenTime, err)
			}

			values[i] = v
		}

		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
			Extra:  nil,
		})
	}

	return bars, nil
}
