package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	apperrors "github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// mockBinanceAPIClient serves pages of klines per symbol.
type mockBinanceAPIClient struct {
	mu     sync.Mutex
	pages  map[string][][]*binance.Kline
	errs   map[string]error
	starts map[string][]int64
}

func (m *mockBinanceAPIClient) NewKlinesService() BinanceKlinesService {
	return &mockBinanceKlinesService{client: m}
}

type mockBinanceKlinesService struct {
	client   *mockBinanceAPIClient
	symbol   string
	interval string
	start    int64
	end      int64
}

func (m *mockBinanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	m.symbol = symbol

	return m
}

func (m *mockBinanceKlinesService) Interval(interval string) BinanceKlinesService {
	m.interval = interval

	return m
}

func (m *mockBinanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	m.start = startTime

	return m
}

func (m *mockBinanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	m.end = endTime

	return m
}

func (m *mockBinanceKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	m.client.mu.Lock()
	defer m.client.mu.Unlock()

	if err := m.client.errs[m.symbol]; err != nil {
		return nil, err
	}

	call := len(m.client.starts[m.symbol])
	m.client.starts[m.symbol] = append(m.client.starts[m.symbol], m.start)

	pages := m.client.pages[m.symbol]
	if call >= len(pages) {
		return nil, nil
	}

	return pages[call], nil
}

func newMockBinance() *mockBinanceAPIClient {
	return &mockBinanceAPIClient{
		pages:  make(map[string][][]*binance.Kline),
		errs:   make(map[string]error),
		starts: make(map[string][]int64),
	}
}

func dailyKlines(from time.Time, n int, price string) []*binance.Kline {
	klines := make([]*binance.Kline, 0, n)

	for i := 0; i < n; i++ {
		open := from.AddDate(0, 0, i)
		//nolint:exhaustruct // only the fields the client reads
		klines = append(klines, &binance.Kline{
			OpenTime:  open.UnixMilli(),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    "10.5",
			CloseTime: open.Add(24*time.Hour).UnixMilli() - 1,
		})
	}

	return klines
}

type BinanceClientTestSuite struct {
	suite.Suite
	start time.Time
}

func TestBinanceClientSuite(t *testing.T) {
	suite.Run(t, new(BinanceClientTestSuite))
}

func (suite *BinanceClientTestSuite) SetupTest() {
	suite.start = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *BinanceClientTestSuite) TestFetchSinglePage() {
	api := newMockBinance()
	api.pages["BTCUSDT"] = [][]*binance.Kline{dailyKlines(suite.start, 3, "42000.50")}

	client := NewBinanceClientWithAPI(api, 1)
	results, err := client.Fetch(context.Background(), []string{"BTCUSDT"}, suite.start, suite.start.AddDate(0, 0, 3))
	suite.Require().NoError(err)
	suite.Require().Len(results, 1)
	suite.Require().NoError(results[0].Err)
	suite.Len(results[0].Bars, 3)
	suite.Equal(42000.50, results[0].Bars[0].Close)
	suite.Equal(10.5, results[0].Bars[0].Volume)
	suite.Equal(suite.start, results[0].Bars[0].Time)
}

func (suite *BinanceClientTestSuite) TestFetchPagination() {
	first := dailyKlines(suite.start, binancePageSize, "1")
	secondStart := suite.start.AddDate(0, 0, binancePageSize)
	second := dailyKlines(secondStart, 10, "2")

	api := newMockBinance()
	api.pages["ETHUSDT"] = [][]*binance.Kline{first, second}

	client := NewBinanceClientWithAPI(api, 1)
	results, err := client.Fetch(context.Background(), []string{"ETHUSDT"}, suite.start, suite.start.AddDate(3, 0, 0))
	suite.Require().NoError(err)
	suite.Require().NoError(results[0].Err)
	suite.Len(results[0].Bars, binancePageSize+10)

	starts := api.starts["ETHUSDT"]
	suite.Require().Len(starts, 2)
	suite.Equal(first[len(first)-1].CloseTime+1, starts[1])
}

func (suite *BinanceClientTestSuite) TestFetchErrors() {
	api := newMockBinance()
	api.errs["BAD"] = errors.New("503")
	api.pages["BROKEN"] = [][]*binance.Kline{dailyKlines(suite.start, 1, "not-a-number")}
	api.pages["OK"] = [][]*binance.Kline{dailyKlines(suite.start, 1, "1")}

	client := NewBinanceClientWithAPI(api, 3)
	results, err := client.Fetch(context.Background(), []string{"BAD", "BROKEN", "OK"}, suite.start, suite.start.AddDate(0, 0, 1))
	suite.Require().NoError(err)

	suite.True(apperrors.HasCode(results[0].Err, apperrors.ErrCodeSymbolFetchFailed))
	suite.True(apperrors.HasCode(results[1].Err, apperrors.ErrCodeSymbolFetchFailed))
	suite.NoError(results[2].Err)
}
