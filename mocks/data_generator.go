package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/tradermind/internal/types"
)

// DataGenerator produces reproducible daily bars for tests. Prices follow a
// geometric random walk on weekdays only.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a generator. The same seed always yields the same bars.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures one symbol's series.
type GeneratorConfig struct {
	Symbol string
	// First trading day. Weekend start dates roll forward to Monday.
	Start time.Time
	// Number of trading days.
	Count        int
	InitialPrice float64
	// Daily standard deviation of the close-to-close return.
	Volatility float64
	// Mean daily return.
	Drift      float64
	VolumeBase float64
	// Extra columns filled with the bar's daily return.
	ExtraColumns []string
}

// DefaultConfig returns a one-year series starting on the first trading day of 2024.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:       "TEST",
		Start:        time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Count:        250,
		InitialPrice: 100,
		Volatility:   0.02,
		Drift:        0,
		VolumeBase:   1_000_000,
		ExtraColumns: nil,
	}
}

// Generate returns config.Count bars in ascending date order.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.Bar {
	bars := make([]types.Bar, 0, config.Count)
	day := nextTradingDay(config.Start)
	prev := config.InitialPrice

	for range config.Count {
		ret := config.Drift + config.Volatility*g.normal()
		closePrice := math.Max(prev*(1+ret), 0.01)

		// intraday range spans open and close plus a random wick
		wick := math.Abs(g.normal()) * config.Volatility * prev / 2
		high := math.Max(prev, closePrice) + wick
		low := math.Max(math.Min(prev, closePrice)-wick, 0.01)

		bar := types.Bar{
			Symbol: config.Symbol,
			Time:   day,
			Open:   round(prev, 4),
			High:   round(high, 4),
			Low:    round(low, 4),
			Close:  round(closePrice, 4),
			Volume: math.Round(config.VolumeBase * (0.5 + g.rng.Float64())),
			Extra:  nil,
		}

		if len(config.ExtraColumns) > 0 {
			bar.Extra = make(map[string]float64, len(config.ExtraColumns))
			for _, column := range config.ExtraColumns {
				bar.Extra[column] = round(ret, 6)
			}
		}

		bars = append(bars, bar)
		prev = closePrice
		day = nextTradingDay(day.AddDate(0, 0, 1))
	}

	return bars
}

// GenerateMultiSymbol returns the series of every symbol, one after the
// other. Each symbol gets its own starting price.
func (g *DataGenerator) GenerateMultiSymbol(symbols []string, base GeneratorConfig) []types.Bar {
	var bars []types.Bar

	for _, symbol := range symbols {
		config := base
		config.Symbol = symbol
		config.InitialPrice = base.InitialPrice * (0.5 + g.rng.Float64())

		bars = append(bars, g.Generate(config)...)
	}

	return bars
}

// GenerateDaily returns count reproducible daily bars for symbol.
func GenerateDaily(symbol string, count int) []types.Bar {
	config := DefaultConfig()
	config.Symbol = symbol
	config.Count = count

	return NewDataGenerator(42).Generate(config)
}

// GenerateDailyMultiSymbol returns count reproducible daily bars per symbol.
func GenerateDailyMultiSymbol(symbols []string, count int) []types.Bar {
	config := DefaultConfig()
	config.Count = count

	return NewDataGenerator(42).GenerateMultiSymbol(symbols, config)
}

// BarsFromCloses builds one bar per close on consecutive trading days from
// start. Open, high and low equal the close.
func BarsFromCloses(symbol string, start time.Time, closes ...float64) []types.Bar {
	bars := make([]types.Bar, 0, len(closes))
	day := nextTradingDay(start)

	for _, c := range closes {
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   day,
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 0,
			Extra:  nil,
		})
		day = nextTradingDay(day.AddDate(0, 0, 1))
	}

	return bars
}

// normal draws from the standard normal distribution.
func (g *DataGenerator) normal() float64 {
	return g.rng.NormFloat64()
}

func nextTradingDay(t time.Time) time.Time {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}

	return t
}

func round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(v*pow) / pow
}
