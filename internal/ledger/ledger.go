// Package ledger turns a per-bar boolean signal into positions, closed
// trades and aggregate metrics for one symbol. It holds no state across
// calls: capital and allocation are passed in with every invocation.
package ledger

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"github.com/shopspring/decimal"
)

// SignalExtractor decides, bar by bar, whether a position should be held.
type SignalExtractor interface {
	Signal(bar types.Bar) bool
}

// SignalFunc adapts a plain function to SignalExtractor.
type SignalFunc func(bar types.Bar) bool

func (f SignalFunc) Signal(bar types.Bar) bool {
	return f(bar)
}

// Sizing are the run parameters used to size each new position.
type Sizing struct {
	Capital            float64 `json:"capital" yaml:"capital" validate:"gt=0"`
	AllocationFraction float64 `json:"allocation_fraction" yaml:"allocation_fraction" validate:"gt=0,lte=1"`
}

var validate = validator.New()

// Validate checks that capital is positive and the fraction is in (0, 1].
func (s Sizing) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid sizing", err)
	}

	return nil
}

// PositionSize returns floor(capital * allocation_fraction / price).
func (s Sizing) PositionSize(price float64) (float64, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "entry price must be positive, got %v", price)
	}

	budget := decimal.NewFromFloat(s.Capital).Mul(decimal.NewFromFloat(s.AllocationFraction))

	return budget.Div(decimal.NewFromFloat(price)).Floor().InexactFloat64(), nil
}

// SymbolResult is the outcome of processing one symbol.
type SymbolResult struct {
	Symbol  string           `json:"symbol"`
	Trades  []types.Trade    `json:"trades"`
	Metrics types.RunMetrics `json:"metrics"`
	// Open is the position still held when the bars ran out. It is not
	// force-closed and does not count towards the metrics.
	Open optional.Option[types.Position] `json:"-"`
}

// Book is the two-state (flat/open) position machine of a single symbol.
type Book struct {
	symbol string
	sizing Sizing
	open   optional.Option[types.Position]
	trades []types.Trade
	// signal of the previous bar; entries need a false to true edge
	prev bool
}

// NewBook returns a flat book for symbol.
func NewBook(symbol string, sizing Sizing) *Book {
	return &Book{
		symbol: symbol,
		sizing: sizing,
		open:   optional.None[types.Position](),
		trades: nil,
		prev:   false,
	}
}

// Step applies one bar and its signal. It returns the trade closed by this
// bar, if any. A position is only opened on a bar whose signal turned true;
// when the budget buys less than one unit the entry is skipped and the book
// waits for the next false to true edge.
func (b *Book) Step(bar types.Bar, signal bool) (optional.Option[types.Trade], error) {
	rising := signal && !b.prev
	b.prev = signal

	switch {
	case b.open.IsNone() && rising:
		size, err := b.sizing.PositionSize(bar.Close)
		if err != nil {
			return optional.None[types.Trade](), errors.Wrapf(errors.ErrCodeInvalidParameter, err, "%s at %s", b.symbol, bar.Time.Format(time.DateOnly))
		}

		// budget below one unit: stay flat
		if size < 1 {
			return optional.None[types.Trade](), nil
		}

		b.open = optional.Some(types.Position{
			Symbol:     b.symbol,
			EntryDate:  bar.Time,
			EntryPrice: bar.Close,
			Size:       size,
		})

		return optional.None[types.Trade](), nil
	case b.open.IsSome() && !signal:
		trade := closePosition(b.open.Unwrap(), bar)
		b.trades = append(b.trades, trade)
		b.open = optional.None[types.Position]()

		return optional.Some(trade), nil
	default:
		// open+true: no pyramiding. flat+false or a held true without an
		// entry: nothing to do.
		return optional.None[types.Trade](), nil
	}
}

// Open returns the currently open position.
func (b *Book) Open() optional.Option[types.Position] {
	return b.open
}

// Trades returns the trades closed so far.
func (b *Book) Trades() []types.Trade {
	return b.trades
}

func closePosition(pos types.Position, bar types.Bar) types.Trade {
	entry := decimal.NewFromFloat(pos.EntryPrice)
	exit := decimal.NewFromFloat(bar.Close)
	diff := exit.Sub(entry)

	return types.Trade{
		Symbol:     pos.Symbol,
		EntryDate:  pos.EntryDate,
		EntryPrice: pos.EntryPrice,
		ExitDate:   bar.Time,
		ExitPrice:  bar.Close,
		Size:       pos.Size,
		ReturnPct:  diff.Div(entry).Mul(decimal.NewFromInt(100)).InexactFloat64(),
		PnL:        diff.Mul(decimal.NewFromFloat(pos.Size)).InexactFloat64(),
	}
}

// Process walks the bars of one symbol in order and returns its trades and
// metrics. Bars of other symbols are ignored.
func Process(symbol string, bars []types.Bar, signals SignalExtractor, sizing Sizing) (SymbolResult, error) {
	if err := sizing.Validate(); err != nil {
		return SymbolResult{}, err
	}

	if signals == nil {
		return SymbolResult{}, errors.New(errors.ErrCodeMissingParameter, "signal extractor is required")
	}

	book := NewBook(symbol, sizing)

	for _, bar := range bars {
		if bar.Symbol != "" && bar.Symbol != symbol {
			continue
		}

		if _, err := book.Step(bar, signals.Signal(bar)); err != nil {
			return SymbolResult{}, err
		}
	}

	return SymbolResult{
		Symbol:  symbol,
		Trades:  book.Trades(),
		Metrics: ComputeMetrics(book.Trades()),
		Open:    book.Open(),
	}, nil
}
