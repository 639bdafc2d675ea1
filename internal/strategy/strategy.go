package strategy

import (
	"github.com/rxtech-lab/tradermind/internal/ledger"
	"github.com/rxtech-lab/tradermind/internal/types"
)

// Strategy produces the per-bar signal the ledger consumes. Prepare sees
// the full ordered bar series of one symbol, so look-back indicators can
// be computed up front.
type Strategy interface {
	Name() string
	Prepare(bars []types.Bar) (ledger.SignalExtractor, error)
}

// Factory builds a strategy from loosely typed parameters.
type Factory func(params map[string]any) (Strategy, error)

// precomputed answers Signal from values computed in Prepare, keyed by bar time.
type precomputed struct {
	byTime map[int64]bool
}

func newPrecomputed(size int) *precomputed {
	return &precomputed{byTime: make(map[int64]bool, size)}
}

func (p *precomputed) set(bar types.Bar, signal bool) {
	p.byTime[bar.Time.UnixNano()] = signal
}

func (p *precomputed) Signal(bar types.Bar) bool {
	return p.byTime[bar.Time.UnixNano()]
}
