package strategy

import (
	"github.com/rxtech-lab/tradermind/internal/ledger"
	"github.com/rxtech-lab/tradermind/internal/types"
)

type SignalColumnParams struct {
	Column string `yaml:"column" json:"column" jsonschema:"description=Name of the bar column holding the signal,default=signal" validate:"required"`
}

// SignalColumn reads a signal that was computed upstream and stored as a
// bar column. Any non-zero value is on; a bar without the column is off.
type SignalColumn struct {
	params SignalColumnParams
}

func NewSignalColumn(params map[string]any) (Strategy, error) {
	cfg, err := DecodeParams(params, SignalColumnParams{Column: "signal"})
	if err != nil {
		return nil, err
	}

	return &SignalColumn{params: cfg}, nil
}

func (s *SignalColumn) Name() string {
	return "signal_column"
}

func (s *SignalColumn) Prepare(_ []types.Bar) (ledger.SignalExtractor, error) {
	column := s.params.Column

	return ledger.SignalFunc(func(bar types.Bar) bool {
		v, ok := bar.Get(column)

		return ok && v != 0
	}), nil
}
