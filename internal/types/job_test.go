package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusPredicates(t *testing.T) {
	tests := []struct {
		status   JobStatus
		active   bool
		terminal bool
	}{
		{JobStatusIdle, false, false},
		{JobStatusRunning, true, false},
		{JobStatusStopping, true, false},
		{JobStatusCompleted, false, true},
		{JobStatusError, false, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.active, tt.status.IsActive(), tt.status)
		assert.Equal(t, tt.terminal, tt.status.IsTerminal(), tt.status)
	}
}

func TestJobStateCopyIsDeep(t *testing.T) {
	state := JobState{
		Status:   JobStatusRunning,
		Progress: Progress{TotalSymbols: 3, ProcessedSymbols: 1, CurrentSymbol: "AAPL"},
		Warnings: []string{"MSFT: fetch failed"},
	}

	copied := state.Copy()
	copied.Warnings[0] = "changed"

	assert.Equal(t, "MSFT: fetch failed", state.Warnings[0])
	assert.True(t, copied.IsRunning())
	assert.Equal(t, state.Progress, copied.Progress)
}
