package types

import (
	"slices"
	"time"
)

type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusStopping  JobStatus = "stopping"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
)

// IsActive reports whether a job in this status still owns the run lock.
func (s JobStatus) IsActive() bool {
	return s == JobStatusRunning || s == JobStatusStopping
}

// IsTerminal reports whether the status ends a run.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Progress is published as a whole. Readers never see current_symbol and
// processed_symbols from different iterations.
type Progress struct {
	TotalSymbols     int    `json:"total_symbols" yaml:"total_symbols"`
	ProcessedSymbols int    `json:"processed_symbols" yaml:"processed_symbols"`
	CurrentSymbol    string `json:"current_symbol" yaml:"current_symbol"`
	ErrorMessage     string `json:"error_message" yaml:"error_message"`
	FailedSymbols    int    `json:"failed_symbols" yaml:"failed_symbols"`
}

// JobState is the status of the coordinator's single job slot.
type JobState struct {
	Status        JobStatus `json:"status" yaml:"status"`
	Progress      Progress  `json:"progress" yaml:"progress"`
	StopRequested bool      `json:"stop_requested" yaml:"stop_requested"`
	RunID         string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time `json:"finished_at" yaml:"finished_at"`
	Warnings      []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// IsRunning mirrors the running flag exposed by status endpoints.
func (s JobState) IsRunning() bool {
	return s.Status.IsActive()
}

// Copy returns a deep copy safe to hand to another goroutine.
func (s JobState) Copy() JobState {
	out := s
	out.Warnings = slices.Clone(s.Warnings)

	return out
}
