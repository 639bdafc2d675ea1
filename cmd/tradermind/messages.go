package main

import "github.com/rxtech-lab/tradermind/internal/types"

// StatusMsg carries a status snapshot polled from the server.
type StatusMsg struct {
	State types.JobState
}

// StatusErrorMsg indicates a failed poll.
type StatusErrorMsg struct {
	Err error
}

// TickMsg schedules the next poll.
type TickMsg struct{}
