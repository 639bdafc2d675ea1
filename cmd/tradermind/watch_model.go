package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/tradermind/internal/types"
)

const maxShownWarnings = 3

// WatchModel follows the job state of a server by polling it.
type WatchModel struct {
	fetch    StatusFetcher
	interval time.Duration
	progress progress.Model

	state  types.JobState
	polled bool
	err    error
	width  int
}

// NewWatchModel creates a model polling fetch every interval.
func NewWatchModel(fetch StatusFetcher, interval time.Duration) WatchModel {
	if interval <= 0 {
		interval = time.Second
	}

	return WatchModel{
		fetch:    fetch,
		interval: interval,
		progress: progress.New(progress.WithDefaultGradient()),
		state:    types.JobState{Status: types.JobStatusIdle}, //nolint:exhaustruct
		polled:   false,
		err:      nil,
		width:    0,
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return m.poll()
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(msg.Width-4, 10)

		return m, nil

	case StatusMsg:
		m.state = msg.State
		m.polled = true
		m.err = nil

		return m, m.tick()

	case StatusErrorMsg:
		m.err = msg.Err

		return m, m.tick()

	case TickMsg:
		return m, m.poll()
	}

	return m, nil
}

func (m WatchModel) poll() tea.Cmd {
	fetch := m.fetch

	return func() tea.Msg {
		state, err := fetch(context.Background())
		if err != nil {
			return StatusErrorMsg{Err: err}
		}

		return StatusMsg{State: state}
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Percent is the share of processed symbols, zero before the total is known.
func (m WatchModel) Percent() float64 {
	total := m.state.Progress.TotalSymbols
	if total == 0 {
		return 0
	}

	return float64(m.state.Progress.ProcessedSymbols) / float64(total)
}

// View implements tea.Model.
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Run Status"))
	b.WriteString("\n\n")

	if !m.polled {
		b.WriteString("Connecting...\n")
	} else {
		m.viewState(&b)
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("q: quit"))

	return b.String()
}

func (m WatchModel) viewState(b *strings.Builder) {
	p := m.state.Progress

	fmt.Fprintf(b, "Status: %s", FormatStatus(m.state.Status))

	if m.state.RunID != "" {
		fmt.Fprintf(b, "  Run: %s", m.state.RunID)
	}

	b.WriteString("\n\n")
	b.WriteString(m.progress.ViewAs(m.Percent()))
	b.WriteString("\n")
	fmt.Fprintf(b, "Processed: %d/%d  Failed: %d\n", p.ProcessedSymbols, p.TotalSymbols, p.FailedSymbols)

	if p.CurrentSymbol != "" {
		fmt.Fprintf(b, "Current: %s\n", p.CurrentSymbol)
	}

	if m.state.Status.IsTerminal() && !m.state.FinishedAt.IsZero() {
		fmt.Fprintf(b, "Finished: %s\n", m.state.FinishedAt.Format(time.DateTime))
	}

	if p.ErrorMessage != "" {
		b.WriteString(ErrorStyle.Render(p.ErrorMessage))
		b.WriteString("\n")
	}

	warnings := m.state.Warnings
	if len(warnings) > maxShownWarnings {
		warnings = warnings[len(warnings)-maxShownWarnings:]
	}

	for _, w := range warnings {
		b.WriteString(WarningStyle.Render("! " + w))
		b.WriteString("\n")
	}
}
