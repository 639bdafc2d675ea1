package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/urfave/cli/v3"
)

const statusRequestTimeout = 5 * time.Second

// StatusFetcher returns the current job state of a server.
type StatusFetcher func(ctx context.Context) (types.JobState, error)

// NewHTTPStatusFetcher polls GET /api/run/status under baseURL.
func NewHTTPStatusFetcher(client *http.Client, baseURL string) StatusFetcher {
	url := strings.TrimRight(baseURL, "/") + "/api/run/status"

	return func(ctx context.Context) (types.JobState, error) {
		ctx, cancel := context.WithTimeout(ctx, statusRequestTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return types.JobState{}, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return types.JobState{}, fmt.Errorf("failed to reach %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return types.JobState{}, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
		}

		var state types.JobState
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			return types.JobState{}, fmt.Errorf("failed to decode status: %w", err)
		}

		return state, nil
	}
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	fetch := NewHTTPStatusFetcher(http.DefaultClient, cmd.String("url"))
	m := NewWatchModel(fetch, cmd.Duration("interval"))

	p := tea.NewProgram(m, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	return nil
}
