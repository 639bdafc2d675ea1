package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RunMetrics is derived from the trade set of a run. It is always
// recomputed from the full trade list.
type RunMetrics struct {
	// Count of emitted trades, not rows.
	TotalTrades int `json:"total_trades" yaml:"total_trades"`
	// Arithmetic mean of return_pct over all trades.
	AvgReturn float64 `json:"avg_return" yaml:"avg_return"`
	// Share of trades with return_pct > 0.
	WinRate float64 `json:"win_rate" yaml:"win_rate"`
	// Count of trades with return_pct > 0.
	WinningTrades int `json:"winning_trades" yaml:"winning_trades"`
	// Count of trades with return_pct < 0.
	LosingTrades int `json:"losing_trades" yaml:"losing_trades"`
	// Sum of trade PnL.
	TotalPnL float64 `json:"total_pnl" yaml:"total_pnl"`
}

// RunStats is the summary written next to a run's trades file.
type RunStats struct {
	// ID is the unique identifier for the run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when the run finished.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Strategy is the registry key of the strategy used.
	Strategy string `yaml:"strategy" json:"strategy"`
	// Screener is the registry key of the screener used by a scan.
	Screener string `yaml:"screener,omitempty" json:"screener,omitempty"`
	// Dataset is the dataset key the bars were read from.
	Dataset string `yaml:"dataset" json:"dataset"`
	// Status is the terminal job status of the run.
	Status JobStatus `yaml:"status" json:"status"`
	// Metrics over all successfully processed symbols.
	Metrics RunMetrics `yaml:"metrics" json:"metrics"`
	// PerSymbol metrics keyed by symbol.
	PerSymbol map[string]RunMetrics `yaml:"per_symbol" json:"per_symbol"`
	// FailedSymbols lists symbols skipped because of an error.
	FailedSymbols []string `yaml:"failed_symbols" json:"failed_symbols"`
	// Matches are the symbols a scan selected.
	Matches []ScreenMatch `yaml:"matches,omitempty" json:"matches,omitempty"`
	// TradesFilePath is the path to the trades parquet file.
	TradesFilePath string `yaml:"trades_file_path" json:"trades_file_path"`
}

// WriteRunStats writes the run stats to a yaml file.
func WriteRunStats(filePath string, stats RunStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write run stats: %w", err)
	}

	return nil
}

// ReadRunStats reads run stats previously written by WriteRunStats.
func ReadRunStats(filePath string) (RunStats, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return RunStats{}, fmt.Errorf("failed to read run stats: %w", err)
	}

	var stats RunStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return RunStats{}, fmt.Errorf("failed to unmarshal run stats: %w", err)
	}

	return stats, nil
}

// RunResult is everything a run produced. Trades and matches from symbols
// processed before a stop or a failure are kept.
type RunResult struct {
	RunID         string                `json:"run_id" yaml:"run_id"`
	Strategy      string                `json:"strategy" yaml:"strategy"`
	Screener      string                `json:"screener,omitempty" yaml:"screener,omitempty"`
	Dataset       string                `json:"dataset" yaml:"dataset"`
	Status        JobStatus             `json:"status" yaml:"status"`
	Trades        []Trade               `json:"trades" yaml:"trades"`
	PerSymbol     map[string]RunMetrics `json:"per_symbol" yaml:"per_symbol"`
	Metrics       RunMetrics            `json:"metrics" yaml:"metrics"`
	FailedSymbols []string              `json:"failed_symbols" yaml:"failed_symbols"`
	Matches       []ScreenMatch         `json:"matches,omitempty" yaml:"matches,omitempty"`
	StartedAt     time.Time             `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time             `json:"finished_at" yaml:"finished_at"`
}

// Stats returns the summary of the result as written to the stats file.
func (r RunResult) Stats(tradesFilePath string) RunStats {
	return RunStats{
		ID:             r.RunID,
		Timestamp:      r.FinishedAt,
		Strategy:       r.Strategy,
		Screener:       r.Screener,
		Dataset:        r.Dataset,
		Status:         r.Status,
		Metrics:        r.Metrics,
		PerSymbol:      r.PerSymbol,
		FailedSymbols:  r.FailedSymbols,
		Matches:        r.Matches,
		TradesFilePath: tradesFilePath,
	}
}
