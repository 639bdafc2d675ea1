package results

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"go.uber.org/zap"
)

const (
	tradesFileName = "trades.parquet"
	statsFileName  = "stats.yaml"
)

// ParquetSink writes each run to <dir>/<run id>/ as trades.parquet and stats.yaml.
type ParquetSink struct {
	dir    string
	logger *logger.Logger
}

func NewParquetSink(dir string, log *logger.Logger) *ParquetSink {
	return &ParquetSink{
		dir:    dir,
		logger: log.Named("results"),
	}
}

// Save persists result. The stats file is written last, so a run directory
// with a stats file always has a complete trades file.
func (s *ParquetSink) Save(ctx context.Context, result types.RunResult) error {
	if result.RunID == "" {
		return errors.New(errors.ErrCodeMissingParameter, "run id is required")
	}

	runDir := filepath.Join(s.dir, result.RunID)
	tradesPath := filepath.Join(runDir, tradesFileName)

	writer := NewTradesWriter(tradesPath)
	if err := writer.Initialize(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeResultSaveFailed, "failed to initialize trades writer", err)
	}
	defer writer.Close()

	if err := writer.Write(ctx, result.Trades); err != nil {
		return errors.Wrap(errors.ErrCodeResultSaveFailed, "failed to write trades", err)
	}

	count, err := writer.GetTradeCount(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultSaveFailed, "failed to count written trades", err)
	}

	if count != len(result.Trades) {
		return errors.Newf(errors.ErrCodeResultSaveFailed, "wrote %d of %d trades", count, len(result.Trades))
	}

	if err := writer.Flush(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeResultSaveFailed, "failed to write trades", err)
	}

	if err := types.WriteRunStats(filepath.Join(runDir, statsFileName), result.Stats(writer.GetOutputPath())); err != nil {
		return errors.Wrap(errors.ErrCodeResultSaveFailed, "failed to write run stats", err)
	}

	s.logger.Info("Saved run result",
		zap.String("run_id", result.RunID),
		zap.Int("trades", count),
		zap.String("dir", runDir),
	)

	return nil
}

// Load reads the stats of a saved run.
func (s *ParquetSink) Load(runID string) (types.RunStats, error) {
	path := filepath.Join(s.dir, filepath.Base(runID), statsFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return types.RunStats{}, errors.Newf(errors.ErrCodeNoResult, "no saved result for run %s", runID)
	}

	stats, err := types.ReadRunStats(path)
	if err != nil {
		return types.RunStats{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read run stats", err)
	}

	return stats, nil
}

// LoadTrades reads the trades of a saved run.
func (s *ParquetSink) LoadTrades(ctx context.Context, runID string) ([]types.Trade, error) {
	stats, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	trades, err := ReadTrades(ctx, stats.TradesFilePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read trades", err)
	}

	return trades, nil
}
