package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/types"
	"github.com/rxtech-lab/tradermind/internal/version"
	"github.com/rxtech-lab/tradermind/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// insertBatchSize bounds the number of rows per INSERT statement.
const insertBatchSize = 500

var barColumns = []string{"seq", "symbol", "time", "open", "high", "low", "close", "volume", "extra"}

// Store persists cache entries. Read returns None when nothing usable is stored.
type Store interface {
	Read(ctx context.Context, key types.DatasetKey) (optional.Option[types.CacheEntry], error)
	Write(ctx context.Context, entry types.CacheEntry) error
}

// manifest is the yaml sidecar describing the current parquet file of a key.
// It is replaced last on write, so a reader sees either the old or the new
// entry and never a mix.
type manifest struct {
	Key           types.DatasetKey `yaml:"key"`
	DataFile      string           `yaml:"data_file"`
	FetchedAt     time.Time        `yaml:"fetched_at"`
	Rows          int              `yaml:"rows"`
	Symbols       int              `yaml:"symbols"`
	FormatVersion string           `yaml:"format_version"`
}

// ParquetStore keeps one parquet file and one manifest per dataset key in dir.
type ParquetStore struct {
	dir    string
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewParquetStore creates a store rooted at dir. The directory is created on first write.
func NewParquetStore(dir string, log *logger.Logger) *ParquetStore {
	return &ParquetStore{
		dir:    dir,
		logger: log.Named("parquet_store"),
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// ManifestPath returns the manifest location of key.
func (s *ParquetStore) ManifestPath(key types.DatasetKey) string {
	return filepath.Join(s.dir, key.FileName()+".manifest.yaml")
}

// Write stores entry under a new parquet file and then swaps the manifest.
func (s *ParquetStore) Write(ctx context.Context, entry types.CacheEntry) (err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to create cache directory", err)
	}

	dataFile := fmt.Sprintf("%s-%s.parquet", entry.Key.FileName(), uuid.New().String()[:8])
	dataPath := filepath.Join(s.dir, dataFile)

	defer func() {
		if err != nil {
			_ = os.Remove(dataPath)
		}
	}()

	if err := s.exportParquet(ctx, entry.Bars, dataPath); err != nil {
		return errors.Wrapf(errors.ErrCodeCacheWriteFailed, err, "failed to write %s", dataFile)
	}

	symbols := make(map[string]struct{})
	for _, bar := range entry.Bars {
		symbols[bar.Symbol] = struct{}{}
	}

	next := manifest{
		Key:           entry.Key,
		DataFile:      dataFile,
		FetchedAt:     entry.FetchedAt.UTC(),
		Rows:          len(entry.Bars),
		Symbols:       len(symbols),
		FormatVersion: version.CacheFormatVersion,
	}

	previous, _ := s.readManifest(entry.Key)

	if err := s.writeManifest(next); err != nil {
		return errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to write manifest", err)
	}

	if previous.IsSome() && previous.Unwrap().DataFile != dataFile {
		if rmErr := os.Remove(filepath.Join(s.dir, previous.Unwrap().DataFile)); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("Failed to remove replaced cache file", zap.String("file", previous.Unwrap().DataFile), zap.Error(rmErr))
		}
	}

	s.logger.Debug("Stored dataset",
		zap.String("dataset", entry.Key.String()),
		zap.Int("rows", next.Rows),
		zap.String("file", dataFile),
	)

	return nil
}

// Read loads the entry of key. A missing manifest, an incompatible format
// version or a row count mismatch all read as no entry.
func (s *ParquetStore) Read(ctx context.Context, key types.DatasetKey) (optional.Option[types.CacheEntry], error) {
	m, err := s.readManifest(key)
	if err != nil {
		return optional.None[types.CacheEntry](), errors.Wrap(errors.ErrCodeCacheReadFailed, "failed to read manifest", err)
	}

	if m.IsNone() {
		return optional.None[types.CacheEntry](), nil
	}

	current := m.Unwrap()

	if err := version.CheckVersionCompatibility(version.CacheFormatVersion, current.FormatVersion); err != nil {
		s.logger.Warn("Ignoring cache entry written in another format", zap.String("dataset", key.String()), zap.Error(err))

		return optional.None[types.CacheEntry](), nil
	}

	bars, err := s.importParquet(ctx, filepath.Join(s.dir, current.DataFile))
	if err != nil {
		return optional.None[types.CacheEntry](), errors.Wrapf(errors.ErrCodeCacheReadFailed, err, "failed to read %s", current.DataFile)
	}

	if len(bars) != current.Rows {
		s.logger.Warn("Ignoring truncated cache entry",
			zap.String("dataset", key.String()),
			zap.Int("expected_rows", current.Rows),
			zap.Int("rows", len(bars)),
		)

		return optional.None[types.CacheEntry](), nil
	}

	return optional.Some(types.CacheEntry{
		Key:       key,
		Bars:      bars,
		FetchedAt: current.FetchedAt,
	}), nil
}

func (s *ParquetStore) readManifest(key types.DatasetKey) (optional.Option[manifest], error) {
	data, err := os.ReadFile(s.ManifestPath(key))
	if os.IsNotExist(err) {
		return optional.None[manifest](), nil
	}

	if err != nil {
		return optional.None[manifest](), err
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return optional.None[manifest](), fmt.Errorf("failed to parse manifest: %w", err)
	}

	return optional.Some(m), nil
}

func (s *ParquetStore) writeManifest(m manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	target := s.ManifestPath(m.Key)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, target)
}

// exportParquet loads bars into an in-memory DuckDB table and copies it to path.
func (s *ParquetStore) exportParquet(ctx context.Context, bars []types.Bar, path string) error {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE bars (
			seq BIGINT,
			symbol TEXT,
			time TIMESTAMP,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE,
			extra TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for start := 0; start < len(bars); start += insertBatchSize {
		end := min(start+insertBatchSize, len(bars))
		insert := s.sq.Insert("bars").Columns(barColumns...)

		for i, bar := range bars[start:end] {
			extra, err := encodeExtra(bar.Extra)
			if err != nil {
				_ = tx.Rollback()

				return err
			}

			insert = insert.Values(start+i, bar.Symbol, bar.Time.UTC(), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, extra)
		}

		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("failed to insert bars: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`COPY bars TO '%s' (FORMAT PARQUET)`, path))
	if err != nil {
		return fmt.Errorf("failed to export to Parquet: %w", err)
	}

	return nil
}

func (s *ParquetStore) importParquet(ctx context.Context, path string) ([]types.Bar, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	rows, err := s.sq.Select(barColumns...).
		From(fmt.Sprintf("read_parquet('%s')", path)).
		OrderBy("seq").
		RunWith(db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query parquet: %w", err)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var (
			seq                                   int64
			symbol                                string
			ts                                    time.Time
			openPrice, high, low, closePrice, vol float64
			extra                                 sql.NullString
		)

		if err := rows.Scan(&seq, &symbol, &ts, &openPrice, &high, &low, &closePrice, &vol, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}

		row, err := decodeExtra(extra.String)
		if err != nil {
			return nil, err
		}

		row["symbol"] = symbol
		row["date"] = ts
		row["open"] = openPrice
		row["high"] = high
		row["low"] = low
		row["close"] = closePrice
		row["volume"] = vol

		bar, err := types.NormalizeBar(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", seq, err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bars: %w", err)
	}

	return bars, nil
}

func encodeExtra(extra map[string]float64) (string, error) {
	if len(extra) == 0 {
		return "", nil
	}

	raw, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("failed to encode extra columns: %w", err)
	}

	return string(raw), nil
}

// decodeExtra returns the extra columns as a row for types.NormalizeBar.
// Columns that would shadow a bar field under any casing are dropped.
func decodeExtra(raw string) (map[string]any, error) {
	row := make(map[string]any, len(barColumns))
	if raw == "" {
		return row, nil
	}

	var extra map[string]any
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil, fmt.Errorf("failed to decode extra columns: %w", err)
	}

	for name, v := range extra {
		if types.IsBarField(name) {
			continue
		}

		row[name] = v
	}

	return row, nil
}
