// Package csvfile persists enriched records to an append-only CSV file.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
)

// Sink appends enriched records to a CSV file. It implements
// pipeline.BatchLoader.
//
// The header is written only when the file is empty. Rows already in the file
// are never rewritten, so running twice against the same file duplicates the
// overlapping rows; use Truncate to start over.
type Sink struct {
	path   string
	logger *slog.Logger
}

// NewSink creates a sink for path. The file is created on first write.
func NewSink(path string, logger *slog.Logger) *Sink {
	return &Sink{path: path, logger: logger}
}

// Path returns the target file.
func (s *Sink) Path() string {
	return s.path
}

// LoadBatch appends one row per record.
func (s *Sink) LoadBatch(_ context.Context, records []domain.EnrichedRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(domain.OutputHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i := range records {
		cols, err := records[i].Columns()
		if err != nil {
			return fmt.Errorf("record %s: %w", records[i].ID, err)
		}
		if err := w.Write(cols); err != nil {
			return fmt.Errorf("write record %s: %w", records[i].ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	s.logger.Debug("records appended", "path", s.path, "count", len(records))
	return nil
}

// Truncate empties the target so the next LoadBatch starts with a header.
// A missing file is not an error.
func (s *Sink) Truncate() error {
	err := os.Truncate(s.path, 0)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncate output: %w", err)
	}
	return nil
}
