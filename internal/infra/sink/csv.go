package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	apperrors "github.com/yanqian/batch-summarizer/pkg/errors"
)

// CSVWriter is a tri-state table sink. Nothing touches the file system until
// the first Append, which creates the directory, truncates the file and
// writes the header together with the rows. Later calls open in append mode.
type CSVWriter struct {
	path    string
	columns []string
	logger  *slog.Logger

	mu    sync.Mutex
	state batchsum.SinkState
	rows  int
}

// NewCSVWriter returns an uninitialized writer for path.
func NewCSVWriter(path string, columns []string, logger *slog.Logger) *CSVWriter {
	return &CSVWriter{
		path:    path,
		columns: append([]string(nil), columns...),
		logger:  logger,
		state:   batchsum.SinkUninitialized,
	}
}

// Append writes all rows with a single write call.
func (w *CSVWriter) Append(ctx context.Context, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, row := range rows {
		if len(row) != len(w.columns) {
			return apperrors.Wrap(apperrors.CodeSink,
				fmt.Sprintf("%s: row %d has %d fields, want %d", w.path, i, len(row), len(w.columns)), nil)
		}
	}

	first := w.state == batchsum.SinkUninitialized
	payload, err := w.encode(rows, first)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeSink, "encode "+w.path, err)
	}
	if err := w.write(payload, first); err != nil {
		return apperrors.Wrap(apperrors.CodeSink, "write "+w.path, err)
	}

	switch w.state {
	case batchsum.SinkUninitialized:
		w.state = batchsum.SinkHeaderWritten
	case batchsum.SinkHeaderWritten:
		w.state = batchsum.SinkAppending
	}
	w.rows += len(rows)
	w.logger.Debug("rows written", "path", w.path, "rows", len(rows), "total", w.rows, "state", w.state)
	return nil
}

func (w *CSVWriter) encode(rows [][]string, header bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := csv.NewWriter(&buf)
	if header {
		if err := enc.Write(w.columns); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *CSVWriter) write(payload []byte, first bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if first {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return err
		}
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// State reports the current write mode.
func (w *CSVWriter) State() batchsum.SinkState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Path returns the target file.
func (w *CSVWriter) Path() string {
	return w.path
}

// Close is a no-op; every Append opens and closes the file itself.
func (w *CSVWriter) Close() error {
	return nil
}

// Factory creates CSV writers under a fixed output directory.
type Factory struct {
	dir    string
	logger *slog.Logger
}

// NewFactory is a wire provider for table sinks.
func NewFactory(dir string, logger *slog.Logger) *Factory {
	return &Factory{dir: dir, logger: logger.With("component", "sink.csv")}
}

// NewSink implements batchsum.SinkFactory.
func (f *Factory) NewSink(name string, columns []string) batchsum.TableSink {
	return NewCSVWriter(filepath.Join(f.dir, name), columns, f.logger)
}
