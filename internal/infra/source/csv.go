package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	apperrors "github.com/yanqian/batch-summarizer/pkg/errors"
)

// csvSource reads a CSV file whose first row names the columns.
type csvSource struct {
	file      io.Closer
	reader    *csv.Reader
	header    []string
	chunkSize int
	index     int
	line      int
	done      bool
}

func newCSVSource(r io.ReadCloser, chunkSize int) *csvSource {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return &csvSource{file: r, reader: reader, chunkSize: chunkSize}
}

func (s *csvSource) Next(ctx context.Context) (batchsum.Batch, error) {
	if s.done {
		return batchsum.Batch{}, io.EOF
	}
	if s.header == nil {
		header, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			return batchsum.Batch{}, io.EOF
		}
		if err != nil {
			s.done = true
			return batchsum.Batch{}, apperrors.Wrap(apperrors.CodeSourceInvalid, "read csv header", err)
		}
		s.header = header
		s.line = 1
	}

	rows := make([]batchsum.RawRecord, 0, s.chunkSize)
	for len(rows) < s.chunkSize {
		if err := ctx.Err(); err != nil {
			return batchsum.Batch{}, err
		}
		fields, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			s.done = true
			return batchsum.Batch{}, apperrors.Wrap(apperrors.CodeSourceInvalid, fmt.Sprintf("read csv line %d", s.line+1), err)
		}
		s.line++
		rows = append(rows, s.toRecord(fields))
	}
	if len(rows) == 0 {
		return batchsum.Batch{}, io.EOF
	}
	batch := batchsum.Batch{Index: s.index, Rows: rows}
	s.index++
	return batch, nil
}

// toRecord maps fields onto header names. Short rows leave the trailing
// columns absent so normalization reports them.
func (s *csvSource) toRecord(fields []string) batchsum.RawRecord {
	row := make(batchsum.RawRecord, len(s.header))
	for i, name := range s.header {
		if i < len(fields) {
			row[name] = fields[i]
		}
	}
	return row
}

func (s *csvSource) Close() error {
	return s.file.Close()
}
