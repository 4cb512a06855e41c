package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	apperrors "github.com/yanqian/batch-summarizer/pkg/errors"
)

// jsonlSource streams one JSON object per line. Blank lines are skipped.
type jsonlSource struct {
	file      io.Closer
	dec       *json.Decoder
	chunkSize int
	index     int
	record    int
	done      bool
}

func newJSONLSource(r io.ReadCloser, chunkSize int) *jsonlSource {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()
	return &jsonlSource{file: r, dec: dec, chunkSize: chunkSize}
}

func (s *jsonlSource) Next(ctx context.Context) (batchsum.Batch, error) {
	if s.done {
		return batchsum.Batch{}, io.EOF
	}
	rows := make([]batchsum.RawRecord, 0, s.chunkSize)
	for len(rows) < s.chunkSize {
		if err := ctx.Err(); err != nil {
			return batchsum.Batch{}, err
		}
		var row map[string]any
		err := s.dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			s.done = true
			return batchsum.Batch{}, apperrors.Wrap(apperrors.CodeSourceInvalid, fmt.Sprintf("decode record %d", s.record), err)
		}
		if row == nil {
			s.done = true
			return batchsum.Batch{}, apperrors.Wrap(apperrors.CodeSourceInvalid, fmt.Sprintf("record %d is null", s.record), nil)
		}
		rows = append(rows, batchsum.RawRecord(row))
		s.record++
	}
	if len(rows) == 0 {
		return batchsum.Batch{}, io.EOF
	}
	batch := batchsum.Batch{Index: s.index, Rows: rows}
	s.index++
	return batch, nil
}

func (s *jsonlSource) Close() error {
	return s.file.Close()
}
