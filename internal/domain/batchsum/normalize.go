package batchsum

import (
	"fmt"
	"strings"

	apperrors "github.com/yanqian/batch-summarizer/pkg/errors"
)

// Normalize projects a batch onto the title and body columns and replaces
// every newline with a single space. Row count and order are preserved.
// A row that lacks either column, or holds a non-string value in it, fails
// the whole batch with a schema_error.
func Normalize(batch Batch, cols Columns) (NormalizedBatch, error) {
	out := NormalizedBatch{
		Index:   batch.Index,
		Records: make([]Record, 0, len(batch.Rows)),
	}
	for i, row := range batch.Rows {
		title, err := stringField(row, cols.Title)
		if err != nil {
			return NormalizedBatch{}, apperrors.Wrap(apperrors.CodeSchema, fmt.Sprintf("batch %d row %d", batch.Index, i), err)
		}
		body, err := stringField(row, cols.Body)
		if err != nil {
			return NormalizedBatch{}, apperrors.Wrap(apperrors.CodeSchema, fmt.Sprintf("batch %d row %d", batch.Index, i), err)
		}
		out.Records = append(out.Records, Record{
			Title: collapseNewlines(title),
			Body:  collapseNewlines(body),
		})
	}
	return out, nil
}

func stringField(row RawRecord, column string) (string, error) {
	value, ok := row[column]
	if !ok {
		return "", fmt.Errorf("missing column %q", column)
	}
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("column %q holds %T, want string", column, value)
	}
	return text, nil
}

func collapseNewlines(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}

// cleanSummary turns raw model output into the stored summary.
func cleanSummary(text string) string {
	return strings.TrimSpace(collapseNewlines(text))
}
