package batchsum

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/batch-summarizer/pkg/errors"
)

func TestNormalize(t *testing.T) {
	cols := Columns{Title: "title", Body: "abstract"}
	tests := []struct {
		name string
		rows []RawRecord
		want []Record
	}{
		{
			name: "replaces each newline with one space",
			rows: []RawRecord{{"title": "Deep\nLearning", "abstract": "line one\n\nline two\n"}},
			want: []Record{{Title: "Deep Learning", Body: "line one  line two "}},
		},
		{
			name: "keeps surrounding whitespace and case",
			rows: []RawRecord{{"title": "  Mixed Case ", "abstract": "\tBody"}},
			want: []Record{{Title: "  Mixed Case ", Body: "\tBody"}},
		},
		{
			name: "drops extra columns and keeps order",
			rows: []RawRecord{
				{"title": "A", "abstract": "a", "id": "1"},
				{"title": "B", "abstract": "b", "authors": []any{"x"}},
			},
			want: []Record{{Title: "A", Body: "a"}, {Title: "B", Body: "b"}},
		},
		{
			name: "empty batch",
			rows: nil,
			want: []Record{},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(Batch{Index: 3, Rows: tt.rows}, cols)
			require.NoError(t, err)
			require.Equal(t, 3, got.Index)
			require.Len(t, got.Records, len(tt.rows))
			require.Equal(t, tt.want, got.Records)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()
	cols := Columns{Title: "title", Body: "abstract"}
	first, err := Normalize(Batch{Rows: []RawRecord{{"title": "a\nb", "abstract": "\nc\n\n"}}}, cols)
	require.NoError(t, err)

	again := Batch{Rows: make([]RawRecord, 0, len(first.Records))}
	for _, rec := range first.Records {
		again.Rows = append(again.Rows, RawRecord{"title": rec.Title, "abstract": rec.Body})
	}
	second, err := Normalize(again, cols)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestNormalizeSchemaErrors(t *testing.T) {
	cols := Columns{Title: "title", Body: "abstract"}
	tests := []struct {
		name    string
		row     RawRecord
		wantMsg string
	}{
		{name: "missing body", row: RawRecord{"title": "T"}, wantMsg: `missing column "abstract"`},
		{name: "missing title", row: RawRecord{"abstract": "A"}, wantMsg: `missing column "title"`},
		{name: "null value", row: RawRecord{"title": "T", "abstract": nil}, wantMsg: `column "abstract" holds <nil>, want string`},
		{name: "numeric title", row: RawRecord{"title": 42.0, "abstract": "A"}, wantMsg: `column "title" holds float64, want string`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			batch := Batch{Index: 1, Rows: []RawRecord{{"title": "ok", "abstract": "ok"}, tt.row}}
			_, err := Normalize(batch, cols)
			require.Error(t, err)
			require.True(t, apperrors.IsCode(err, apperrors.CodeSchema))
			require.ErrorContains(t, err, "batch 1 row 1")
			require.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestCleanSummary(t *testing.T) {
	t.Parallel()
	require.Equal(t, "first line second line", cleanSummary("\n first line\nsecond line \n"))
	require.Equal(t, "", cleanSummary("\n\n"))
}
