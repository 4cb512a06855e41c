package artifacts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingStorage struct{}

func (failingStorage) Put(context.Context, string, []byte, string) (StoredObject, error) {
	return StoredObject{}, errors.New("bucket unreachable")
}

func TestUploadRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	clean := filepath.Join(dir, "clean_dataset.csv")
	output := filepath.Join(dir, "output_dataset.csv")
	require.NoError(t, os.WriteFile(clean, []byte("title,abstract\nT,A\n"), 0o644))
	require.NoError(t, os.WriteFile(output, []byte("title,abstract,summary\nT,A,S\n"), 0o644))

	storage := NewMemoryStorage()
	runID := uuid.MustParse("6a0f8f59-5a8b-4d67-9a3e-1c0e9a3f2b10")
	u := NewUploader(storage, "runs", discardLogger())

	stored, err := u.UploadRun(context.Background(), batchsum.RunReport{RunID: runID, CleanPath: clean, OutputPath: output})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, []string{
		"runs/6a0f8f59-5a8b-4d67-9a3e-1c0e9a3f2b10/clean_dataset.csv",
		"runs/6a0f8f59-5a8b-4d67-9a3e-1c0e9a3f2b10/output_dataset.csv",
	}, storage.Keys())

	data, ok := storage.Get("runs/6a0f8f59-5a8b-4d67-9a3e-1c0e9a3f2b10/output_dataset.csv")
	require.True(t, ok)
	require.Equal(t, "title,abstract,summary\nT,A,S\n", string(data))
	require.Equal(t, csvMimeType, stored[0].MimeType)
	require.NotEmpty(t, stored[0].ETag)
}

func TestUploadRunSkipsMissingFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	storage := NewMemoryStorage()
	u := NewUploader(storage, "", discardLogger())

	stored, err := u.UploadRun(context.Background(), batchsum.RunReport{
		RunID:      uuid.New(),
		CleanPath:  filepath.Join(dir, "clean_dataset.csv"),
		OutputPath: filepath.Join(dir, "output_dataset.csv"),
	})
	require.NoError(t, err)
	require.Empty(t, stored)
	require.Empty(t, storage.Keys())
}

func TestUploadRunReportsFailures(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "clean_dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,abstract\n"), 0o644))

	u := NewUploader(failingStorage{}, "runs", discardLogger())
	_, err := u.UploadRun(context.Background(), batchsum.RunReport{RunID: uuid.New(), CleanPath: path})
	require.ErrorContains(t, err, "bucket unreachable")
}

func TestDisabledUploader(t *testing.T) {
	t.Parallel()
	u := NewUploader(nil, "runs", discardLogger())
	require.False(t, u.Enabled())
	stored, err := u.UploadRun(context.Background(), batchsum.RunReport{CleanPath: "ignored"})
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestSanitizeEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantSSL bool
	}{
		{in: "https://acct.r2.cloudflarestorage.com/bucket", want: "acct.r2.cloudflarestorage.com", wantSSL: true},
		{in: "http://localhost:9000", want: "localhost:9000", wantSSL: false},
		{in: "minio.internal:9000", want: "minio.internal:9000", wantSSL: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, sanitizeEndpoint(tt.in))
			require.Equal(t, tt.wantSSL, useSSL(tt.in))
		})
	}
}
