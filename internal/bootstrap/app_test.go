package bootstrap

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
	"github.com/yanqian/batch-summarizer/internal/infra/artifacts"
	"github.com/yanqian/batch-summarizer/internal/infra/config"
)

type stubService struct {
	report batchsum.RunReport
	err    error
	calls  int
}

func (s *stubService) Run(context.Context, string) (batchsum.RunReport, error) {
	s.calls++
	return s.report, s.err
}

func (s *stubService) Progress() batchsum.Progress {
	return batchsum.Progress{}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppUploadsAfterCompletedRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	output := filepath.Join(dir, "output_dataset.csv")
	require.NoError(t, os.WriteFile(output, []byte("title,abstract,summary\n"), 0o644))

	runID := uuid.New()
	svc := &stubService{report: batchsum.RunReport{RunID: runID, OutputPath: output, StopReason: batchsum.StopSourceExhausted}}
	storage := artifacts.NewMemoryStorage()
	app := NewApp(&config.Config{}, discardLogger(), svc, nil, artifacts.NewUploader(storage, "runs", discardLogger()))

	report, err := app.Run(context.Background(), "in.jsonl")
	require.NoError(t, err)
	require.Equal(t, runID, report.RunID)
	require.Equal(t, []string{"runs/" + runID.String() + "/output_dataset.csv"}, storage.Keys())
}

func TestAppSkipsUploadOnFailure(t *testing.T) {
	t.Parallel()
	output := filepath.Join(t.TempDir(), "output_dataset.csv")
	require.NoError(t, os.WriteFile(output, []byte("title,abstract,summary\n"), 0o644))

	svc := &stubService{report: batchsum.RunReport{RunID: uuid.New(), OutputPath: output}, err: errors.New("interrupted")}
	storage := artifacts.NewMemoryStorage()
	app := NewApp(&config.Config{}, discardLogger(), svc, nil, artifacts.NewUploader(storage, "runs", discardLogger()))

	_, err := app.Run(context.Background(), "in.jsonl")
	require.Error(t, err)
	require.Empty(t, storage.Keys())
}

func TestAppWithoutUploader(t *testing.T) {
	t.Parallel()
	svc := &stubService{}
	app := NewApp(&config.Config{}, discardLogger(), svc, nil, artifacts.NewUploader(nil, "", discardLogger()))

	_, err := app.Run(context.Background(), "in.jsonl")
	require.NoError(t, err)
	require.Equal(t, 1, svc.calls)
}
