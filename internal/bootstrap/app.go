package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	"github.com/yanqian/batch-summarizer/internal/infra/artifacts"
	"github.com/yanqian/batch-summarizer/internal/infra/config"
)

const shutdownTimeout = 5 * time.Second

// App runs one summarization pipeline, with the status server alongside it
// when an address is configured.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	service  batchsum.Service
	server   *http.Server
	uploader *artifacts.Uploader
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, service batchsum.Service, server *http.Server, uploader *artifacts.Uploader) *App {
	return &App{
		cfg:      cfg,
		logger:   logger.With("component", "bootstrap"),
		service:  service,
		server:   server,
		uploader: uploader,
	}
}

// Run executes the pipeline over inputPath and blocks until it finishes or
// ctx is cancelled.
func (a *App) Run(ctx context.Context, inputPath string) (batchsum.RunReport, error) {
	stop := a.startServer()
	defer stop()

	report, err := a.service.Run(ctx, inputPath)
	if err != nil {
		return report, err
	}

	if a.uploader.Enabled() {
		if _, uploadErr := a.uploader.UploadRun(ctx, report); uploadErr != nil {
			a.logger.Error("artifact upload failed", "runId", report.RunID.String(), "error", uploadErr)
		}
	}
	return report, nil
}

// startServer launches the status server when configured and returns a
// function that shuts it down.
func (a *App) startServer() func() {
	if a.server == nil || a.cfg.HTTP.Address == "" {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.logger.Info("http server starting", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http server shutdown failed", "error", err)
		}
		<-done
	}
}
