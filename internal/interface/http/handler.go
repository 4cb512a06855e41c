package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	"github.com/yanqian/batch-summarizer/pkg/metrics"
)

// ProgressSource exposes the live state of the pipeline.
type ProgressSource interface {
	Progress() batchsum.Progress
}

// RunLookup reads past runs from the ledger.
type RunLookup interface {
	Get(ctx context.Context, runID uuid.UUID) (batchsum.Run, bool, error)
	Checkpoints(ctx context.Context, runID uuid.UUID) ([]batchsum.BatchCheckpoint, error)
}

// StatusHandler serves read-only views of a running pipeline.
type StatusHandler struct {
	progress ProgressSource
	runs     RunLookup
	metrics  *metrics.Pipeline
	logger   *slog.Logger
}

// NewStatusHandler constructs the status handler.
func NewStatusHandler(progress ProgressSource, runs RunLookup, pipeline *metrics.Pipeline, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		progress: progress,
		runs:     runs,
		metrics:  pipeline,
		logger:   logger.With("component", "http.handler"),
	}
}

// Healthz reports liveness.
func (h *StatusHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type progressResponse struct {
	batchsum.Progress
	Usage metrics.TokenUsage `json:"tokenUsage"`
}

// Progress returns the current run snapshot.
func (h *StatusHandler) Progress(c *gin.Context) {
	c.JSON(http.StatusOK, progressResponse{
		Progress: h.progress.Progress(),
		Usage:    h.metrics.Usage(),
	})
}

type runResponse struct {
	Run         batchsum.Run               `json:"run"`
	Checkpoints []batchsum.BatchCheckpoint `json:"checkpoints"`
}

// GetRun returns a ledger entry with its batch checkpoints.
func (h *StatusHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_run_id", "run id must be a uuid", err))
		return
	}
	run, ok, err := h.runs.Get(c.Request.Context(), runID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "ledger_unavailable", "", err))
		return
	}
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "run_not_found", "run not found", nil))
		return
	}
	checkpoints, err := h.runs.Checkpoints(c.Request.Context(), runID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "ledger_unavailable", "", err))
		return
	}
	if checkpoints == nil {
		checkpoints = []batchsum.BatchCheckpoint{}
	}
	c.JSON(http.StatusOK, runResponse{Run: run, Checkpoints: checkpoints})
}
