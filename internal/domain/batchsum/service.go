package batchsum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/batch-summarizer/pkg/errors"
	"github.com/yanqian/batch-summarizer/pkg/metrics"
	"github.com/yanqian/batch-summarizer/pkg/util"
)

// Service drives one batch summarization run at a time.
type Service interface {
	Run(ctx context.Context, inputPath string) (RunReport, error)
	Progress() Progress
}

type service struct {
	cfg        Config
	opener     SourceOpener
	summarizer Summarizer
	sinks      SinkFactory
	ledger     RunLedger
	events     EventPublisher
	metrics    *metrics.Pipeline
	prompts    PromptBuilder
	progress   *progressTracker
	now        util.Clock
	logger     *slog.Logger
}

// NewService is a wire provider for the batch summarization domain.
func NewService(
	cfg Config,
	opener SourceOpener,
	summarizer Summarizer,
	sinks SinkFactory,
	ledger RunLedger,
	events EventPublisher,
	pipeline *metrics.Pipeline,
	logger *slog.Logger,
) Service {
	return newService(cfg, opener, summarizer, sinks, ledger, events, pipeline, util.NowUTC, logger)
}

func newService(
	cfg Config,
	opener SourceOpener,
	summarizer Summarizer,
	sinks SinkFactory,
	ledger RunLedger,
	events EventPublisher,
	pipeline *metrics.Pipeline,
	now util.Clock,
	logger *slog.Logger,
) *service {
	return &service{
		cfg:        cfg,
		opener:     opener,
		summarizer: summarizer,
		sinks:      sinks,
		ledger:     ledger,
		events:     events,
		metrics:    pipeline,
		prompts:    NewPromptBuilder(cfg.PromptTemplate),
		progress:   newProgressTracker(now),
		now:        now,
		logger:     logger.With("component", "batchsum.service"),
	}
}

func (s *service) Progress() Progress {
	return s.progress.snapshot()
}

// runState is owned by a single Run call. counter is the only record of how
// many batches have been fully persisted.
type runState struct {
	id      uuid.UUID
	counter int
	clean   TableSink
	output  TableSink
	report  RunReport
}

func (s *service) Run(ctx context.Context, inputPath string) (RunReport, error) {
	if s.cfg.ChunkSize <= 0 || s.cfg.MaxChunkCount <= 0 {
		return RunReport{}, apperrors.Wrap(apperrors.CodeInvalidConfig, "chunk size and max chunk count must be positive", nil)
	}
	started := s.now()
	usageBefore := s.metrics.Usage()
	run := &runState{id: uuid.New()}
	s.progress.begin(run.id, inputPath, s.cfg.MaxChunkCount)
	logger := s.logger.With("runId", run.id.String())

	src, err := s.opener.Open(inputPath, s.cfg.ChunkSize)
	if err != nil {
		s.progress.finish(StopFailed)
		return RunReport{}, err
	}
	defer src.Close()

	run.clean = s.sinks.NewSink(s.cfg.CleanFile, []string{s.cfg.TitleColumn, s.cfg.BodyColumn})
	run.output = s.sinks.NewSink(s.cfg.OutputFile, []string{s.cfg.TitleColumn, s.cfg.BodyColumn, s.cfg.SummaryColumn})
	defer run.clean.Close()
	defer run.output.Close()
	run.report = RunReport{
		RunID:      run.id,
		CleanPath:  run.clean.Path(),
		OutputPath: run.output.Path(),
	}

	if err := s.ledger.StartRun(ctx, Run{
		ID:        run.id,
		InputPath: inputPath,
		Status:    RunStatusRunning,
		StartedAt: started,
	}); err != nil {
		logger.Warn("ledger start failed", "error", err)
	}
	logger.Info("run started", "input", inputPath, "chunkSize", s.cfg.ChunkSize, "maxChunkCount", s.cfg.MaxChunkCount)

	reason, runErr := s.loop(ctx, src, run, logger)

	run.report.StopReason = reason
	run.report.DurationMs = s.now().Sub(started).Milliseconds()
	run.report.TokenUsage = s.metrics.Usage().Since(usageBefore)
	s.progress.finish(reason)

	// The ledger must see the final status even when ctx was cancelled.
	if err := s.ledger.FinishRun(context.WithoutCancel(ctx), run.id, runStatus(reason), run.report); err != nil {
		logger.Warn("ledger finish failed", "error", err)
	}
	logger.Info("run finished",
		"stopReason", reason,
		"batches", run.report.Batches,
		"records", run.report.Records,
		"failed", run.report.Failed,
		"durationMs", run.report.DurationMs,
	)
	return run.report, runErr
}

func (s *service) loop(ctx context.Context, src BatchSource, run *runState, logger *slog.Logger) (StopReason, error) {
	for {
		s.progress.enter(StateReady)
		if ctx.Err() != nil {
			return StopInterrupted, interrupted(ctx.Err())
		}
		batch, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return StopSourceExhausted, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return StopInterrupted, interrupted(err)
			}
			return StopFailed, err
		}

		s.progress.enter(StateNormalizing)
		normalized, err := Normalize(batch, Columns{Title: s.cfg.TitleColumn, Body: s.cfg.BodyColumn})
		if err != nil {
			return StopFailed, err
		}

		s.progress.enter(StatePersistClean)
		if err := s.persist(ctx, run.clean, run.counter, cleanRows(normalized)); err != nil {
			return StopFailed, err
		}

		s.progress.enter(StateSummarizing)
		augmented, failed, err := s.summarizeBatch(ctx, normalized, logger)
		if err != nil {
			return StopInterrupted, err
		}

		s.progress.enter(StatePersistOutput)
		if err := s.persist(ctx, run.output, run.counter, outputRows(augmented)); err != nil {
			return StopFailed, err
		}

		s.progress.enter(StateCheckTermination)
		run.counter++
		s.completeBatch(ctx, run, augmented, failed, logger)
		if run.counter >= s.cfg.MaxChunkCount {
			return StopMaxChunkCount, nil
		}
	}
}

// persist writes one batch after checking the sink agrees with the counter.
func (s *service) persist(ctx context.Context, sink TableSink, counter int, rows [][]string) error {
	if want := expectedSinkState(counter); sink.State() != want {
		return apperrors.Wrap(apperrors.CodeSink,
			fmt.Sprintf("%s is %s after %d batches, want %s", sink.Path(), sink.State(), counter, want), nil)
	}
	return sink.Append(ctx, rows)
}

func expectedSinkState(counter int) SinkState {
	switch counter {
	case 0:
		return SinkUninitialized
	case 1:
		return SinkHeaderWritten
	default:
		return SinkAppending
	}
}

// summarizeBatch summarizes every record in order. It only fails when the
// run is interrupted, in which case the partial batch is discarded.
func (s *service) summarizeBatch(ctx context.Context, batch NormalizedBatch, logger *slog.Logger) (AugmentedBatch, int, error) {
	out := AugmentedBatch{
		Index: batch.Index,
		Rows:  make([]SummarizedRecord, 0, len(batch.Records)),
	}
	failed := 0
	for i, rec := range batch.Records {
		if ctx.Err() != nil {
			return AugmentedBatch{}, 0, interrupted(ctx.Err())
		}
		outcome := s.summarizeRecord(ctx, rec)
		if outcome.Err != nil {
			if ctx.Err() != nil {
				return AugmentedBatch{}, 0, interrupted(outcome.Err)
			}
			failed++
			s.metrics.ObserveRecord(metrics.OutcomeFailed)
			s.verbose(logger, "article failed", "batch", batch.Index, "row", i, "title", rec.Title, "error", outcome.Err)
		} else {
			s.metrics.ObserveRecord(metrics.OutcomeSummarized)
			s.verbose(logger, "article summarized", "batch", batch.Index, "row", i, "title", rec.Title)
		}
		out.Rows = append(out.Rows, SummarizedRecord{Record: rec, Summary: outcome.Summary})
	}
	return out, failed, nil
}

func (s *service) summarizeRecord(ctx context.Context, rec Record) RecordOutcome {
	prompt := s.prompts.Build(rec.Title, rec.Body)
	text, err := s.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return RecordOutcome{
			Summary: SentinelSummary,
			Err:     apperrors.Wrap(apperrors.CodeInferenceFailed, "summarize record", err),
		}
	}
	return RecordOutcome{Summary: cleanSummary(text)}
}

func (s *service) completeBatch(ctx context.Context, run *runState, batch AugmentedBatch, failed int, logger *slog.Logger) {
	records := len(batch.Rows)
	run.report.Batches = run.counter
	run.report.Records += records
	run.report.Failed += failed
	run.report.Summarized += records - failed
	s.progress.batchDone(run.counter, records, failed)
	s.metrics.ObserveBatch()

	completedAt := s.now()
	if err := s.ledger.RecordBatch(ctx, BatchCheckpoint{
		RunID:       run.id,
		BatchIndex:  batch.Index,
		Records:     records,
		Failed:      failed,
		CompletedAt: completedAt,
	}); err != nil {
		logger.Warn("ledger checkpoint failed", "batch", batch.Index, "error", err)
	}
	if err := s.events.Publish(ctx, BatchEvent{
		RunID:       run.id,
		BatchIndex:  batch.Index,
		Records:     records,
		Failed:      failed,
		CleanPath:   run.clean.Path(),
		OutputPath:  run.output.Path(),
		CompletedAt: completedAt,
	}); err != nil {
		logger.Warn("batch event publish failed", "batch", batch.Index, "error", err)
	}
	s.verbose(logger, "batch saved", "batch", batch.Index, "counter", run.counter, "records", records, "failed", failed)
}

func (s *service) verbose(logger *slog.Logger, msg string, args ...any) {
	if s.cfg.Verbose {
		logger.Info(msg, args...)
		return
	}
	logger.Debug(msg, args...)
}

func cleanRows(batch NormalizedBatch) [][]string {
	rows := make([][]string, 0, len(batch.Records))
	for _, rec := range batch.Records {
		rows = append(rows, []string{rec.Title, rec.Body})
	}
	return rows
}

func outputRows(batch AugmentedBatch) [][]string {
	rows := make([][]string, 0, len(batch.Rows))
	for _, rec := range batch.Rows {
		rows = append(rows, []string{rec.Title, rec.Body, rec.Summary})
	}
	return rows
}

func interrupted(err error) error {
	return apperrors.Wrap(apperrors.CodeInterrupted, "run interrupted", err)
}

func runStatus(reason StopReason) RunStatus {
	switch reason {
	case StopSourceExhausted, StopMaxChunkCount:
		return RunStatusCompleted
	case StopInterrupted:
		return RunStatusInterrupted
	default:
		return RunStatusFailed
	}
}
