package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	"github.com/yanqian/batch-summarizer/internal/infra/artifacts"
	"github.com/yanqian/batch-summarizer/internal/infra/config"
	"github.com/yanqian/batch-summarizer/internal/infra/events"
	"github.com/yanqian/batch-summarizer/internal/infra/inference"
	"github.com/yanqian/batch-summarizer/internal/infra/ledger"
	"github.com/yanqian/batch-summarizer/internal/infra/llm/chatgpt"
	"github.com/yanqian/batch-summarizer/internal/infra/llm/tgi"
	"github.com/yanqian/batch-summarizer/internal/infra/sink"
	httpiface "github.com/yanqian/batch-summarizer/internal/interface/http"
	"github.com/yanqian/batch-summarizer/pkg/metrics"
)

// runLedger is satisfied by both ledger implementations.
type runLedger interface {
	batchsum.RunLedger
	httpiface.RunLookup
}

func provideBatchConfig(cfg *config.Config) batchsum.Config {
	return batchsum.Config{
		TitleColumn:    cfg.Data.TitleColumn,
		BodyColumn:     cfg.Data.BodyColumn,
		SummaryColumn:  cfg.Data.SummaryColumn,
		ChunkSize:      cfg.Data.ChunkSize,
		MaxChunkCount:  cfg.Data.MaxChunkCount,
		PromptTemplate: cfg.Prompt.Template,
		CleanFile:      cfg.Output.CleanFile,
		OutputFile:     cfg.Output.OutputFile,
		Verbose:        cfg.Logging.Verbose,
	}
}

func provideSinkFactory(cfg *config.Config, logger *slog.Logger) *sink.Factory {
	return sink.NewFactory(filepath.Clean(cfg.Output.Dir), logger)
}

func provideInferenceSettings(cfg *config.Config) inference.Settings {
	return inference.Settings{
		Model:          cfg.Model.Name,
		MaxNewTokens:   cfg.Model.MaxNewTokens,
		Temperature:    cfg.Model.Temperature,
		TopK:           cfg.Model.TopK,
		DoSample:       cfg.Model.DoSample,
		ReturnFullText: cfg.Model.ReturnFullText,
	}
}

// provideSummarizer builds the inference backend once per process; every
// record of the run reuses it.
func provideSummarizer(cfg *config.Config, pipeline *metrics.Pipeline, logger *slog.Logger) (batchsum.Summarizer, error) {
	settings := provideInferenceSettings(cfg)
	switch cfg.Inference.Provider {
	case config.ProviderEcho:
		logger.Info("echo inference backend enabled, summaries are not model generated")
		return inference.EchoSummarizer{}, nil
	case config.ProviderOpenAI:
		client := chatgpt.NewClient(cfg.Inference.APIKey, cfg.Inference.BaseURL, cfg.Inference.Timeout)
		logger.Info("chat completions backend enabled", "model", cfg.Model.Name, "baseUrl", cfg.Inference.BaseURL)
		return inference.NewChatGPTSummarizer(client, settings, provideTruncator(cfg, logger), pipeline), nil
	case config.ProviderTGI:
		client, err := tgi.NewClient(cfg.Inference.APIKey, cfg.Inference.BaseURL, cfg.Inference.Timeout)
		if err != nil {
			return nil, err
		}
		logger.Info("text-generation-inference backend enabled", "model", cfg.Model.Name, "baseUrl", cfg.Inference.BaseURL)
		return inference.NewTGISummarizer(client, settings, provideTruncator(cfg, logger), pipeline), nil
	default:
		return nil, fmt.Errorf("inference provider %q is not supported", cfg.Inference.Provider)
	}
}

func provideTruncator(cfg *config.Config, logger *slog.Logger) inference.Truncator {
	return inference.NewTruncator(cfg.Model.Name, cfg.Model.Tokenizer, cfg.Model.MaxInputTokens, cfg.Model.Truncation, logger.With("component", "inference.truncator"))
}

func provideLedger(cfg *config.Config, logger *slog.Logger) (runLedger, func()) {
	fallback := ledger.NewMemoryLedger()
	noop := func() {}
	dsn := strings.TrimSpace(cfg.Ledger.Postgres.DSN)
	if dsn == "" {
		logger.Debug("ledger postgres dsn not set, using memory ledger")
		return fallback, noop
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory ledger", "error", err)
		return fallback, noop
	}
	if cfg.Ledger.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Ledger.Postgres.MaxConns
	}
	if cfg.Ledger.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Ledger.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory ledger", "error", err)
		return fallback, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory ledger", "error", err)
		pool.Close()
		return fallback, noop
	}
	pg := ledger.NewPostgresLedger(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Error("ledger schema setup failed, using memory ledger", "error", err)
		pool.Close()
		return fallback, noop
	}
	logger.Info("postgres run ledger enabled")
	return pg, pool.Close
}

func provideRunLedger(l runLedger) batchsum.RunLedger {
	return l
}

func provideRunLookup(l runLedger) httpiface.RunLookup {
	return l
}

func provideEventPublisher(cfg *config.Config, logger *slog.Logger) (batchsum.EventPublisher, func()) {
	fallback := events.NewImmediatePublisher(events.LogHandler(logger))
	if !cfg.Events.Valkey.Enabled {
		return fallback, func() {}
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, events stay in process", "error", err)
		return fallback, func() {}
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, events stay in process", "error", err)
		return fallback, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, events stay in process", "error", err)
		client.Close()
		return fallback, func() {}
	}
	logger.Info("valkey batch events enabled", "addr", cfg.Events.Valkey.Addr, "key", cfg.Events.QueueKey)
	return events.NewValkeyPublisher(client, cfg.Events.QueueKey, logger), client.Close
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	if strings.Contains(cfg.Events.Valkey.Addr, "://") {
		return valkey.ParseURL(cfg.Events.Valkey.Addr)
	}
	return valkey.ClientOption{InitAddress: []string{cfg.Events.Valkey.Addr}}, nil
}

func provideArtifactUploader(cfg *config.Config, logger *slog.Logger) *artifacts.Uploader {
	if !cfg.Artifacts.Enabled {
		return artifacts.NewUploader(nil, cfg.Artifacts.Prefix, logger)
	}
	storage, err := artifacts.NewR2Storage(
		cfg.Artifacts.Endpoint,
		cfg.Artifacts.AccessKey,
		cfg.Artifacts.SecretKey,
		cfg.Artifacts.Bucket,
		cfg.Artifacts.Region,
		logger,
	)
	if err != nil {
		logger.Error("artifact storage unavailable, uploads disabled", "error", err)
		return artifacts.NewUploader(nil, cfg.Artifacts.Prefix, logger)
	}
	logger.Info("artifact uploads enabled", "bucket", cfg.Artifacts.Bucket, "prefix", cfg.Artifacts.Prefix)
	return artifacts.NewUploader(storage, cfg.Artifacts.Prefix, logger)
}

func provideProgressSource(svc batchsum.Service) httpiface.ProgressSource {
	return svc
}
