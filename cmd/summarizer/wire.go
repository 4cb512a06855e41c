//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/batch-summarizer/internal/bootstrap"
	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
	"github.com/yanqian/batch-summarizer/internal/infra/config"
	"github.com/yanqian/batch-summarizer/internal/infra/sink"
	"github.com/yanqian/batch-summarizer/internal/infra/source"
	httpiface "github.com/yanqian/batch-summarizer/internal/interface/http"
	"github.com/yanqian/batch-summarizer/pkg/logger"
	"github.com/yanqian/batch-summarizer/pkg/metrics"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewPipeline,
		provideBatchConfig,
		provideSinkFactory,
		provideSummarizer,
		provideLedger,
		provideRunLedger,
		provideRunLookup,
		provideEventPublisher,
		provideArtifactUploader,
		provideProgressSource,
		source.NewOpener,
		batchsum.NewService,
		wire.Bind(new(batchsum.SourceOpener), new(*source.Opener)),
		wire.Bind(new(batchsum.SinkFactory), new(*sink.Factory)),
		httpiface.NewStatusHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
