//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinCapture/internal/usecase"
	"FinCapture/pkg/config"
	"FinCapture/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideRedisCache,
	ProvideCache,
	ProvideClickHouseClient,
	ProvideCaptureStore,
	ProvideArchiveStore,
)

var archiveSet = wire.NewSet(
	ProvideArchiver,
	ProvideMergeJob,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		archiveSet,

		// Capture path
		ProvidePublisher,
		ProvideCaptureProcessor,
		ProvideRateLimiter,
		ProvideFetcher,
		ProvideSymbolUniverse,
		ProvideScheduler,
		ProvideQueue,
		ProvideCaptureCollector,

		// Kafka ingest
		ProvideKafkaConsumer,
		ProvideIngestHandler,

		// HTTP
		ProvideArchiveHandler,
		ProvideHTTPServer,

		wire.Struct(new(server.Deps), "*"),
		server.New,
	)
	return nil, nil, nil
}

// InitializeArchiver wires the merge path only, for one-shot runs.
func InitializeArchiver(cfg *config.Config) (*usecase.Archiver, func(), error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisCache,
		ProvideClickHouseClient,
		ProvideCaptureStore,
		ProvideArchiveStore,
		ProvideArchiver,
	)
	return nil, nil, nil
}
