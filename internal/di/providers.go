package di

import (
	"context"
	"fmt"
	"time"

	"FinCapture/internal/domain/models"
	drepo "FinCapture/internal/domain/repository"
	"FinCapture/internal/handler/api"
	internalrepo "FinCapture/internal/repository"
	"FinCapture/internal/service/provider"
	"FinCapture/internal/service/ratelimit"
	"FinCapture/internal/usecase"
	"FinCapture/pkg/cache"
	pkgch "FinCapture/pkg/clickhouse"
	"FinCapture/pkg/config"
	xhttp "FinCapture/pkg/http"
	pkgkafka "FinCapture/pkg/kafka"
	"FinCapture/pkg/logger"
	"FinCapture/pkg/metrics"
	"FinCapture/pkg/queue"
)

func noop() {}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, noop, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, int(cfg.Kafka.Producer.BatchBytes), cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger and, when enabled, attaches
// the collector that ships aggregated errors to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Logging.Collect.Enabled || producer == nil {
		return l, noop, nil
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   cfg.Logging.Collect.Interval,
		CountThreshold: cfg.Logging.Collect.Threshold,
		Topic:          cfg.Logging.Collect.Topic,
		Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		Levels:         []string{"warn", "error"},
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideRedisCache connects to Redis, or returns nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, noop, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache layers an in-process cache over Redis when available.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if rc == nil {
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxSize),
			cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		)
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MaxSize),
		cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
	)
	return lc, noop
}

func needsClickHouse(cfg *config.Config) bool {
	return cfg.Capture.Backend == usecase.BackendClickHouse ||
		(cfg.Capture.Backend == usecase.BackendKafka && cfg.Capture.Store == usecase.BackendClickHouse)
}

// ProvideClickHouseClient connects and creates the capture schema, or returns
// nil when ClickHouse does not back the capture store.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !needsClickHouse(cfg) {
		return nil, noop, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxConnections, cfg.ClickHouse.MaxConnections/2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CaptureSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCaptureStore opens the store captures are persisted to: directly by
// the scheduler, or by the ingest consumer on the kafka backend.
func ProvideCaptureStore(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) (drepo.CaptureStore, func(), error) {
	if ch != nil {
		s := internalrepo.NewCHCaptureStore(ch, cfg.ClickHouse.Database, l)
		return s, noop, nil
	}
	s, err := internalrepo.NewSQLiteCaptureStore(cfg.SQLite.Path, l)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func ProvideArchiveStore(cfg *config.Config) (drepo.ArchiveStore, error) {
	return internalrepo.NewFileArchiveStore(cfg.Archive.Dir)
}

// ProvidePublisher returns the capture publisher for the kafka backend.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.Publisher {
	if cfg.Capture.Backend != usecase.BackendKafka || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

func ProvideCaptureProcessor(pub drepo.Publisher, store drepo.CaptureStore, m drepo.Metrics, cfg *config.Config) (*usecase.CaptureProcessor, error) {
	return usecase.NewCaptureProcessor(pub, store, m, cfg.Capture.Backend)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Manager {
	policies := make(map[string]ratelimit.Policy)
	for host, rl := range cfg.ProviderRateLimits() {
		policies[host] = ratelimit.Policy{MinInterval: rl.MinInterval, PerMinute: rl.PerMinute, MaxConcurrent: rl.MaxConcurrent}
	}
	return ratelimit.NewManager(policies)
}

// ProvideFetcher builds the market data client behind the per-host limiter.
func ProvideFetcher(cfg *config.Config, limiter *ratelimit.Manager, l *logger.Logger) drepo.Fetcher {
	p := cfg.Provider
	pc := provider.Config{
		SinaURL:       p.SinaURL,
		QuoteURL:      p.QuoteURL,
		HistoryURL:    p.HistoryURL,
		DatacenterURL: p.DatacenterURL,
		KLineType:     models.KLineType(p.KLineType),
		AdjustType:    models.AdjustType(p.AdjustType),
		BarWindowDays: p.BarWindowDays,
		StartDate:     cfg.BarStartDate(),
		ListPageSize:  p.ListPageSize,
		ReportPage:    p.ReportPageSize,
	}
	if p.BaseURL != "" {
		pc.SinaURL, pc.QuoteURL, pc.HistoryURL, pc.DatacenterURL = p.BaseURL, p.BaseURL, p.BaseURL, p.BaseURL
	}
	hc := xhttp.NewClient(
		xhttp.WithTimeout(p.Timeout),
		xhttp.WithLimiter(limiter),
	)
	return provider.New(hc, pc, l)
}

// ProvideSymbolUniverse combines configured symbols with the listings
// captured by the symbol-list category, cached for the configured staleness.
func ProvideSymbolUniverse(cfg *config.Config, store drepo.CaptureStore, c cache.Service, l *logger.Logger) (drepo.SymbolUniverse, error) {
	var parts usecase.UnionUniverse
	if len(cfg.Universe.Symbols) > 0 {
		static, err := usecase.NewStaticUniverse(cfg.Universe.Symbols)
		if err != nil {
			return nil, err
		}
		parts = append(parts, static)
	}
	if cfg.Universe.FromListings {
		parts = append(parts, usecase.NewCaptureUniverse(store, cfg.Boards(), cfg.Universe.ListingWindow))
	}
	return usecase.NewCachedUniverse("tradable", parts, c, cfg.Scheduler.UniverseStaleness, l), nil
}

// ProvideScheduler creates one loop per enabled category. The symbol-list
// loop walks market boards; every other loop walks the tradable universe.
func ProvideScheduler(
	cfg *config.Config,
	universe drepo.SymbolUniverse,
	fetcher drepo.Fetcher,
	proc *usecase.CaptureProcessor,
	m drepo.Metrics,
	l *logger.Logger,
) *usecase.Scheduler {
	boards := usecase.NewBoardUniverse(cfg.Boards())
	var loops []*usecase.CategoryLoop
	for _, spec := range cfg.CategorySpecs() {
		if !spec.Enabled {
			continue
		}
		var u drepo.SymbolUniverse = universe
		if spec.Category == models.CategorySymbolList {
			u = boards
		}
		loops = append(loops, usecase.NewCategoryLoop(spec, u, fetcher, proc, m, l,
			usecase.WithDispatchConcurrency(cfg.Scheduler.DispatchConcurrency),
			usecase.WithFetchTimeout(cfg.Scheduler.FetchTimeout),
		))
	}
	return usecase.NewScheduler(l, loops...)
}

// ProvideArchiver adds the Redis lock when Redis is configured, so merges
// from several processes never write the same archive at once.
func ProvideArchiver(
	cfg *config.Config,
	store drepo.CaptureStore,
	archives drepo.ArchiveStore,
	m drepo.Metrics,
	rc *cache.RedisCache,
	l *logger.Logger,
) *usecase.Archiver {
	opts := []usecase.ArchiverOption{usecase.WithMergeWorkers(cfg.Archive.Workers)}
	if rc != nil {
		opts = append(opts, usecase.WithLocker(rc, cfg.Archive.LockTTL))
	}
	return usecase.NewArchiver(store, archives, m, l.With(logger.String("component", "archiver")), opts...)
}

func ProvideMergeJob(archiver *usecase.Archiver, l *logger.Logger) *usecase.MergeJob {
	return usecase.NewMergeJob(archiver, l)
}

// ProvideQueue returns the merge job queue, or nil when disabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, job *usecase.MergeJob, l *logger.Logger) *queue.RedisQueue {
	if !cfg.Archive.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.QueueConfig{
		Workers:    cfg.Archive.Queue.Workers,
		RetryLimit: cfg.Archive.Queue.RetryLimit,
		RetryDelay: cfg.Archive.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJob(job)
	return q
}

// mergePublisher avoids handing a typed nil to interface consumers.
func mergePublisher(q *queue.RedisQueue) queue.Publisher {
	if q == nil {
		return nil
	}
	return q
}

func ProvideCaptureCollector(
	cfg *config.Config,
	s *usecase.Scheduler,
	proc *usecase.CaptureProcessor,
	archiver *usecase.Archiver,
	q *queue.RedisQueue,
	l *logger.Logger,
) (*usecase.CaptureCollector, error) {
	c := usecase.NewCaptureCollector(s, proc, archiver, mergePublisher(q), l)
	if err := c.ScheduleArchive(cfg.Archive.Cron); err != nil {
		return nil, err
	}
	return c, nil
}

// ProvideKafkaConsumer creates the ingest consumer for the kafka backend.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Capture.Backend != usecase.BackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.LoggingHook(l))
	return consumer, nil
}

func ProvideIngestHandler(cfg *config.Config, store drepo.CaptureStore, m drepo.Metrics) *usecase.KafkaCaptureHandler {
	if cfg.Capture.Backend != usecase.BackendKafka {
		return nil
	}
	return usecase.NewKafkaCaptureHandler(cfg.Kafka.Topic, store, m)
}

func ProvideArchiveHandler(
	l *logger.Logger,
	archives drepo.ArchiveStore,
	archiver *usecase.Archiver,
	s *usecase.Scheduler,
	q *queue.RedisQueue,
	store drepo.CaptureStore,
	rc *cache.RedisCache,
) *api.ArchiveHandler {
	checks := map[string]api.HealthChecker{"captures": store}
	if rc != nil {
		checks["redis"] = rc
	}
	return api.NewArchiveHandler(l, archives, archiver, s, mergePublisher(q), checks)
}

func ProvideHTTPServer(cfg *config.Config, h *api.ArchiveHandler, l *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithLogger(l),
	)
}
