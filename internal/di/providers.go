package di

import (
	"context"
	"fmt"
	"time"

	"FinForecast/internal/dataset"
	"FinForecast/internal/domain/models"
	"FinForecast/internal/domain/repository"
	"FinForecast/internal/handler/api"
	"FinForecast/internal/handler/ws"
	internalrepo "FinForecast/internal/repository"
	"FinForecast/internal/service/ratelimit"
	"FinForecast/internal/training"
	"FinForecast/internal/usecase"
	"FinForecast/pkg/cache"
	pkgch "FinForecast/pkg/clickhouse"
	"FinForecast/pkg/config"
	xhttp "FinForecast/pkg/http"
	pkgkafka "FinForecast/pkg/kafka"
	applogger "FinForecast/pkg/logger"
	"FinForecast/pkg/metrics"
	"FinForecast/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideRegistry creates the Prometheus registry every collector in the
// process registers on.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID(cfg.Kafka.ClientID),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger creates the application logger. With log.collector enabled,
// repeated errors are aggregated and shipped through the Kafka producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Log.Collector.Topic,
			Service:        "finforecast",
			Publisher:      producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideClickHouseClient creates a ClickHouse client and the trial tables,
// or nil when clickhouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.TrialSchema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache creates the report cache: in-process, or Redis behind a
// small in-process layer.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		lc := cache.NewLayeredCache(rc, cfg.Cache.Memory.MaxSize, time.Minute)
		return lc, func() { _ = lc.Close() }, nil
	default:
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.Memory.MaxSize),
			cache.WithMemoryDefaultTTL(cfg.Cache.ReportTTL),
		)
		return mc, func() { _ = mc.Close() }, nil
	}
}

// ProvideReportStore keeps reports in the cache for the API.
func ProvideReportStore(c cache.Service, cfg *config.Config) *internalrepo.CacheReportStore {
	return internalrepo.NewCacheReportStore(c, cfg.Cache.ReportTTL)
}

// ProvideCandleSource selects the configured history source.
func ProvideCandleSource(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.CandleSource, error) {
	switch cfg.Source.Type {
	case "clickhouse":
		if ch == nil {
			return nil, models.NewConfigError("source.type", "clickhouse source requires clickhouse.enabled")
		}
		from, to, err := cfg.SourceRange()
		if err != nil {
			return nil, err
		}
		if to.IsZero() {
			to = time.Now().UTC()
		}
		src := internalrepo.NewCHCandleSource(ch, cfg.Pipeline.Symbol, repository.NormalizeTimeframe(cfg.Source.Timeframe), from, to)
		src.SetLogger(l)
		return src, nil
	default:
		paths := []string{cfg.Source.TrainPath}
		if cfg.Source.TestPath != "" {
			paths = append(paths, cfg.Source.TestPath)
		}
		src := internalrepo.NewCSVCandleSource(cfg.Pipeline.Symbol, paths...)
		src.SetLogger(l)
		return src, nil
	}
}

// ProvideReportSinks lists every enabled sink. The cache store is always
// first so the API sees the report even if a remote sink fails.
func ProvideReportSinks(
	store *internalrepo.CacheReportStore,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	cfg *config.Config,
) []repository.ReportSink {
	sinks := []repository.ReportSink{store}
	if ch != nil {
		sinks = append(sinks, internalrepo.NewCHTrialSink(ch))
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportTopic, cfg.Kafka.SummaryTopic))
	}
	return sinks
}

// ProvideHub creates the websocket progress hub.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l, 30*time.Second)
}

// ProvidePipeline maps the configuration onto the forecasting use case.
func ProvidePipeline(
	cfg *config.Config,
	source repository.CandleSource,
	sinks []repository.ReportSink,
	hub *ws.Hub,
	rec *metrics.Recorder,
	l *applogger.Logger,
) (*usecase.ForecastPipeline, error) {
	variants, err := cfg.Variants()
	if err != nil {
		return nil, err
	}
	split := dataset.Ratios{
		Train: cfg.Pipeline.Split.Train,
		Val:   cfg.Pipeline.Split.Val,
		Test:  cfg.Pipeline.Split.Test,
	}
	grid := training.Grid{
		HiddenWidth:  cfg.Search.Grid.HiddenWidth,
		Depth:        cfg.Search.Grid.Depth,
		DropoutRate:  cfg.Search.Grid.DropoutRate,
		LearningRate: cfg.Search.Grid.LearningRate,
		BatchSize:    cfg.Search.Grid.BatchSize,
	}
	pc := usecase.PipelineConfig{
		Symbol:          cfg.Pipeline.Symbol,
		WindowSize:      cfg.Pipeline.WindowSize,
		Split:           split,
		Variants:        variants,
		Grid:            grid,
		SearchEpochs:    cfg.Search.Epochs,
		FinalEpochs:     cfg.Training.Epochs,
		Workers:         cfg.Search.Workers,
		Seed:            cfg.Pipeline.Seed,
		GradientClip:    cfg.Training.GradientClip,
		KeepPredictions: cfg.Pipeline.KeepPredictions,
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	return usecase.NewForecastPipeline(pc, source, sinks, hub, rec, l), nil
}

// ProvideRateLimiter creates the per-client API limiter and starts dropping
// idle client buckets; the cleanup stops it.
func ProvideRateLimiter(cfg *config.Config) (*ratelimit.Limiter, func()) {
	l := ratelimit.New(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond)
	idle := cfg.Server.RateLimit.IdleTTL
	ctx, cancel := context.WithCancel(context.Background())
	go l.PruneEvery(ctx, max(idle/2, time.Second), idle)
	return l, cancel
}

// ProvideRunsHandler creates the report API with health checks for every
// enabled dependency.
func ProvideRunsHandler(
	l *applogger.Logger,
	store *internalrepo.CacheReportStore,
	limiter *ratelimit.Limiter,
	c cache.Service,
	ch *pkgch.Client,
) *api.RunsHandler {
	checks := map[string]api.HealthCheck{
		"cache": func(ctx context.Context) error {
			_, err := c.Exists(ctx, "healthz")
			return err
		},
	}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	return api.NewRunsHandler(l, store, limiter, checks)
}

// ProvideHTTPServer creates the report server, or nil when server.enabled
// is false.
func ProvideHTTPServer(
	cfg *config.Config,
	runs *api.RunsHandler,
	hub *ws.Hub,
	reg *prometheus.Registry,
	l *applogger.Logger,
) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path))
	}
	return xhttp.NewServer([]xhttp.Handler{runs, hub}, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.ForecastPipeline,
	srv *xhttp.Server,
	hub *ws.Hub,
) *server.App {
	return server.New(cfg, l, pipeline, srv, hub)
}
