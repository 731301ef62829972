package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/handler/api"
	internalrepo "github.com/saltymaverick/Chloe-alpha-sub002/internal/repository"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/service/ratelimit"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/confidence"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/drift"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/regime"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/risk"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/signals"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/services/sizing"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/usecase"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/cache"
	pkgch "github.com/saltymaverick/Chloe-alpha-sub002/pkg/clickhouse"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
	xhttp "github.com/saltymaverick/Chloe-alpha-sub002/pkg/http"
	pkgkafka "github.com/saltymaverick/Chloe-alpha-sub002/pkg/kafka"
	applogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/metrics"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry every collector registers on.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pkgkafka.SetMetricsRegisterer(reg)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideClickHouseClient connects to ClickHouse when it backs the trade
// history. It returns a nil client for the in-memory backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.History.Backend != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecution),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideHistory selects the trade ledger the drift detector reads. The
// ClickHouse ledger sits behind a circuit breaker.
func ProvideHistory(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.HistoryReader, error) {
	if ch == nil {
		return internalrepo.NewMemoryLedger(), nil
	}

	ledger := internalrepo.NewClickHouseLedger(ch, cfg.ClickHouse.TradesTable, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}, ledger.Schema()...)
	if err := ch.InitSchema(ctx, stmts); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return internalrepo.NewBreakerHistory(ledger, cfg.History.Breaker.MaxFailures, cfg.History.Breaker.OpenTimeout, l), nil
}

// ProvideCache returns Redis when enabled and an in-process cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMaxSize(10_000)), func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

func ProvideSnapshotStore(c cache.Service, cfg *config.Config) repository.SnapshotStore {
	return internalrepo.NewCacheSnapshotStore(c, cfg.Redis.TTL)
}

// ProvideDecisionPublisher writes decisions to Kafka, or to the log when no
// broker is configured.
func ProvideDecisionPublisher(cfg *config.Config, l *applogger.Logger) (repository.DecisionPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NewLogPublisher(l), func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionsTopic)
	return pub, func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close", applogger.Error(err))
		}
	}, nil
}

func ProvideRiskGate(cfg *config.Config) *risk.Gate {
	return risk.NewGate(cfg.Risk)
}

// ProvidePipeline builds the compute steps from the shared pipeline config.
func ProvidePipeline(cfg *config.Config) usecase.Pipeline {
	pc := cfg.Pipeline
	return usecase.Pipeline{
		Aggregator: signals.NewAggregator(pc.Signals),
		Classifier: regime.NewClassifier(pc.Regime),
		Drift:      drift.NewDetector(pc.Drift),
		Confidence: confidence.NewEngine(pc.Weights, pc.Confidence),
		Sizer:      sizing.NewSizer(pc.Sizing),
	}
}

func ProvideTickProcessor(
	cfg *config.Config,
	pipe usecase.Pipeline,
	history repository.HistoryReader,
	pub repository.DecisionPublisher,
	snaps repository.SnapshotStore,
	gate *risk.Gate,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TickProcessor {
	return usecase.NewTickProcessor(pipe, cfg.Pipeline, cfg.History.Lookback, history, pub,
		usecase.WithRiskGate(gate),
		usecase.WithSnapshotStore(snaps),
		usecase.WithMetrics(m),
		usecase.WithLogger(l.With(applogger.String("component", "tick_processor"))),
	)
}

// ProvideKafkaConsumer creates the signal consumer. It returns nil when Kafka
// is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

// ProvideSignalTicksHandler returns the handler for the signals topic, or nil
// when Kafka is disabled.
func ProvideSignalTicksHandler(cfg *config.Config, proc *usecase.TickProcessor, m repository.Metrics) pkgkafka.MessageHandler {
	if !cfg.Kafka.Enabled {
		return nil
	}
	return usecase.NewSignalTicksHandler(cfg.Kafka.SignalsTopic, proc, m)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.TickRPS, cfg.Server.TickBurst)
}

// ProvideHealthChecks probes the snapshot cache and, when used, ClickHouse.
func ProvideHealthChecks(c cache.Service, ch *pkgch.Client) []api.HealthCheck {
	checks := []api.HealthCheck{{Name: "cache", Check: c.Ping}}
	if ch != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: ch.Health})
	}
	return checks
}

func ProvideHTTPHandler(
	l *applogger.Logger,
	proc *usecase.TickProcessor,
	snaps repository.SnapshotStore,
	limiter *ratelimit.Limiter,
	checks []api.HealthCheck,
) xhttp.Handler {
	return api.NewDecisionsEchoHandler(l, proc, proc, snaps, limiter, checks...)
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l.With(applogger.String("component", "http"))),
		xhttp.WithPrometheus(reg, reg),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
) *server.App {
	return server.New(l, srv, consumer, kh)
}
