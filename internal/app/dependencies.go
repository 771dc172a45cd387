package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/config"
	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/health"
	"github.com/vladislavdragonenkov/dms/internal/locker"
	"github.com/vladislavdragonenkov/dms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
	"github.com/vladislavdragonenkov/dms/internal/service/dns"
	"github.com/vladislavdragonenkov/dms/internal/service/email"
	"github.com/vladislavdragonenkov/dms/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/dms/internal/service/outbox"
	"github.com/vladislavdragonenkov/dms/internal/service/payment"
	"github.com/vladislavdragonenkov/dms/internal/service/recovery"
	"github.com/vladislavdragonenkov/dms/internal/service/registrar"
	"github.com/vladislavdragonenkov/dms/internal/service/saga"
	"github.com/vladislavdragonenkov/dms/internal/storage/memory"
	"github.com/vladislavdragonenkov/dms/internal/storage/postgres"
	"github.com/vladislavdragonenkov/dms/internal/version"
)

// Dependencies собирает зависимости приложения: хранилище, адаптеры,
// сервисы и фоновые воркеры.
type Dependencies struct {
	Config *config.Config
	Logger *log.Entry

	Store    *postgres.Store
	Orders   domain.OrderRepository
	Runs     domain.RunRepository
	Domains  domain.DomainRepository
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository

	Producer *kafka.Producer
	Locker   *locker.RedisLocker

	Metrics      *metrics.ProvisioningMetrics
	Orchestrator saga.Orchestrator
	Lifecycle    *lifecycle.Service
	Scheduler    *lifecycle.Scheduler
	OutboxWorker *outbox.Worker
	Calculator   *recovery.Calculator
	Health       *health.Handler
}

// NewDependencies строит граф зависимостей из конфигурации.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *log.Entry) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Health: health.NewHandler(version.GetVersion()),
	}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.Store = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Runs = postgres.NewRunRepository(store)
		deps.Domains = postgres.NewDomainRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		deps.Health.RegisterChecker("postgres", health.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
		logger.Info("postgres storage initialized")
	} else {
		deps.Orders = memory.NewOrderRepository()
		deps.Runs = memory.NewRunRepository()
		deps.Domains = memory.NewDomainRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Timeline = memory.NewTimelineRepository()
		logger.Warn("POSTGRES_DSN is not set, using in-memory storage")
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			deps.Producer = producer
			logger.WithField("brokers", brokers).Info("kafka producer initialized")
		}
	}

	if cfg.RedisURL != "" {
		redisLocker, err := locker.NewRedisLockerFromURL(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("failed to connect to redis, sweep lock disabled")
		} else {
			deps.Locker = redisLocker
			logger.Info("redis sweep lock initialized")
		}
	}

	deps.Metrics = metrics.NewProvisioningMetrics()
	deps.Calculator = recovery.NewCalculator(cfg.Policy())

	// NOTE: Using mock adapters for development/demo purposes
	// In production, replace with real registrar/email/dns/payment clients
	adapters := saga.Adapters{
		Registrar: registrar.NewMockService(),
		Email:     email.NewMockService(),
		DNS:       dns.NewMockService(),
		Payments:  payment.NewMockService(),
	}

	backoff := saga.DefaultBackoffConfig()
	if cfg.SagaMaxAttempts > 0 {
		backoff.MaxAttempts = cfg.SagaMaxAttempts
	}
	if cfg.SagaInitialBackoffMs > 0 {
		backoff.InitialDelay = time.Duration(cfg.SagaInitialBackoffMs) * time.Millisecond
	}
	timeouts := saga.StepTimeouts{
		Payment:   time.Duration(cfg.PaymentTimeoutSec) * time.Second,
		Registrar: time.Duration(cfg.RegistrarTimeoutSec) * time.Second,
		Email:     time.Duration(cfg.EmailTimeoutSec) * time.Second,
		DNS:       time.Duration(cfg.DNSTimeoutSec) * time.Second,
	}

	orchestratorOptions := []saga.Option{
		saga.WithPolicy(cfg.Policy()),
		saga.WithBackoff(backoff),
		saga.WithStepTimeouts(timeouts),
	}
	if deps.Producer != nil {
		orchestratorOptions = append(orchestratorOptions, saga.WithKafkaProducer(deps.Producer))
	}
	deps.Orchestrator = saga.NewOrchestrator(
		deps.Orders,
		deps.Runs,
		deps.Domains,
		deps.Outbox,
		deps.Timeline,
		adapters,
		logger.WithField("component", "saga"),
		orchestratorOptions...,
	)

	machine := lifecycle.NewMachine(cfg.Policy())
	deps.Lifecycle = lifecycle.NewServiceWithKafka(
		deps.Domains,
		deps.Outbox,
		deps.Timeline,
		machine,
		logger.WithField("component", "lifecycle-service"),
		deps.Metrics,
		deps.Producer,
	)

	schedulerOptions := []lifecycle.SchedulerOption{
		lifecycle.WithLogger(logger.WithField("component", "lifecycle-scheduler")),
		lifecycle.WithInterval(cfg.SweepInterval()),
		lifecycle.WithBatchSize(cfg.SweepBatchSize),
	}
	if deps.Locker != nil {
		schedulerOptions = append(schedulerOptions, lifecycle.WithLocker(deps.Locker, 2*cfg.SweepInterval()))
	}
	deps.Scheduler = lifecycle.NewScheduler(deps.Domains, deps.Lifecycle, schedulerOptions...)

	// Outbox-воркер имеет смысл только при живом Kafka: без producer'а
	// сообщения остаются в pending и будут опубликованы после рестарта.
	if deps.Producer != nil {
		deps.OutboxWorker = outbox.NewWorker(
			deps.Outbox,
			kafka.NewOutboxRouter(deps.Producer),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(deps.Producer, kafka.TopicDeadLetterQueue)),
			outbox.WithPollInterval(cfg.OutboxPollInterval()),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxPublishAttempts),
		)
	}

	return deps, nil
}

// Close освобождает внешние ресурсы в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.Producer != nil {
		if err := d.Producer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			d.Logger.Info("kafka producer closed")
		}
	}
	if d.Locker != nil {
		if err := d.Locker.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
