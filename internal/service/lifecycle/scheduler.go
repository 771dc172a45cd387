package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

const (
	defaultSweepInterval  = time.Minute
	defaultSweepBatchSize = 200
	defaultSweepLockTTL   = 30 * time.Second
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dms_lifecycle_sweep_runs_total",
		Help: "Total number of lifecycle sweep runs grouped by result.",
	}, []string{"result"})
	sweepAdvancedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dms_lifecycle_sweep_advanced_total",
		Help: "Total number of domains advanced by lifecycle sweeps.",
	})
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dms_lifecycle_sweep_domain_errors_total",
		Help: "Total number of per-domain errors during lifecycle sweeps.",
	})
	sweepLastAdvanced = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dms_lifecycle_sweep_last_advanced",
		Help: "Number of domains advanced during the last sweep run.",
	})
)

// Locker выдаёт короткоживущую распределённую блокировку, чтобы несколько
// инстансов планировщика не обрабатывали одну пачку одновременно.
type Locker interface {
	// Acquire пытается взять блокировку key на ttl. Возвращает false, если
	// блокировка уже занята другим инстансом.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release снимает блокировку key.
	Release(ctx context.Context, key string) error
}

// SchedulerOptions задаёт параметры планировщика жизненного цикла.
type SchedulerOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	Locker    Locker
	LockTTL   time.Duration
}

// SchedulerOption настраивает Scheduler.
type SchedulerOption func(*SchedulerOptions)

// WithLogger задаёт logger планировщика.
func WithLogger(logger *log.Entry) SchedulerOption {
	return func(opts *SchedulerOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между sweep-циклами.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(opts *SchedulerOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт размер пачки доменов на один sweep.
func WithBatchSize(batchSize int) SchedulerOption {
	return func(opts *SchedulerOptions) {
		opts.BatchSize = batchSize
	}
}

// WithLocker задаёт распределённую блокировку sweep'а.
func WithLocker(locker Locker, ttl time.Duration) SchedulerOption {
	return func(opts *SchedulerOptions) {
		opts.Locker = locker
		opts.LockTTL = ttl
	}
}

// Scheduler периодически продвигает просроченные домены по state machine.
// Переходы вычисляются заново по свежей записи каждого домена; ошибка по
// одному домену не прерывает обработку остальных.
type Scheduler struct {
	domains   domain.DomainRepository
	service   *Service
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	locker    Locker
	lockTTL   time.Duration
}

// NewScheduler создаёт планировщик жизненного цикла.
func NewScheduler(domains domain.DomainRepository, service *Service, options ...SchedulerOption) *Scheduler {
	opts := SchedulerOptions{
		Interval:  defaultSweepInterval,
		BatchSize: defaultSweepBatchSize,
		LockTTL:   defaultSweepLockTTL,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "lifecycle-scheduler")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatchSize
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultSweepLockTTL
	}

	return &Scheduler{
		domains:   domains,
		service:   service,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		locker:    opts.Locker,
		lockTTL:   opts.LockTTL,
	}
}

// Run запускает периодический sweep до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	if s.domains == nil || s.service == nil {
		s.logger.Warn("lifecycle scheduler is disabled: dependencies are nil")
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, "lifecycle:sweep", s.lockTTL)
		if err != nil {
			sweepRunsTotal.WithLabelValues("error").Inc()
			s.logger.WithError(err).Warn("failed to acquire sweep lock")
			return
		}
		if !acquired {
			sweepRunsTotal.WithLabelValues("skipped").Inc()
			s.logger.Debug("sweep lock is held by another instance, skipping")
			return
		}
		defer func() {
			if err := s.locker.Release(ctx, "lifecycle:sweep"); err != nil {
				s.logger.WithError(err).Warn("failed to release sweep lock")
			}
		}()
	}

	advanced, err := s.SweepOnce(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		sweepRunsTotal.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("lifecycle sweep failed")
		return
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepLastAdvanced.Set(float64(advanced))
	if advanced > 0 {
		s.logger.WithField("advanced", advanced).Info("lifecycle sweep completed")
	}
}

// SweepOnce обходит все назревшие домены keyset-курсором пачками batchSize
// и возвращает количество продвинутых доменов. Курсор гарантирует прогресс
// даже когда пачку целиком занимают домены, чей текущий дедлайн ещё не
// настал (grace/redemption могут длиться неделями при истёкшем expires_at).
func (s *Scheduler) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	totalAdvanced := 0
	var cursor domain.DomainCursor
	for {
		if err := ctx.Err(); err != nil {
			return totalAdvanced, err
		}

		due, err := s.domains.ListDue(now, cursor, s.batchSize)
		if err != nil {
			return totalAdvanced, err
		}
		if len(due) == 0 {
			return totalAdvanced, nil
		}

		for _, d := range due {
			if err := ctx.Err(); err != nil {
				return totalAdvanced, err
			}

			// Переходы считаются по свежей записи: между ListDue и обработкой
			// домен мог поменяться (например, принят recovery-платёж).
			fresh, err := s.domains.Get(d.ID)
			if err != nil {
				sweepErrorsTotal.Inc()
				s.logger.WithError(err).WithField("domain_id", d.ID).Warn("failed to reload domain for sweep")
				continue
			}

			_, applied, err := s.service.SweepDomain(fresh, now)
			if err != nil {
				sweepErrorsTotal.Inc()
				s.logger.WithError(err).WithFields(log.Fields{
					"domain_id": d.ID,
					"fqdn":      d.FQDN,
				}).Warn("failed to advance domain lifecycle")
				continue
			}
			if applied > 0 {
				sweepAdvancedTotal.Inc()
				totalAdvanced++
			}
		}

		if len(due) < s.batchSize {
			return totalAdvanced, nil
		}
		// Переходы вперёд не двигают expires_at, поэтому курсор по последнему
		// элементу пачки никогда не вернёт уже обработанный домен.
		last := due[len(due)-1]
		cursor = domain.DomainCursor{ExpiresAt: last.ExpiresAt, ID: last.ID}
	}
}
