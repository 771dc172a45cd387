package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvisioningMetrics содержит метрики саги и жизненного цикла доменов.
type ProvisioningMetrics struct {
	// Счётчики run'ов
	runStarted   prometheus.Counter
	runResumed   prometheus.Counter
	runSucceeded prometheus.Counter
	runFailed    prometheus.Counter

	// Гистограммы времени выполнения
	runDuration  prometheus.Histogram
	stepDuration *prometheus.HistogramVec

	// Счётчики шагов
	stepRetries *prometheus.CounterVec

	// Жизненный цикл доменов
	lifecycleTransitions *prometheus.CounterVec
	stalePaymentRejected prometheus.Counter

	// Счётчики событий
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для активных run'ов
	activeRuns prometheus.Gauge
}

// NewProvisioningMetrics создаёт метрики на дефолтном registerer.
func NewProvisioningMetrics() *ProvisioningMetrics {
	return newProvisioningMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newProvisioningMetricsWithRegisterer(registerer prometheus.Registerer) *ProvisioningMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ProvisioningMetrics{
		runStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_provisioning_runs_started_total",
			Help: "Total number of provisioning runs started",
		}),
		runResumed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_provisioning_runs_resumed_total",
			Help: "Total number of failed provisioning runs resumed",
		}),
		runSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_provisioning_runs_succeeded_total",
			Help: "Total number of provisioning runs completed successfully",
		}),
		runFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_provisioning_runs_failed_total",
			Help: "Total number of provisioning runs terminally failed",
		}),
		runDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "dms_provisioning_run_duration_seconds",
			Help:    "Duration of provisioning runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "dms_provisioning_step_duration_seconds",
			Help:    "Duration of individual provisioning steps in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"step"}),
		stepRetries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dms_provisioning_step_retries_total",
			Help: "Total number of transient step retries grouped by step",
		}, []string{"step"}),
		lifecycleTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dms_lifecycle_transitions_total",
			Help: "Total number of domain lifecycle transitions grouped by from/to state",
		}, []string{"from", "to"}),
		stalePaymentRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_lifecycle_stale_payments_total",
			Help: "Total number of recovery payments rejected due to stale window",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dms_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeRuns: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "dms_active_provisioning_runs",
			Help: "Number of currently executing provisioning runs",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordRunStarted увеличивает счётчик запущенных run'ов.
func (m *ProvisioningMetrics) RecordRunStarted() {
	m.runStarted.Inc()
	m.activeRuns.Inc()
}

// RecordRunResumed увеличивает счётчик возобновлённых run'ов.
func (m *ProvisioningMetrics) RecordRunResumed() {
	m.runResumed.Inc()
}

// RecordRunSucceeded увеличивает счётчик успешных run'ов.
func (m *ProvisioningMetrics) RecordRunSucceeded() {
	m.runSucceeded.Inc()
}

// RecordRunFailed увеличивает счётчик провалившихся run'ов.
func (m *ProvisioningMetrics) RecordRunFailed() {
	m.runFailed.Inc()
}

// RecordRunFinished уменьшает количество активных run'ов.
func (m *ProvisioningMetrics) RecordRunFinished() {
	m.activeRuns.Dec()
}

// RecordRunDuration записывает время выполнения run'а.
func (m *ProvisioningMetrics) RecordRunDuration(duration time.Duration) {
	m.runDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага.
func (m *ProvisioningMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStepRetry увеличивает счётчик retry по шагу.
func (m *ProvisioningMetrics) RecordStepRetry(step string) {
	m.stepRetries.WithLabelValues(step).Inc()
}

// RecordTransition фиксирует переход домена между состояниями.
func (m *ProvisioningMetrics) RecordTransition(from, to string) {
	m.lifecycleTransitions.WithLabelValues(from, to).Inc()
}

// RecordStalePayment увеличивает счётчик отклонённых устаревших платежей.
func (m *ProvisioningMetrics) RecordStalePayment() {
	m.stalePaymentRejected.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *ProvisioningMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *ProvisioningMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
