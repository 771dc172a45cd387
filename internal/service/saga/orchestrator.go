package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
)

const (
	postmasterLocalpart = "postmaster"
	postmasterQuotaMb   = 1024
)

// Orchestrator описывает интерфейс управления provisioning сагой.
type Orchestrator interface {
	// Begin создаёт run для заказа, не исполняя шаги.
	Begin(orderID string) (domain.ProvisioningRun, error)
	// Start создаёт run и синхронно исполняет все шаги.
	Start(ctx context.Context, orderID string) (domain.ProvisioningRun, error)
	// Execute исполняет run с первого незавершённого шага.
	Execute(ctx context.Context, runID string) (domain.ProvisioningRun, error)
	// Resume возобновляет провалившийся run со свежим бюджетом попыток.
	Resume(ctx context.Context, runID string) (domain.ProvisioningRun, error)
}

// ProgressFunc вызывается после каждой смены статуса шага.
type ProgressFunc func(runID string, step domain.StepName, status domain.StepStatus)

// Adapters группирует внешние сервисы, которые вызывает сага.
type Adapters struct {
	Registrar domain.RegistrarService
	Email     domain.EmailProviderService
	DNS       domain.DNSProviderService
	Payments  domain.PaymentService
}

// DNSTemplate — значения записей по умолчанию для configure_dns.
type DNSTemplate struct {
	MXHost      string
	SPFInclude  string
	DMARCPolicy string
}

// DefaultDNSTemplate возвращает шаблон записей по умолчанию.
func DefaultDNSTemplate() DNSTemplate {
	return DNSTemplate{
		MXHost:      "mx1.mail.dms-infra.net",
		SPFInclude:  "spf.dms-infra.net",
		DMARCPolicy: "v=DMARC1; p=quarantine",
	}
}

// Option настраивает оркестратор.
type Option func(*orchestrator)

// WithKafkaProducer включает публикацию событий саги в Kafka.
func WithKafkaProducer(producer *kafka.Producer) Option {
	return func(o *orchestrator) {
		o.kafkaProducer = producer
	}
}

// WithProgress задаёт callback прогресса шагов.
func WithProgress(fn ProgressFunc) Option {
	return func(o *orchestrator) {
		o.progress = fn
	}
}

// WithBackoff задаёт параметры повторов шагов.
func WithBackoff(config BackoffConfig) Option {
	return func(o *orchestrator) {
		o.backoff = config
	}
}

// WithStepTimeouts задаёт таймауты вызовов адаптеров.
func WithStepTimeouts(timeouts StepTimeouts) Option {
	return func(o *orchestrator) {
		o.timeouts = timeouts
	}
}

// WithPolicy задаёт таблицу политики для расчёта тарифа нового домена.
func WithPolicy(policy domain.LifecyclePolicy) Option {
	return func(o *orchestrator) {
		o.policy = policy.Normalize()
	}
}

// WithDNSTemplate задаёт шаблон DNS-записей по умолчанию.
func WithDNSTemplate(template DNSTemplate) Option {
	return func(o *orchestrator) {
		o.dns = template
	}
}

// WithoutMetrics отключает метрики (для тестов).
func WithoutMetrics() Option {
	return func(o *orchestrator) {
		o.metrics = nil
	}
}

// orchestrator исполняет последовательность шагов: capture_payment →
// register_domain → provision_email → configure_dns.
type orchestrator struct {
	orders   domain.OrderRepository
	runs     domain.RunRepository
	domains  domain.DomainRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	adapters Adapters

	logger        *log.Entry
	metrics       *metrics.ProvisioningMetrics
	kafkaProducer *kafka.Producer
	progress      ProgressFunc

	policy   domain.LifecyclePolicy
	backoff  BackoffConfig
	timeouts StepTimeouts
	dns      DNSTemplate
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	orders domain.OrderRepository,
	runs domain.RunRepository,
	domains domain.DomainRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	adapters Adapters,
	logger *log.Entry,
	options ...Option,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "saga")
	}
	o := &orchestrator{
		orders:   orders,
		runs:     runs,
		domains:  domains,
		outbox:   outbox,
		timeline: timeline,
		adapters: adapters,
		logger:   logger,
		metrics:  metrics.NewProvisioningMetrics(),
		policy:   domain.DefaultLifecyclePolicy(),
		backoff:  DefaultBackoffConfig(),
		timeouts: DefaultStepTimeouts(),
		dns:      DefaultDNSTemplate(),
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// stepContext переносит промежуточные результаты шагов в пределах одного
// исполнения: срок регистрации и DKIM-ключ. При возобновлении после рестарта
// значения теряются, finish и configure_dns умеют работать без них.
type stepContext struct {
	registration domain.Registration
	dkim         *domain.DKIMKey
}

// Begin создаёт run для заказа и помечает заказ как исполняющийся.
// Инвариант "не более одного незавершённого run на заказ" обеспечивает
// репозиторий через ErrRunAlreadyActive.
func (o *orchestrator) Begin(orderID string) (domain.ProvisioningRun, error) {
	order, err := o.orders.Get(orderID)
	if err != nil {
		return domain.ProvisioningRun{}, err
	}

	run := domain.NewProvisioningRun(uuid.NewString(), order.ID, time.Now().UTC())
	if err := o.runs.Create(run); err != nil {
		return domain.ProvisioningRun{}, err
	}

	if err := o.orders.SetFulfillmentStatus(order.ID, domain.FulfillmentInProgress); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to mark order in progress")
	}

	if o.metrics != nil {
		o.metrics.RecordRunStarted()
	}
	o.emitRunEvent(&run, kafka.EventTypeRunStarted, map[string]interface{}{
		"order_id": order.ID,
		"fqdn":     order.FQDN,
	})

	o.logger.WithFields(log.Fields{
		"run_id":   run.ID,
		"order_id": order.ID,
		"fqdn":     order.FQDN,
	}).Info("provisioning run started")

	return run, nil
}

// Start создаёт run и синхронно исполняет его до терминального исхода.
func (o *orchestrator) Start(ctx context.Context, orderID string) (domain.ProvisioningRun, error) {
	run, err := o.Begin(orderID)
	if err != nil {
		return domain.ProvisioningRun{}, err
	}
	return o.Execute(ctx, run.ID)
}

// Execute исполняет run с первого незавершённого шага. Завершённые шаги
// никогда не вызываются повторно.
func (o *orchestrator) Execute(ctx context.Context, runID string) (domain.ProvisioningRun, error) {
	run, err := o.runs.Get(runID)
	if err != nil {
		return domain.ProvisioningRun{}, err
	}
	if run.Terminal() {
		return run, domain.ErrRunTerminal
	}

	order, err := o.orders.Get(run.OrderID)
	if err != nil {
		return run, err
	}

	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordRunFinished()
			o.metrics.RecordRunDuration(time.Since(start))
		}
	}()

	sc := &stepContext{}
	for i := range run.Steps {
		step := &run.Steps[i]
		if step.Status == domain.StepStatusCompleted {
			continue
		}

		if err := o.runStep(ctx, &run, order, step, sc); err != nil {
			if failErr := o.failRun(&run, order, step.Name, err); failErr != nil {
				return run, failErr
			}
			return run, nil
		}
	}

	if err := o.finishRun(&run, order, sc); err != nil {
		return run, err
	}
	return run, nil
}

// Resume возобновляет провалившийся run: исход сбрасывается в pending,
// незавершённые шаги получают свежий бюджет попыток, исполнение продолжается
// с первого незавершённого шага.
func (o *orchestrator) Resume(ctx context.Context, runID string) (domain.ProvisioningRun, error) {
	run, err := o.runs.Get(runID)
	if err != nil {
		return domain.ProvisioningRun{}, err
	}
	if run.Outcome == domain.RunOutcomeSucceeded {
		return run, domain.ErrRunTerminal
	}

	if run.Outcome == domain.RunOutcomeFailed {
		run.Outcome = domain.RunOutcomePending
		run.FailedStep = ""
		run.FinishedAt = nil
		for i := range run.Steps {
			if run.Steps[i].Status == domain.StepStatusFailed {
				run.Steps[i].Attempts = 0
			}
		}
		if err := o.saveRun(&run); err != nil {
			return run, err
		}
	}

	if o.metrics != nil {
		o.metrics.RecordRunResumed()
		o.metrics.RecordRunStarted()
	}
	o.logger.WithFields(log.Fields{
		"run_id":   run.ID,
		"order_id": run.OrderID,
	}).Info("provisioning run resumed")

	return o.Execute(ctx, runID)
}

// runStep исполняет один шаг с учётом guard'а: шаг запускается только из
// pending или failed с оставшимся бюджетом попыток. Найденный in_progress шаг
// сначала проверяется через lookup probe, а не повторяется вслепую.
func (o *orchestrator) runStep(ctx context.Context, run *domain.ProvisioningRun, order domain.DomainOrder, step *domain.StepRecord, sc *stepContext) error {
	if step.Status == domain.StepStatusInProgress {
		ref, found, err := o.verify(ctx, order, step.Name)
		if err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"run_id": run.ID,
				"step":   string(step.Name),
			}).Warn("verification probe failed, falling back to retry")
		} else if found {
			o.logger.WithFields(log.Fields{
				"run_id": run.ID,
				"step":   string(step.Name),
				"ref":    ref,
			}).Info("in-progress step confirmed by probe")
			return o.completeStep(run, step, ref)
		}
	}

	for {
		if step.Attempts >= o.backoff.MaxAttempts {
			return fmt.Errorf("step %s exhausted %d attempts: %s", step.Name, step.Attempts, step.LastError)
		}

		if delay := o.backoff.Delay(step.Attempts + 1); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		// Сначала фиксируем in_progress, затем зовём адаптер: после сбоя
		// процесса шаг будет найден как in_progress и проверен probe'ом.
		step.Status = domain.StepStatusInProgress
		step.Attempts++
		if err := o.saveRun(run); err != nil {
			return err
		}
		o.notifyProgress(run.ID, step.Name, domain.StepStatusInProgress)

		stepStart := time.Now()
		ref, err := o.invoke(ctx, order, step.Name, sc)
		if o.metrics != nil {
			o.metrics.RecordStepDuration(string(step.Name), time.Since(stepStart))
		}

		if err != nil && isTimeout(err) {
			// Таймаут с возможным внешним эффектом: спрашиваем систему,
			// выполнилась ли операция, прежде чем повторять.
			if probeRef, found, probeErr := o.verify(ctx, order, step.Name); probeErr == nil && found {
				ref, err = probeRef, nil
			}
		}

		if err == nil {
			return o.completeStep(run, step, ref)
		}

		step.LastError = err.Error()
		if nonRetryable(err) {
			step.Status = domain.StepStatusFailed
			if saveErr := o.saveRun(run); saveErr != nil {
				return saveErr
			}
			o.notifyProgress(run.ID, step.Name, domain.StepStatusFailed)
			o.emitStepEvent(run, step, kafka.EventTypeStepFailed)
			return err
		}

		step.Status = domain.StepStatusFailed
		if saveErr := o.saveRun(run); saveErr != nil {
			return saveErr
		}
		if o.metrics != nil {
			o.metrics.RecordStepRetry(string(step.Name))
		}
		o.logger.WithError(err).WithFields(log.Fields{
			"run_id":  run.ID,
			"step":    string(step.Name),
			"attempt": step.Attempts,
		}).Warn("transient step failure, will retry")
	}
}

// completeStep реализует persist-then-mark: externalRef сохраняется до того,
// как шаг помечается completed.
func (o *orchestrator) completeStep(run *domain.ProvisioningRun, step *domain.StepRecord, ref string) error {
	if ref != "" {
		if err := step.BindExternalRef(ref); err != nil {
			return err
		}
		if err := o.saveRun(run); err != nil {
			return err
		}
	}

	step.Status = domain.StepStatusCompleted
	step.LastError = ""
	if err := o.saveRun(run); err != nil {
		return err
	}

	o.notifyProgress(run.ID, step.Name, domain.StepStatusCompleted)
	o.emitStepEvent(run, step, kafka.EventTypeStepCompleted)
	return nil
}

// invoke зовёт внешний адаптер шага с его таймаутом и возвращает externalRef.
func (o *orchestrator) invoke(ctx context.Context, order domain.DomainOrder, name domain.StepName, sc *stepContext) (string, error) {
	switch name {
	case domain.StepCapturePayment:
		callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Payment)
		defer cancel()
		result, err := o.adapters.Payments.Capture(callCtx, order.ID, order.AmountMinor, order.Currency)
		if err != nil {
			return "", err
		}
		if !result.Captured {
			return "", domain.ErrPaymentNotCaptured
		}
		return result.Ref, nil

	case domain.StepRegisterDomain:
		callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Registrar)
		defer cancel()
		// Предварительная проверка доступности только перед первой попыткой:
		// после таймаута имя может быть занято нашей же заявкой.
		if sc.registration.Ref == "" {
			available, err := o.adapters.Registrar.CheckAvailability(callCtx, order.FQDN)
			if err != nil {
				return "", err
			}
			if !available {
				return "", domain.ErrNameTaken
			}
		}
		registration, err := o.adapters.Registrar.Register(callCtx, order.FQDN, order.Years)
		if err != nil {
			return "", err
		}
		sc.registration = registration
		return registration.Ref, nil

	case domain.StepProvisionEmail:
		callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Email)
		defer cancel()
		emailDomain, err := o.adapters.Email.CreateDomain(callCtx, order.FQDN)
		if err != nil {
			return "", err
		}
		sc.dkim = emailDomain.DKIM
		if _, err := o.adapters.Email.CreateMailbox(callCtx, order.FQDN, postmasterLocalpart, postmasterQuotaMb, uuid.NewString()); err != nil {
			return "", err
		}
		return emailDomain.Ref, nil

	case domain.StepConfigureDNS:
		callCtx, cancel := context.WithTimeout(ctx, o.timeouts.DNS)
		defer cancel()
		defaults := domain.DNSDefaults{
			FQDN:        order.FQDN,
			MXHost:      o.dns.MXHost,
			SPFInclude:  o.dns.SPFInclude,
			DMARCPolicy: o.dns.DMARCPolicy,
		}
		if sc.dkim != nil {
			defaults.DKIMTXT = sc.dkim.Value
		}
		if err := o.adapters.DNS.ApplyDefaults(callCtx, defaults); err != nil {
			return "", err
		}
		return "", nil

	default:
		return "", fmt.Errorf("unknown saga step %q", name)
	}
}

// verify — проверка "возможно, уже выполнено" для шагов с внешним эффектом,
// у которых есть lookup probe. Для остальных шагов повтор безопасен.
func (o *orchestrator) verify(ctx context.Context, order domain.DomainOrder, name domain.StepName) (string, bool, error) {
	switch name {
	case domain.StepRegisterDomain:
		callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Registrar)
		defer cancel()
		return o.adapters.Registrar.Lookup(callCtx, order.FQDN)
	case domain.StepProvisionEmail:
		callCtx, cancel := context.WithTimeout(ctx, o.timeouts.Email)
		defer cancel()
		return o.adapters.Email.LookupDomain(callCtx, order.FQDN)
	default:
		return "", false, nil
	}
}

// finishRun фиксирует успех: run помечается succeeded, создаётся запись
// домена в статусе active, заказ помечается fulfilled.
func (o *orchestrator) finishRun(run *domain.ProvisioningRun, order domain.DomainOrder, sc *stepContext) error {
	now := time.Now().UTC()
	run.Outcome = domain.RunOutcomeSucceeded
	run.FailedStep = ""
	run.LastError = ""
	run.FinishedAt = &now
	if err := o.saveRun(run); err != nil {
		return err
	}

	if err := o.createDomain(run, order, sc, now); err != nil {
		return err
	}

	if err := o.orders.SetFulfillmentStatus(order.ID, domain.FulfillmentDone); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to mark order fulfilled")
	}

	if o.metrics != nil {
		o.metrics.RecordRunSucceeded()
	}
	o.emitRunEvent(run, kafka.EventTypeRunSucceeded, map[string]interface{}{
		"order_id": order.ID,
		"fqdn":     order.FQDN,
	})

	o.logger.WithFields(log.Fields{
		"run_id":   run.ID,
		"order_id": order.ID,
		"fqdn":     order.FQDN,
	}).Info("provisioning run succeeded")
	return nil
}

// createDomain создаёт запись домена. Повторное завершение того же run'а
// (resume после сбоя между сохранением run и созданием домена) идемпотентно.
func (o *orchestrator) createDomain(run *domain.ProvisioningRun, order domain.DomainOrder, sc *stepContext, now time.Time) error {
	if _, err := o.domains.GetByFQDN(order.FQDN); err == nil {
		o.logger.WithFields(log.Fields{
			"run_id": run.ID,
			"fqdn":   order.FQDN,
		}).Debug("domain record already exists, skipping creation")
		return nil
	} else if !errors.Is(err, domain.ErrDomainNotFound) {
		return err
	}

	expiresAt := sc.registration.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(time.Duration(order.Years) * o.policy.RenewalPeriod())
	}

	currency := order.Currency
	if currency == "" {
		currency = o.policy.Currency
	}

	d := domain.Domain{
		ID:              uuid.NewString(),
		CustomerID:      order.CustomerID,
		FQDN:            order.FQDN,
		RegistrarStatus: domain.StatusActive,
		ExpiresAt:       expiresAt,
		MonthlyFeeMinor: o.policy.MonthlyFeeFor(order.PlanCode),
		Currency:        currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.domains.Create(d); err != nil {
		if errors.Is(err, domain.ErrDomainAlreadyExists) {
			return nil
		}
		return err
	}

	if o.metrics != nil {
		o.metrics.RecordTransition("", string(domain.StatusActive))
	}
	o.emitDomainActivated(d, run)
	return nil
}

// failRun фиксирует терминальный провал run'а. Завершённые шаги не
// откатываются: их внешние эффекты остаются и переиспользуются при resume.
func (o *orchestrator) failRun(run *domain.ProvisioningRun, order domain.DomainOrder, failedStep domain.StepName, rootErr error) error {
	now := time.Now().UTC()
	run.Outcome = domain.RunOutcomeFailed
	run.FailedStep = failedStep
	run.LastError = rootErr.Error()
	run.FinishedAt = &now
	if err := o.saveRun(run); err != nil {
		return err
	}

	if err := o.orders.SetFulfillmentStatus(order.ID, domain.FulfillmentFailed); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to mark order failed")
	}

	if o.metrics != nil {
		o.metrics.RecordRunFailed()
	}
	o.emitRunEvent(run, kafka.EventTypeRunFailed, map[string]interface{}{
		"order_id":    order.ID,
		"failed_step": string(failedStep),
		"reason":      rootErr.Error(),
	})

	o.logger.WithError(rootErr).WithFields(log.Fields{
		"run_id":      run.ID,
		"order_id":    order.ID,
		"failed_step": string(failedStep),
	}).Warn("provisioning run failed")
	return nil
}

// saveRun сохраняет run и синхронизирует локальную версию после успешного CAS.
func (o *orchestrator) saveRun(run *domain.ProvisioningRun) error {
	if err := o.runs.Save(*run); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"run_id":  run.ID,
			"version": run.Version,
		}).Error("failed to persist provisioning run")
		return err
	}
	run.Version++
	return nil
}

func (o *orchestrator) notifyProgress(runID string, step domain.StepName, status domain.StepStatus) {
	if o.progress != nil {
		o.progress(runID, step, status)
	}
}

func (o *orchestrator) emitStepEvent(run *domain.ProvisioningRun, step *domain.StepRecord, eventType kafka.EventType) {
	metadata := map[string]interface{}{
		"step":     string(step.Name),
		"attempts": step.Attempts,
	}
	if step.ExternalRef != "" {
		metadata["external_ref"] = step.ExternalRef
	}
	if step.LastError != "" {
		metadata["reason"] = step.LastError
	}
	o.emitRunEvent(run, eventType, metadata)
}

// emitRunEvent пишет событие run'а в outbox и timeline и публикует его в
// Kafka. Побочные ошибки логируются и не прерывают сагу.
func (o *orchestrator) emitRunEvent(run *domain.ProvisioningRun, eventType kafka.EventType, metadata map[string]interface{}) {
	event := kafka.NewProvisioningEvent(eventType, run.ID, run.OrderID, metadata)

	if o.outbox != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			o.logger.WithError(err).WithField("run_id", run.ID).Error("marshal run event failed")
			return
		}
		msg := domain.OutboxMessage{
			AggregateType: "provisioning_run",
			AggregateID:   run.ID,
			EventType:     string(eventType),
			Payload:       payload,
		}
		if _, err := o.outbox.Enqueue(msg); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"run_id": run.ID,
				"event":  string(eventType),
			}).Error("enqueue run event failed")
		} else if o.metrics != nil {
			o.metrics.RecordOutboxEvent()
		}
	}

	if o.timeline != nil {
		reason, _ := metadata["reason"].(string)
		timelineEvent := domain.TimelineEvent{
			AggregateID: run.ID,
			Type:        string(eventType),
			Reason:      reason,
			Occurred:    event.Timestamp,
		}
		if err := o.timeline.Append(timelineEvent); err != nil {
			o.logger.WithError(err).WithField("run_id", run.ID).Warn("append timeline event failed")
		} else if o.metrics != nil {
			o.metrics.RecordTimelineEvent()
		}
	}

	if o.kafkaProducer != nil {
		if err := o.kafkaProducer.PublishEvent(kafka.TopicProvisioningEvents, run.OrderID, event); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"run_id": run.ID,
				"event":  string(eventType),
			}).Warn("failed to publish saga event to kafka")
		}
	}
}

func (o *orchestrator) emitDomainActivated(d domain.Domain, run *domain.ProvisioningRun) {
	event := kafka.NewLifecycleEvent(kafka.EventTypeDomainActivated, d.ID, d.FQDN, string(d.RegistrarStatus), map[string]interface{}{
		"run_id":     run.ID,
		"expires_at": d.ExpiresAt,
	})

	if o.outbox != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			o.logger.WithError(err).WithField("domain_id", d.ID).Error("marshal lifecycle event failed")
			return
		}
		msg := domain.OutboxMessage{
			AggregateType: "domain",
			AggregateID:   d.ID,
			EventType:     string(kafka.EventTypeDomainActivated),
			Payload:       payload,
		}
		if _, err := o.outbox.Enqueue(msg); err != nil {
			o.logger.WithError(err).WithField("domain_id", d.ID).Error("enqueue lifecycle event failed")
		} else if o.metrics != nil {
			o.metrics.RecordOutboxEvent()
		}
	}

	if o.kafkaProducer != nil {
		if err := o.kafkaProducer.PublishEvent(kafka.TopicLifecycleEvents, d.ID, event); err != nil {
			o.logger.WithError(err).WithField("domain_id", d.ID).Warn("failed to publish lifecycle event to kafka")
		}
	}
}

// nonRetryable отделяет бизнес-отказы от временных сбоев. Неизвестные ошибки
// по умолчанию считаются временными. Явная пометка MarkTransient сильнее
// бизнес-сентинела: адаптер может вернуть "отказ, но провайдер просит
// повторить", и такую ошибку сага повторяет.
func nonRetryable(err error) bool {
	if domain.IsTransient(err) {
		return false
	}
	return errors.Is(err, domain.ErrNameTaken) ||
		errors.Is(err, domain.ErrPaymentDeclined) ||
		errors.Is(err, domain.ErrPaymentNotCaptured) ||
		errors.Is(err, domain.ErrExternalRefImmutable)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

var _ Orchestrator = (*orchestrator)(nil)
