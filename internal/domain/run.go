package domain

import "time"

// RunOutcome описывает исход provisioning run.
type RunOutcome string

const (
	// RunOutcomePending — run создан и исполняется.
	RunOutcomePending RunOutcome = "pending"
	// RunOutcomeSucceeded — все шаги завершены, домен активирован.
	RunOutcomeSucceeded RunOutcome = "succeeded"
	// RunOutcomeFailed — run остановлен терминальной ошибкой шага.
	RunOutcomeFailed RunOutcome = "failed"
)

// StepStatus описывает состояние отдельного шага саги.
type StepStatus string

const (
	// StepStatusPending — шаг ещё не запускался.
	StepStatusPending StepStatus = "pending"
	// StepStatusInProgress — вызов адаптера отправлен, результат не зафиксирован.
	StepStatusInProgress StepStatus = "in_progress"
	// StepStatusCompleted — внешний эффект подтверждён, externalRef записан.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed — последняя попытка шага завершилась ошибкой.
	StepStatusFailed StepStatus = "failed"
)

// StepName задаёт закрытый набор шагов provisioning саги.
type StepName string

const (
	StepCapturePayment StepName = "capture_payment"
	StepRegisterDomain StepName = "register_domain"
	StepProvisionEmail StepName = "provision_email"
	StepConfigureDNS   StepName = "configure_dns"
)

// StepOrder фиксирует строгий порядок исполнения шагов.
var StepOrder = []StepName{
	StepCapturePayment,
	StepRegisterDomain,
	StepProvisionEmail,
	StepConfigureDNS,
}

// StepRecord — один шаг саги. Мутируется только оркестратором.
type StepRecord struct {
	Name     StepName
	Status   StepStatus
	Attempts int
	// LastError хранит текст последней ошибки шага для диагностики.
	LastError string
	// ExternalRef — идентификатор, возвращённый внешней системой при первом
	// успехе. После записи неизменяем: защита от повторной регистрации при retry.
	ExternalRef string
}

// BindExternalRef записывает externalRef шага. Повторная запись другого
// значения запрещена; повторная запись того же значения — no-op.
func (s *StepRecord) BindExternalRef(ref string) error {
	if s.ExternalRef != "" && s.ExternalRef != ref {
		return ErrExternalRefImmutable
	}
	s.ExternalRef = ref
	return nil
}

// ProvisioningRun — одно исполнение саги для заказа.
// Инвариант: не более одного run с Outcome=pending на orderId.
type ProvisioningRun struct {
	ID      string
	OrderID string
	Steps   []StepRecord
	Outcome RunOutcome
	// FailedStep и LastError заполняются при терминальном провале.
	FailedStep StepName
	LastError  string
	Version    int64
	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewProvisioningRun создаёт run с четырьмя pending-шагами в строгом порядке.
func NewProvisioningRun(id, orderID string, now time.Time) ProvisioningRun {
	steps := make([]StepRecord, 0, len(StepOrder))
	for _, name := range StepOrder {
		steps = append(steps, StepRecord{Name: name, Status: StepStatusPending})
	}
	return ProvisioningRun{
		ID:        id,
		OrderID:   orderID,
		Steps:     steps,
		Outcome:   RunOutcomePending,
		StartedAt: now,
	}
}

// Step возвращает указатель на запись шага по имени.
func (r *ProvisioningRun) Step(name StepName) *StepRecord {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Terminal сообщает, завершён ли run.
func (r *ProvisioningRun) Terminal() bool {
	return r.Outcome == RunOutcomeSucceeded || r.Outcome == RunOutcomeFailed
}

// Completed сообщает, что все шаги завершены.
func (r *ProvisioningRun) Completed() bool {
	for i := range r.Steps {
		if r.Steps[i].Status != StepStatusCompleted {
			return false
		}
	}
	return true
}

// FirstIncomplete возвращает первый незавершённый шаг — точку возобновления.
func (r *ProvisioningRun) FirstIncomplete() (*StepRecord, bool) {
	for i := range r.Steps {
		if r.Steps[i].Status != StepStatusCompleted {
			return &r.Steps[i], true
		}
	}
	return nil, false
}
