package lifecycle

import (
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// Transition описывает один применённый переход state machine.
type Transition struct {
	From domain.RegistrarStatus
	To   domain.RegistrarStatus
	// At — дедлайн, истечение которого вызвало переход.
	At time.Time
}

// Machine реализует state machine жизненного цикла домена поверх таблицы
// политики. Все методы чистые: мутируют копию и возвращают её, запись в
// хранилище — забота вызывающего.
type Machine struct {
	policy domain.LifecyclePolicy
}

// NewMachine создаёт state machine с нормализованной политикой.
func NewMachine(policy domain.LifecyclePolicy) *Machine {
	return &Machine{policy: policy.Normalize()}
}

// Policy возвращает таблицу политики машины.
func (m *Machine) Policy() domain.LifecyclePolicy {
	return m.policy
}

// Advance применяет все назревшие переходы вперёд, по одному состоянию за
// шаг: ни одно состояние не пропускается, каждый переход фиксируется.
// Движение только по сравнению now с единственным дедлайном текущего
// состояния.
func (m *Machine) Advance(d domain.Domain, now time.Time) (domain.Domain, []Transition) {
	var transitions []Transition

	for {
		deadline, ok := d.Deadline(m.policy)
		if !ok || now.Before(deadline) {
			break
		}

		from := d.RegistrarStatus
		switch d.RegistrarStatus {
		case domain.StatusActive:
			graceUntil := d.ExpiresAt.Add(m.policy.GraceWindow())
			d.GraceUntil = &graceUntil
			d.RegistrarStatus = domain.StatusGrace
		case domain.StatusGrace:
			redemptionUntil := deadline.Add(m.policy.RedemptionWindow())
			d.RedemptionUntil = &redemptionUntil
			d.RegistrarStatus = domain.StatusRedemption
		case domain.StatusRedemption:
			d.RegistrarStatus = domain.StatusRegistryHold
		case domain.StatusRegistryHold:
			d.RegistrarStatus = domain.StatusAuction
		case domain.StatusAuction:
			d.RegistrarStatus = domain.StatusReleased
		default:
			return d, transitions
		}

		d.UpdatedAt = now
		transitions = append(transitions, Transition{From: from, To: d.RegistrarStatus, At: deadline})
	}

	return d, transitions
}

// ApplyRecoveryPayment применяет платёжное событие: возврат в active с
// пересчётом expiresAt и очисткой оконных полей. Платёж принимается только
// в grace, redemption, registry_hold и auction и только строго до дедлайна
// окна: в сам момент дедлайна право на forward-переход уже у Advance.
func (m *Machine) ApplyRecoveryPayment(d domain.Domain, now time.Time) (domain.Domain, error) {
	if !d.RegistrarStatus.Recoverable() {
		return d, domain.ErrRecoveryNotAvailable
	}

	deadline, ok := d.Deadline(m.policy)
	if !ok {
		return d, domain.ErrRecoveryNotAvailable
	}
	if !now.Before(deadline) {
		// Окно уже закрыто; вызывающий обязан перечитать состояние и
		// запросить свежий quote.
		return d, domain.ErrStaleRecoveryWindow
	}

	paymentAt := now
	d.RegistrarStatus = domain.StatusActive
	d.ExpiresAt = now.Add(m.policy.RenewalPeriod())
	d.GraceUntil = nil
	d.RedemptionUntil = nil
	d.LastPaymentAt = &paymentAt
	d.UpdatedAt = now

	return d, nil
}
