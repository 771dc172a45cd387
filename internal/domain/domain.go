package domain

import "time"

// RegistrarStatus описывает жизненный цикл лицензированного домена.
// Переходы монотонно вперёд по времени, кроме явных платёжных событий
// обратно в active.
type RegistrarStatus string

const (
	// StatusActive — домен оплачен и обслуживается до ExpiresAt.
	StatusActive RegistrarStatus = "active"
	// StatusGrace — срок истёк; продление без доплат до GraceUntil.
	StatusGrace RegistrarStatus = "grace"
	// StatusRedemption — grace истёк; выкуп с базовым recovery-сбором.
	StatusRedemption RegistrarStatus = "redemption"
	// StatusRegistryHold — redemption истёк; выкуп с повышенным сбором.
	StatusRegistryHold RegistrarStatus = "registry_hold"
	// StatusAuction — домен выставлен на аукцион; прежний владелец ещё может
	// выкупить его до дедлайна, оплатив все начисления.
	StatusAuction RegistrarStatus = "auction"
	// StatusReleased — терминальное состояние: домен возвращён в общий пул.
	StatusReleased RegistrarStatus = "released"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s RegistrarStatus) Valid() bool {
	switch s {
	case StatusActive, StatusGrace, StatusRedemption, StatusRegistryHold, StatusAuction, StatusReleased:
		return true
	default:
		return false
	}
}

// Terminal сообщает, вышел ли домен из-под управления state machine.
func (s RegistrarStatus) Terminal() bool {
	return s == StatusReleased
}

// Recoverable сообщает, допускает ли состояние платёжное событие.
func (s RegistrarStatus) Recoverable() bool {
	switch s {
	case StatusGrace, StatusRedemption, StatusRegistryHold, StatusAuction:
		return true
	default:
		return false
	}
}

// Domain — долгоживущий лицензированный ресурс. Создаётся при успешном
// завершении саги; мутируется только lifecycle state machine (через
// планировщик или платёжное событие).
type Domain struct {
	ID         string
	CustomerID string
	FQDN       string
	// RegistrarStatus — единственный источник истины о состоянии домена.
	RegistrarStatus RegistrarStatus
	// ExpiresAt — якорь, от которого считаются границы всех окон.
	ExpiresAt time.Time
	// GraceUntil заполняется при входе в grace; осмысленно только там.
	GraceUntil *time.Time
	// RedemptionUntil заполняется при входе в redemption; осмысленно только там
	// и дальше по цепочке (hold/auction считаются от него по политике).
	RedemptionUntil *time.Time
	LastPaymentAt   *time.Time
	MonthlyFeeMinor int64
	Currency        string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateInvariants проверяет базовые инварианты домена.
func (d *Domain) ValidateInvariants() []error {
	var errs []error

	if d.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if d.FQDN == "" {
		errs = append(errs, ErrFQDNRequired)
	}
	if d.MonthlyFeeMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if d.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}

	return errs
}

// Deadline возвращает единственный дедлайн текущего состояния по политике.
// Для released дедлайна нет. Окна hold и auction выводятся от redemption,
// чтобы планировщик и калькулятор не могли разойтись в границах.
func (d *Domain) Deadline(policy LifecyclePolicy) (time.Time, bool) {
	switch d.RegistrarStatus {
	case StatusActive:
		return d.ExpiresAt, true
	case StatusGrace:
		if d.GraceUntil != nil {
			return *d.GraceUntil, true
		}
		return d.ExpiresAt.Add(policy.GraceWindow()), true
	case StatusRedemption:
		if d.RedemptionUntil != nil {
			return *d.RedemptionUntil, true
		}
		return d.ExpiresAt.Add(policy.GraceWindow() + policy.RedemptionWindow()), true
	case StatusRegistryHold:
		return d.redemptionDeadline(policy).Add(policy.RegistryHoldWindow()), true
	case StatusAuction:
		return d.redemptionDeadline(policy).Add(policy.RegistryHoldWindow() + policy.AuctionWindow()), true
	default:
		return time.Time{}, false
	}
}

func (d *Domain) redemptionDeadline(policy LifecyclePolicy) time.Time {
	if d.RedemptionUntil != nil {
		return *d.RedemptionUntil
	}
	return d.ExpiresAt.Add(policy.GraceWindow() + policy.RedemptionWindow())
}
