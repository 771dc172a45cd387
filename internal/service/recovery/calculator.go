package recovery

import (
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// Calculator считает стоимость возврата домена в active. Чистая функция от
// состояния домена, политики и момента времени; ничего не сохраняет.
type Calculator struct {
	policy domain.LifecyclePolicy
}

// NewCalculator создаёт калькулятор поверх таблицы политики.
func NewCalculator(policy domain.LifecyclePolicy) *Calculator {
	return &Calculator{policy: policy.Normalize()}
}

// Quote возвращает расчёт восстановления для текущего состояния домена.
// Для active, released и просроченного аукциона CanRecover=false.
func (c *Calculator) Quote(d domain.Domain, now time.Time) domain.RecoveryQuote {
	quote := domain.RecoveryQuote{
		DomainID:        d.ID,
		Status:          d.RegistrarStatus,
		MonthlyFeeMinor: c.monthlyFee(d),
		Currency:        c.currency(d),
	}

	deadline, ok := d.Deadline(c.policy)
	if ok && d.RegistrarStatus != domain.StatusActive {
		quote.Deadline = &deadline
	}

	switch d.RegistrarStatus {
	case domain.StatusGrace:
		quote.RecoveryFeeMinor = 0
	case domain.StatusRedemption:
		quote.RecoveryFeeMinor = c.policy.RecoveryFeeBaseMinor
	case domain.StatusRegistryHold:
		quote.RecoveryFeeMinor = c.policy.RecoveryFeeElevatedMinor
	case domain.StatusAuction:
		quote.RecoveryFeeMinor = c.policy.RecoveryFeeElevatedMinor + c.policy.AuctionSurchargeMinor
	default:
		// active и released не восстанавливаются через recovery.
		return quote
	}

	// Платёж начиная с дедлайна окна уже не принимается: в этот момент
	// право на переход у sweep'а, и quote обязан совпадать с машиной.
	if ok && !now.Before(deadline) {
		return quote
	}

	quote.CanRecover = true
	quote.TotalMinor = quote.MonthlyFeeMinor + quote.RecoveryFeeMinor
	return quote
}

func (c *Calculator) monthlyFee(d domain.Domain) int64 {
	if d.MonthlyFeeMinor > 0 {
		return d.MonthlyFeeMinor
	}
	return c.policy.MonthlyFeeMinor
}

func (c *Calculator) currency(d domain.Domain) string {
	if d.Currency != "" {
		return d.Currency
	}
	return c.policy.Currency
}
