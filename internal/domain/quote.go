package domain

import "time"

// RecoveryQuote — расчётная стоимость возврата домена в active.
// Никогда не сохраняется: всегда пересчитывается от текущего состояния,
// чтобы не устаревать.
type RecoveryQuote struct {
	DomainID string
	// Status — состояние, для которого считался quote.
	Status           RegistrarStatus
	MonthlyFeeMinor  int64
	RecoveryFeeMinor int64
	TotalMinor       int64
	Currency         string
	CanRecover       bool
	// Deadline — граница, до которой платёж ещё будет принят.
	Deadline *time.Time
}
