package domain

import "time"

// Дефолты политики жизненного цикла. Значения окон и сборов — данные
// конфигурации, а не зашитая бизнес-логика.
const (
	DefaultGraceDays        = 15
	DefaultRedemptionDays   = 30
	DefaultRegistryHoldDays = 15
	DefaultAuctionDays      = 5
	DefaultRenewalDays      = 365

	DefaultRecoveryFeeBaseMinor     = 5000  // $50.00
	DefaultRecoveryFeeElevatedMinor = 10000 // $100.00
	DefaultAuctionSurchargeMinor    = 2500  // $25.00
	DefaultMonthlyFeeMinor          = 833   // $8.33
	DefaultCurrency                 = "USD"
)

// LifecyclePolicy — единая таблица политики: длительности окон и сборы.
// Её читают и планировщик, и калькулятор восстановления, поэтому границы
// окон у них совпадают по построению.
type LifecyclePolicy struct {
	GraceDays        int
	RedemptionDays   int
	RegistryHoldDays int
	// AuctionDays — окно, в течение которого прежний владелец может
	// выкупить домен с аукциона; после него домен освобождается.
	AuctionDays int
	// RenewalDays — период продления, начисляемый платёжным событием.
	RenewalDays int

	RecoveryFeeBaseMinor     int64
	RecoveryFeeElevatedMinor int64
	AuctionSurchargeMinor    int64

	// MonthlyFeeMinor — базовая месячная плата, если тариф не найден в PlanFees.
	MonthlyFeeMinor int64
	// PlanFees — месячная плата по коду тарифа.
	PlanFees map[string]int64
	Currency string
}

// DefaultLifecyclePolicy возвращает политику с дефолтами из FAQ-источника.
func DefaultLifecyclePolicy() LifecyclePolicy {
	return LifecyclePolicy{
		GraceDays:                DefaultGraceDays,
		RedemptionDays:           DefaultRedemptionDays,
		RegistryHoldDays:         DefaultRegistryHoldDays,
		AuctionDays:              DefaultAuctionDays,
		RenewalDays:              DefaultRenewalDays,
		RecoveryFeeBaseMinor:     DefaultRecoveryFeeBaseMinor,
		RecoveryFeeElevatedMinor: DefaultRecoveryFeeElevatedMinor,
		AuctionSurchargeMinor:    DefaultAuctionSurchargeMinor,
		MonthlyFeeMinor:          DefaultMonthlyFeeMinor,
		Currency:                 DefaultCurrency,
	}
}

// Normalize заменяет нулевые и отрицательные значения дефолтами.
func (p LifecyclePolicy) Normalize() LifecyclePolicy {
	def := DefaultLifecyclePolicy()
	if p.GraceDays <= 0 {
		p.GraceDays = def.GraceDays
	}
	if p.RedemptionDays <= 0 {
		p.RedemptionDays = def.RedemptionDays
	}
	if p.RegistryHoldDays <= 0 {
		p.RegistryHoldDays = def.RegistryHoldDays
	}
	if p.AuctionDays <= 0 {
		p.AuctionDays = def.AuctionDays
	}
	if p.RenewalDays <= 0 {
		p.RenewalDays = def.RenewalDays
	}
	if p.RecoveryFeeBaseMinor <= 0 {
		p.RecoveryFeeBaseMinor = def.RecoveryFeeBaseMinor
	}
	if p.RecoveryFeeElevatedMinor <= 0 {
		p.RecoveryFeeElevatedMinor = def.RecoveryFeeElevatedMinor
	}
	if p.AuctionSurchargeMinor < 0 {
		p.AuctionSurchargeMinor = def.AuctionSurchargeMinor
	}
	if p.MonthlyFeeMinor <= 0 {
		p.MonthlyFeeMinor = def.MonthlyFeeMinor
	}
	if p.Currency == "" {
		p.Currency = def.Currency
	}
	return p
}

// MonthlyFeeFor возвращает месячную плату по коду тарифа.
func (p LifecyclePolicy) MonthlyFeeFor(planCode string) int64 {
	if fee, ok := p.PlanFees[planCode]; ok && fee > 0 {
		return fee
	}
	return p.MonthlyFeeMinor
}

// RenewalPeriod возвращает длительность одного периода продления.
func (p LifecyclePolicy) RenewalPeriod() time.Duration {
	return time.Duration(p.RenewalDays) * 24 * time.Hour
}

// GraceWindow — длительность grace-окна.
func (p LifecyclePolicy) GraceWindow() time.Duration {
	return time.Duration(p.GraceDays) * 24 * time.Hour
}

// RedemptionWindow — длительность redemption-окна.
func (p LifecyclePolicy) RedemptionWindow() time.Duration {
	return time.Duration(p.RedemptionDays) * 24 * time.Hour
}

// RegistryHoldWindow — длительность registry hold.
func (p LifecyclePolicy) RegistryHoldWindow() time.Duration {
	return time.Duration(p.RegistryHoldDays) * 24 * time.Hour
}

// AuctionWindow — длительность аукционного окна выкупа.
func (p LifecyclePolicy) AuctionWindow() time.Duration {
	return time.Duration(p.AuctionDays) * 24 * time.Hour
}
