package domain

import "time"

// FulfillmentStatus описывает производный статус исполнения заказа.
// Не путать с RunOutcome и RegistrarStatus: это разные перечисления.
type FulfillmentStatus string

const (
	// FulfillmentPending — заказ оплачен, provisioning ещё не запускался.
	FulfillmentPending FulfillmentStatus = "pending"
	// FulfillmentInProgress — сага исполняется.
	FulfillmentInProgress FulfillmentStatus = "in_progress"
	// FulfillmentDone — домен зарегистрирован, почта и DNS настроены.
	FulfillmentDone FulfillmentStatus = "fulfilled"
	// FulfillmentFailed — сага завершилась терминальной ошибкой.
	FulfillmentFailed FulfillmentStatus = "failed"
)

// DomainOrder — одна попытка покупки домена. После создания заказ неизменяем,
// кроме производного FulfillmentStatus; пока сага в полёте, заказом владеет она.
type DomainOrder struct {
	ID                string
	CustomerID        string
	FQDN              string
	Years             int32
	PlanCode          string
	AmountMinor       int64
	Currency          string
	FulfillmentStatus FulfillmentStatus
	CreatedAt         time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *DomainOrder) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.FQDN == "" {
		errs = append(errs, ErrFQDNRequired)
	}
	if o.Years <= 0 {
		errs = append(errs, ErrYearsInvalid)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}

	return errs
}
