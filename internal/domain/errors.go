package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего доменного имени.
	ErrFQDNRequired = errors.New("fqdn is required")
	// Ошибка некорректного срока регистрации (<= 0 лет).
	ErrYearsInvalid = errors.New("years must be greater than zero")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("domain order not found")
	// ErrOrderAlreadyExists сигнализирует о повторном создании заказа с тем же ID.
	ErrOrderAlreadyExists = errors.New("domain order already exists")
	// ErrRunNotFound возвращается, если provisioning run не найден.
	ErrRunNotFound = errors.New("provisioning run not found")
	// ErrRunAlreadyActive — нарушение инварианта "не более одного незавершённого run на заказ".
	ErrRunAlreadyActive = errors.New("active provisioning run already exists for order")
	// ErrRunTerminal возвращается при попытке продолжить уже завершённый run.
	ErrRunTerminal = errors.New("provisioning run is already terminal")
	// ErrRunVersionConflict сигнализирует о конфликте версий при сохранении run.
	ErrRunVersionConflict = errors.New("provisioning run version conflict")
	// ErrExternalRefImmutable — попытка перезаписать уже зафиксированный externalRef шага.
	ErrExternalRefImmutable = errors.New("step external ref is immutable once set")
	// ErrDomainNotFound возвращается, если домен не найден в репозитории.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrDomainAlreadyExists сигнализирует о повторной регистрации того же FQDN.
	ErrDomainAlreadyExists = errors.New("domain already exists")
	// ErrDomainVersionConflict сигнализирует о проигрыше CAS при сохранении домена.
	ErrDomainVersionConflict = errors.New("domain version conflict")
	// ErrStaleRecoveryWindow — платёж пришёл после того, как sweep уже передвинул состояние.
	ErrStaleRecoveryWindow = errors.New("recovery window is stale, re-read domain state")
	// ErrRecoveryNotAvailable — в текущем состоянии восстановление невозможно.
	ErrRecoveryNotAvailable = errors.New("recovery is not available in current state")
	// ErrNameTaken — регистратор сообщил, что имя занято (неповторяемая ошибка).
	ErrNameTaken = errors.New("domain name is already taken")
	// ErrPaymentDeclined — платёж отклонён провайдером (бизнес-ошибка).
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentNotCaptured — провайдер не подтвердил списание.
	ErrPaymentNotCaptured = errors.New("payment was not captured")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// TransientError помечает ошибку адаптера как временную: таймаут, 5xx,
// сетевая недоступность. Такие ошибки сага повторяет с backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient adapter error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MarkTransient оборачивает ошибку как временную.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient проверяет, помечена ли ошибка как временная.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrDomainVersionConflict) || errors.Is(err, ErrRunVersionConflict)
}
