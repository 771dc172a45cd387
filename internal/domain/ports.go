package domain

import (
	"context"
	"time"
)

// Registration — результат успешной регистрации домена у регистратора.
type Registration struct {
	// Ref — идентификатор заявки у регистратора; становится externalRef шага.
	Ref       string
	ExpiresAt time.Time
}

// DKIMKey — DKIM-материал, выданный почтовым провайдером.
type DKIMKey struct {
	Selector string
	Value    string
}

// EmailDomain — результат создания домена у почтового провайдера.
type EmailDomain struct {
	Ref  string
	DKIM *DKIMKey
}

// DNSDefaults — набор записей по умолчанию для нового домена.
type DNSDefaults struct {
	FQDN        string
	MXHost      string
	SPFInclude  string
	DKIMTXT     string
	DMARCPolicy string
}

// CaptureResult — результат списания средств.
type CaptureResult struct {
	Captured bool
	Ref      string
}

// RegistrarService описывает взаимодействие с регистратором доменов.
type RegistrarService interface {
	// CheckAvailability проверяет, свободно ли имя.
	CheckAvailability(ctx context.Context, fqdn string) (bool, error)
	// Register регистрирует домен на years лет.
	Register(ctx context.Context, fqdn string, years int32) (Registration, error)
	// Lookup ищет уже существующую заявку по FQDN — проверка
	// "возможно, уже выполнено" после таймаута.
	Lookup(ctx context.Context, fqdn string) (string, bool, error)
}

// EmailProviderService описывает взаимодействие с почтовым провайдером.
type EmailProviderService interface {
	// CreateDomain подключает домен к почтовому провайдеру.
	CreateDomain(ctx context.Context, fqdn string) (EmailDomain, error)
	// LookupDomain проверяет, подключён ли домен — верификация после таймаута.
	LookupDomain(ctx context.Context, fqdn string) (string, bool, error)
	// CreateMailbox создаёт почтовый ящик на домене.
	CreateMailbox(ctx context.Context, fqdn, localpart string, quotaMb int, password string) (string, error)
}

// DNSProviderService описывает управляемый DNS.
type DNSProviderService interface {
	// ApplyDefaults применяет записи по умолчанию (MX, SPF, DKIM, DMARC).
	ApplyDefaults(ctx context.Context, defaults DNSDefaults) error
}

// PaymentService описывает взаимодействие с платёжным провайдером.
type PaymentService interface {
	// Capture списывает средства по заказу.
	Capture(ctx context.Context, orderID string, amountMinor int64, currency string) (CaptureResult, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderAlreadyExists при дубле ID.
	Create(order DomainOrder) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (DomainOrder, error)
	// ListByCustomer возвращает заказы клиента с опциональным лимитом.
	ListByCustomer(customerID string, limit int) ([]DomainOrder, error)
	// SetFulfillmentStatus обновляет производный статус исполнения.
	SetFulfillmentStatus(id string, status FulfillmentStatus) error
}

// RunRepository описывает хранилище provisioning run'ов.
type RunRepository interface {
	// Create сохраняет новый run. Возвращает ErrRunAlreadyActive, если по
	// заказу уже есть незавершённый run (инвариант уникальности).
	Create(run ProvisioningRun) error
	// Get возвращает run по идентификатору или ErrRunNotFound.
	Get(id string) (ProvisioningRun, error)
	// GetActiveByOrder возвращает незавершённый run заказа или ErrRunNotFound.
	GetActiveByOrder(orderID string) (ProvisioningRun, error)
	// Save применяет обновления с учётом optimistic locking по Version.
	Save(run ProvisioningRun) error
}

// DomainCursor — keyset-курсор обхода доменов в порядке (expires_at, id).
// Нулевое значение означает начало списка.
type DomainCursor struct {
	ExpiresAt time.Time
	ID        string
}

// DomainRepository описывает хранилище доменов.
type DomainRepository interface {
	// Create сохраняет новый домен. Возвращает ErrDomainAlreadyExists при дубле FQDN.
	Create(d Domain) error
	// Get возвращает домен по идентификатору или ErrDomainNotFound.
	Get(id string) (Domain, error)
	// GetByFQDN возвращает домен по имени или ErrDomainNotFound.
	GetByFQDN(fqdn string) (Domain, error)
	// ListDue возвращает домены, требующие внимания планировщика:
	// expires_at <= before и статус не released, строго после cursor в
	// порядке (expires_at, id). Любое пост-expiry состояние подразумевает
	// прошедший expires_at, поэтому фильтра достаточно; курсор позволяет
	// планировщику пройти весь список, не застревая на доменах, чей
	// текущий дедлайн ещё не настал.
	ListDue(before time.Time, cursor DomainCursor, limit int) ([]Domain, error)
	// Save применяет обновления с учётом optimistic locking по Version.
	Save(d Domain) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла run'ов и доменов.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(aggregateID string) ([]TimelineEvent, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
