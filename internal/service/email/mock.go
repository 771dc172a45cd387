package email

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// MockService — конфигурируемая заглушка EmailProviderService.
type MockService struct {
	mu sync.Mutex

	CreateDomainErr  error
	DKIM             *domain.DKIMKey
	LookupRef        string
	LookupFound      bool
	LookupErr        error
	CreateMailboxErr error

	CreateDomainCalls  int
	LookupCalls        int
	CreateMailboxCalls int
}

// NewMockService возвращает mock с успешным сценарием и DKIM-ключом по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		DKIM: &domain.DKIMKey{
			Selector: "mail",
			Value:    "v=DKIM1; k=rsa; p=MIGfMA0GCSqGSIb3",
		},
	}
}

// CreateDomain возвращает сгенерированный providerRef либо настроенную ошибку.
func (m *MockService) CreateDomain(_ context.Context, fqdn string) (domain.EmailDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateDomainCalls++
	if m.CreateDomainErr != nil {
		return domain.EmailDomain{}, m.CreateDomainErr
	}
	return domain.EmailDomain{
		Ref:  "mail-" + uuid.NewString(),
		DKIM: m.DKIM,
	}, nil
}

// LookupDomain возвращает настроенный результат верификации.
func (m *MockService) LookupDomain(_ context.Context, fqdn string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LookupCalls++
	return m.LookupRef, m.LookupFound, m.LookupErr
}

// CreateMailbox возвращает сгенерированный ref ящика либо настроенную ошибку.
func (m *MockService) CreateMailbox(_ context.Context, fqdn, localpart string, quotaMb int, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateMailboxCalls++
	if m.CreateMailboxErr != nil {
		return "", m.CreateMailboxErr
	}
	return "mbx-" + uuid.NewString(), nil
}

var _ domain.EmailProviderService = (*MockService)(nil)
