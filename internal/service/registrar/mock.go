package registrar

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// MockService — конфигурируемая заглушка RegistrarService для разработки и тестов.
type MockService struct {
	mu sync.Mutex

	Available    bool
	AvailableErr error
	RegisterErr  error
	LookupRef    string
	LookupFound  bool
	LookupErr    error
	// RegistrationTerm — срок, который заглушка проставляет в Registration.
	RegistrationTerm time.Duration

	CheckCalls    int
	RegisterCalls int
	LookupCalls   int
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		Available:        true,
		RegistrationTerm: 365 * 24 * time.Hour,
	}
}

// CheckAvailability возвращает заранее настроенный результат и считает вызовы.
func (m *MockService) CheckAvailability(_ context.Context, fqdn string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckCalls++
	return m.Available, m.AvailableErr
}

// Register возвращает сгенерированную заявку либо настроенную ошибку.
func (m *MockService) Register(_ context.Context, fqdn string, years int32) (domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RegisterCalls++
	if m.RegisterErr != nil {
		return domain.Registration{}, m.RegisterErr
	}
	return domain.Registration{
		Ref:       "reg-" + uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(time.Duration(years) * m.RegistrationTerm),
	}, nil
}

// Lookup возвращает настроенный результат проверки "возможно, уже выполнено".
func (m *MockService) Lookup(_ context.Context, fqdn string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LookupCalls++
	return m.LookupRef, m.LookupFound, m.LookupErr
}

var _ domain.RegistrarService = (*MockService)(nil)
