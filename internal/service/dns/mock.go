package dns

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// MockService — конфигурируемая заглушка DNSProviderService.
type MockService struct {
	mu sync.Mutex

	ApplyErr error

	ApplyCalls int
	// LastDefaults хранит последний применённый набор записей (для проверок в тестах).
	LastDefaults domain.DNSDefaults
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{}
}

// ApplyDefaults возвращает настроенный результат и считает вызовы.
func (m *MockService) ApplyDefaults(_ context.Context, defaults domain.DNSDefaults) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ApplyCalls++
	m.LastDefaults = defaults
	return m.ApplyErr
}

var _ domain.DNSProviderService = (*MockService)(nil)
