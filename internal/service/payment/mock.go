package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// MockService — конфигурируемая заглушка PaymentService для тестов.
type MockService struct {
	mu sync.Mutex

	Captured   bool
	CaptureErr error

	CaptureCalls int
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{Captured: true}
}

// Capture возвращает заранее настроенный результат и считает вызовы.
func (m *MockService) Capture(_ context.Context, orderID string, amountMinor int64, currency string) (domain.CaptureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CaptureCalls++
	if m.CaptureErr != nil {
		return domain.CaptureResult{}, m.CaptureErr
	}
	return domain.CaptureResult{
		Captured: m.Captured,
		Ref:      "pay-" + uuid.NewString(),
	}, nil
}

var _ domain.PaymentService = (*MockService)(nil)
