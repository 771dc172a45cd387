package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// runRepositoryInMemory — in-memory реализация RunRepository.
type runRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.ProvisioningRun
}

// NewRunRepository возвращает in-memory репозиторий provisioning run'ов.
func NewRunRepository() domain.RunRepository {
	return &runRepositoryInMemory{
		items: make(map[string]domain.ProvisioningRun),
	}
}

// Create сохраняет новый run, охраняя инвариант "не более одного
// незавершённого run на заказ".
func (r *runRepositoryInMemory) Create(run domain.ProvisioningRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[run.ID]; exists {
		return domain.ErrRunAlreadyActive
	}
	for _, existing := range r.items {
		if existing.OrderID == run.OrderID && existing.Outcome == domain.RunOutcomePending {
			return domain.ErrRunAlreadyActive
		}
	}

	r.items[run.ID] = cloneRun(run)
	return nil
}

// Get возвращает run или ErrRunNotFound.
func (r *runRepositoryInMemory) Get(id string) (domain.ProvisioningRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.items[id]
	if !ok {
		return domain.ProvisioningRun{}, domain.ErrRunNotFound
	}
	return cloneRun(run), nil
}

// GetActiveByOrder возвращает незавершённый run заказа.
func (r *runRepositoryInMemory) GetActiveByOrder(orderID string) (domain.ProvisioningRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, run := range r.items {
		if run.OrderID == orderID && run.Outcome == domain.RunOutcomePending {
			return cloneRun(run), nil
		}
	}
	return domain.ProvisioningRun{}, domain.ErrRunNotFound
}

// Save перезаписывает run, проверяя версию (optimistic locking).
func (r *runRepositoryInMemory) Save(run domain.ProvisioningRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[run.ID]
	if !ok {
		return domain.ErrRunNotFound
	}
	if current.Version != run.Version {
		return domain.ErrRunVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	run.Version++
	r.items[run.ID] = cloneRun(run)
	return nil
}

// cloneRun копирует run вместе со слайсом шагов, чтобы изоляция хранилища
// не нарушалась указателями наружу.
func cloneRun(run domain.ProvisioningRun) domain.ProvisioningRun {
	steps := make([]domain.StepRecord, len(run.Steps))
	copy(steps, run.Steps)
	run.Steps = steps
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		run.FinishedAt = &finished
	}
	return run
}

var _ domain.RunRepository = (*runRepositoryInMemory)(nil)
