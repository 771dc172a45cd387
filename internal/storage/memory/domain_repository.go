package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// domainRepositoryInMemory — in-memory реализация DomainRepository.
type domainRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[string]domain.Domain
	byFQDN map[string]string
}

// NewDomainRepository возвращает in-memory репозиторий доменов.
func NewDomainRepository() domain.DomainRepository {
	return &domainRepositoryInMemory{
		items:  make(map[string]domain.Domain),
		byFQDN: make(map[string]string),
	}
}

// Create сохраняет новый домен, охраняя уникальность ID и FQDN.
func (r *domainRepositoryInMemory) Create(d domain.Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[d.ID]; exists {
		return domain.ErrDomainAlreadyExists
	}
	if _, exists := r.byFQDN[d.FQDN]; exists {
		return domain.ErrDomainAlreadyExists
	}

	r.items[d.ID] = cloneDomain(d)
	r.byFQDN[d.FQDN] = d.ID
	return nil
}

// Get возвращает домен или ErrDomainNotFound.
func (r *domainRepositoryInMemory) Get(id string) (domain.Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.items[id]
	if !ok {
		return domain.Domain{}, domain.ErrDomainNotFound
	}
	return cloneDomain(d), nil
}

// GetByFQDN возвращает домен по имени.
func (r *domainRepositoryInMemory) GetByFQDN(fqdn string) (domain.Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byFQDN[fqdn]
	if !ok {
		return domain.Domain{}, domain.ErrDomainNotFound
	}
	return cloneDomain(r.items[id]), nil
}

// ListDue возвращает домены с expires_at <= before и статусом не released,
// строго после cursor в порядке (expires_at, id).
func (r *domainRepositoryInMemory) ListDue(before time.Time, cursor domain.DomainCursor, limit int) ([]domain.Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Domain, 0)
	for _, d := range r.items {
		if d.RegistrarStatus.Terminal() {
			continue
		}
		if d.ExpiresAt.After(before) {
			continue
		}
		if d.ExpiresAt.Before(cursor.ExpiresAt) {
			continue
		}
		if d.ExpiresAt.Equal(cursor.ExpiresAt) && d.ID <= cursor.ID {
			continue
		}
		result = append(result, cloneDomain(d))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ExpiresAt.Equal(result[j].ExpiresAt) {
			return result[i].ExpiresAt.Before(result[j].ExpiresAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает домен, проверяя версию (optimistic locking).
func (r *domainRepositoryInMemory) Save(d domain.Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[d.ID]
	if !ok {
		return domain.ErrDomainNotFound
	}
	if current.Version != d.Version {
		return domain.ErrDomainVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	d.Version++
	r.items[d.ID] = cloneDomain(d)
	return nil
}

func cloneDomain(d domain.Domain) domain.Domain {
	if d.GraceUntil != nil {
		v := *d.GraceUntil
		d.GraceUntil = &v
	}
	if d.RedemptionUntil != nil {
		v := *d.RedemptionUntil
		d.RedemptionUntil = &v
	}
	if d.LastPaymentAt != nil {
		v := *d.LastPaymentAt
		d.LastPaymentAt = &v
	}
	return d
}

var _ domain.DomainRepository = (*domainRepositoryInMemory)(nil)
