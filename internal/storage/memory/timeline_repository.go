package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// timelineRepositoryInMemory хранит события в памяти (для разработки/тестов).
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие в хранилище.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.AggregateID] = append(r.events[event.AggregateID], event)

	sort.Slice(r.events[event.AggregateID], func(i, j int) bool {
		return r.events[event.AggregateID][i].Occurred.Before(r.events[event.AggregateID][j].Occurred)
	})

	return nil
}

// List возвращает события агрегата в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(aggregateID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[aggregateID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
