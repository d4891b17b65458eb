package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// requestRepositoryInMemory — простая in-memory реализация RequestRepository.
type requestRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Request
}

// NewRequestRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewRequestRepository() domain.RequestRepository {
	return &requestRepositoryInMemory{
		items: make(map[string]domain.Request),
	}
}

// Create сохраняет новую заявку, если ID ещё не занят.
func (r *requestRepositoryInMemory) Create(request domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[request.ID]; exists {
		return domain.ErrStatusConflict
	}
	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = request.CreatedAt
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[request.ID] = request
	return nil
}

// Get возвращает заявку или ErrRequestNotFound, если её нет.
func (r *requestRepositoryInMemory) Get(id string) (domain.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.items[id]
	if !ok {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	return request, nil
}

// ListByStatus возвращает заявки в статусе status, ограничивая выборку limit (если >0).
func (r *requestRepositoryInMemory) ListByStatus(status domain.RequestStatus, limit int) ([]domain.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Request, 0, len(r.items))
	for _, request := range r.items {
		if request.Status != status {
			continue
		}
		result = append(result, request)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// UpdateStatus выполняет compare-and-swap по статусу заявки.
func (r *requestRepositoryInMemory) UpdateStatus(id string, from, to domain.RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if current.Status != from {
		return domain.ErrStatusConflict
	}
	current.Status = to
	current.UpdatedAt = time.Now().UTC()
	r.items[id] = current
	return nil
}

var _ domain.RequestRepository = (*requestRepositoryInMemory)(nil)
