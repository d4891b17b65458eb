package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// notificationRepositoryInMemory — простая in-memory реализация NotificationRepository.
type notificationRepositoryInMemory struct {
	mu    sync.RWMutex
	items []domain.Notification
}

// NewNotificationRepository возвращает in-memory репозиторий уведомлений.
func NewNotificationRepository() domain.NotificationRepository {
	return &notificationRepositoryInMemory{}
}

// Create добавляет уведомление.
func (r *notificationRepositoryInMemory) Create(notification domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, notification)
	return nil
}

// ListByUser возвращает уведомления адресата, новые первыми.
func (r *notificationRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Notification, 0)
	for _, n := range r.items {
		if n.UserID != userID {
			continue
		}
		result = append(result, n)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ domain.NotificationRepository = (*notificationRepositoryInMemory)(nil)
