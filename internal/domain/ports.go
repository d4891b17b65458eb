package domain

import "time"

// Messenger описывает узкий порт в подсистему сообщений/уведомлений.
// Ядро резолюции вызывает его best-effort после фиксации перехода статусов.
type Messenger interface {
	// EnsureConversation идемпотентно возвращает диалог между покупателем и
	// продавцом: существующий переиспользуется, иначе создаётся новый.
	// requestID — опциональная привязка к заявке (пустая строка — без привязки).
	EnsureConversation(buyerID, sellerID, requestID string) (Conversation, error)
	// Notify создаёт уведомление для адресата.
	Notify(notification Notification) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
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
