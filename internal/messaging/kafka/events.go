package kafka

import "time"

// EventType определяет тип события резолюции
type EventType string

const (
	// События предложений
	EventTypeOfferAccepted EventType = "offer.accepted"
	EventTypeOfferRejected EventType = "offer.rejected"

	// События заказов
	EventTypeOrderCreated EventType = "order.created"

	// Служебные события workflow и reconciler
	EventTypeResolutionFailed   EventType = "resolution.failed"
	EventTypeResolutionRepaired EventType = "resolution.repaired"
)

// Topics для Kafka
const (
	TopicResolutionEvents = "marketplace.resolution.events"
	TopicDeadLetterQueue  = "marketplace.dlq" // Dead Letter Queue для failed messages
)

// ResolutionEvent представляет событие резолюции предложения
type ResolutionEvent struct {
	EventType EventType              `json:"event_type"`
	OfferID   string                 `json:"offer_id"`
	RequestID string                 `json:"request_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewResolutionEvent создает новое событие резолюции
func NewResolutionEvent(eventType EventType, offerID, requestID string, metadata map[string]interface{}) *ResolutionEvent {
	return &ResolutionEvent{
		EventType: eventType,
		OfferID:   offerID,
		RequestID: requestID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
