package domain

import "time"

// Conversation — диалог между покупателем и продавцом. Ключом служит
// неупорядоченная пара участников; повторный запрос на ту же пару
// переиспользует существующий диалог.
type Conversation struct {
	ID       string
	BuyerID  string
	SellerID string
	// RequestID — опциональная привязка диалога к заявке.
	RequestID *string
	CreatedAt time.Time
}

// NotificationType задаёт тип уведомления для адресата.
type NotificationType string

const (
	NotificationTypeOfferAccepted NotificationType = "offer_accepted"
	NotificationTypeOfferRejected NotificationType = "offer_rejected"
)

// Notification — адресованное уведомление с deep link на связанную сущность.
type Notification struct {
	ID      string
	UserID  string
	Type    NotificationType
	Title   string
	Message string
	// Link — относительная ссылка на экран заявки/заказа.
	Link      string
	CreatedAt time.Time
}
