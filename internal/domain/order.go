package domain

import "time"

// OrderStatus описывает статусы исполнения заказа. Ядро резолюции создаёт
// заказ только в статусе pending; дальнейшие переходы выполняет подсистема
// исполнения.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order — обязательство, возникающее при принятии предложения.
// Заказ существует тогда и только тогда, когда по его заявке принято
// предложение; на одну заявку создаётся не более одного заказа.
type Order struct {
	ID          string
	BuyerID     string
	SellerID    string
	RequestID   string
	Title       string
	Description string
	Quantity    *int32
	// AgreedPriceMinor — согласованная цена из принятого предложения.
	AgreedPriceMinor int64
	DeliveryLocation *string
	Status           OrderStatus
	CreatedAt        time.Time
}

// BuildOrder — фабрика заказа: выводит заказ в статусе pending из принятого
// предложения и его заявки. Чистая функция без побочных эффектов;
// идентификатор и момент создания передаёт вызывающая сторона.
func BuildOrder(offer Offer, request Request, id string, now time.Time) Order {
	return Order{
		ID:               id,
		BuyerID:          request.BuyerID,
		SellerID:         offer.SellerID,
		RequestID:        request.ID,
		Title:            request.Title,
		Description:      offer.Description,
		Quantity:         request.Quantity,
		AgreedPriceMinor: offer.PriceMinor,
		DeliveryLocation: request.DeliveryLocation,
		Status:           OrderStatusPending,
		CreatedAt:        now,
	}
}

// ValidateInvariants проверяет базовые инварианты заказа.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if o.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if o.RequestID == "" {
		errs = append(errs, ErrRequestIDRequired)
	}
	if o.AgreedPriceMinor <= 0 {
		errs = append(errs, ErrPriceInvalid)
	}

	return errs
}
