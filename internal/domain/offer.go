package domain

import "time"

// OfferStatus описывает жизненный цикл предложения продавца.
type OfferStatus string

const (
	// OfferStatusPending — предложение подано и ждёт решения покупателя.
	OfferStatusPending OfferStatus = "pending"
	// OfferStatusAccepted — предложение принято; терминальный статус.
	OfferStatusAccepted OfferStatus = "accepted"
	// OfferStatusRejected — предложение отклонено; терминальный статус.
	OfferStatusRejected OfferStatus = "rejected"
)

// Offer — предложение продавца с ценой по конкретной заявке.
// На пару (seller_id, request_id) допускается не более одного предложения.
type Offer struct {
	ID        string
	RequestID string
	SellerID  string
	// PriceMinor — цена предложения в минимальных денежных единицах, строго > 0.
	PriceMinor  int64
	Description string
	// DeliveryTimeline — срок поставки в свободной форме ("5-7 days").
	DeliveryTimeline string
	// DeliveryCostMinor — стоимость доставки, >= 0.
	DeliveryCostMinor int64
	// PaymentTerms — условия оплаты; опционально.
	PaymentTerms *string
	Status       OfferStatus
	CreatedAt    time.Time
}

// ValidateInvariants проверяет базовые инварианты предложения.
func (o *Offer) ValidateInvariants() []error {
	var errs []error

	if o.RequestID == "" {
		errs = append(errs, ErrRequestIDRequired)
	}
	if o.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if o.PriceMinor <= 0 {
		errs = append(errs, ErrPriceInvalid)
	}
	if o.DeliveryCostMinor < 0 {
		errs = append(errs, ErrDeliveryCostNegative)
	}

	return errs
}

// IsTerminal сообщает, достигло ли предложение конечного статуса.
// Из accepted/rejected переходов нет.
func (o *Offer) IsTerminal() bool {
	return o.Status == OfferStatusAccepted || o.Status == OfferStatusRejected
}
