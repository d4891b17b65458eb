package domain

import "time"

// RequestStatus описывает жизненный цикл заявки покупателя.
type RequestStatus string

const (
	// RequestStatusOpen — заявка открыта, продавцы могут подавать предложения.
	RequestStatusOpen RequestStatus = "open"
	// RequestStatusNegotiating — по заявке идут переговоры; переходы в/из этого
	// статуса выполняются вне ядра резолюции.
	RequestStatusNegotiating RequestStatus = "negotiating"
	// RequestStatusClosed — заявка закрыта принятием одного предложения.
	RequestStatusClosed RequestStatus = "closed"
)

// Request — заявка покупателя на закупку.
type Request struct {
	ID          string
	BuyerID     string
	Title       string
	Description string
	Category    string
	// BudgetMinMinor и BudgetMaxMinor — границы бюджета в минимальных денежных
	// единицах; оба поля опциональны.
	BudgetMinMinor *int64
	BudgetMaxMinor *int64
	// Quantity — требуемое количество; опционально, при наличии строго > 0.
	Quantity *int32
	// Deadline — срок поставки; опционально.
	Deadline *time.Time
	// DeliveryLocation — адрес доставки; опционально.
	DeliveryLocation *string
	Status           RequestStatus
	CreatedAt        time.Time
	// UpdatedAt — момент последнего перехода статуса; используется для
	// отличия свежих закрытий от брошенных.
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заявки и возвращает список замечаний.
func (r *Request) ValidateInvariants() []error {
	var errs []error

	if r.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if r.Title == "" {
		errs = append(errs, ErrTitleRequired)
	}
	if r.BudgetMinMinor != nil && *r.BudgetMinMinor < 0 {
		errs = append(errs, ErrBudgetNegative)
	}
	if r.BudgetMaxMinor != nil && *r.BudgetMaxMinor < 0 {
		errs = append(errs, ErrBudgetNegative)
	}
	// min ≤ max, если заданы обе границы.
	if r.BudgetMinMinor != nil && r.BudgetMaxMinor != nil && *r.BudgetMinMinor > *r.BudgetMaxMinor {
		errs = append(errs, ErrBudgetRangeInvalid)
	}
	if r.Quantity != nil && *r.Quantity <= 0 {
		errs = append(errs, ErrQuantityInvalid)
	}

	return errs
}

// IsOpen сообщает, принимает ли заявка новые предложения.
func (r *Request) IsOpen() bool {
	return r.Status == RequestStatusOpen
}
