package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type createRequestBody struct {
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category,omitempty"`
	BudgetMinMinor   *int64     `json:"budget_min_minor,omitempty"`
	BudgetMaxMinor   *int64     `json:"budget_max_minor,omitempty"`
	Quantity         *int32     `json:"quantity,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	DeliveryLocation *string    `json:"delivery_location,omitempty"`
}

type requestView struct {
	ID               string     `json:"id"`
	BuyerID          string     `json:"buyer_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category,omitempty"`
	BudgetMinMinor   *int64     `json:"budget_min_minor,omitempty"`
	BudgetMaxMinor   *int64     `json:"budget_max_minor,omitempty"`
	Quantity         *int32     `json:"quantity,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	DeliveryLocation *string    `json:"delivery_location,omitempty"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newRequestView(r domain.Request) requestView {
	return requestView{
		ID:               r.ID,
		BuyerID:          r.BuyerID,
		Title:            r.Title,
		Description:      r.Description,
		Category:         r.Category,
		BudgetMinMinor:   r.BudgetMinMinor,
		BudgetMaxMinor:   r.BudgetMaxMinor,
		Quantity:         r.Quantity,
		Deadline:         r.Deadline,
		DeliveryLocation: r.DeliveryLocation,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
	}
}

type createOfferBody struct {
	PriceMinor        int64   `json:"price_minor"`
	Description       string  `json:"description,omitempty"`
	DeliveryTimeline  string  `json:"delivery_timeline,omitempty"`
	DeliveryCostMinor int64   `json:"delivery_cost_minor,omitempty"`
	PaymentTerms      *string `json:"payment_terms,omitempty"`
}

type offerView struct {
	ID                string    `json:"id"`
	RequestID         string    `json:"request_id"`
	SellerID          string    `json:"seller_id"`
	PriceMinor        int64     `json:"price_minor"`
	Description       string    `json:"description,omitempty"`
	DeliveryTimeline  string    `json:"delivery_timeline,omitempty"`
	DeliveryCostMinor int64     `json:"delivery_cost_minor"`
	PaymentTerms      *string   `json:"payment_terms,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

func newOfferView(o domain.Offer) offerView {
	return offerView{
		ID:                o.ID,
		RequestID:         o.RequestID,
		SellerID:          o.SellerID,
		PriceMinor:        o.PriceMinor,
		Description:       o.Description,
		DeliveryTimeline:  o.DeliveryTimeline,
		DeliveryCostMinor: o.DeliveryCostMinor,
		PaymentTerms:      o.PaymentTerms,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt,
	}
}

func newOfferViews(offers []domain.Offer) []offerView {
	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		views = append(views, newOfferView(o))
	}
	return views
}

type orderView struct {
	ID               string    `json:"id"`
	BuyerID          string    `json:"buyer_id"`
	SellerID         string    `json:"seller_id"`
	RequestID        string    `json:"request_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Quantity         *int32    `json:"quantity,omitempty"`
	AgreedPriceMinor int64     `json:"agreed_price_minor"`
	DeliveryLocation *string   `json:"delivery_location,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

func newOrderView(o domain.Order) orderView {
	return orderView{
		ID:               o.ID,
		BuyerID:          o.BuyerID,
		SellerID:         o.SellerID,
		RequestID:        o.RequestID,
		Title:            o.Title,
		Description:      o.Description,
		Quantity:         o.Quantity,
		AgreedPriceMinor: o.AgreedPriceMinor,
		DeliveryLocation: o.DeliveryLocation,
		Status:           string(o.Status),
		CreatedAt:        o.CreatedAt,
	}
}

type notificationView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newNotificationViews(notifications []domain.Notification) []notificationView {
	views := make([]notificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, notificationView{
			ID:        n.ID,
			UserID:    n.UserID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Link:      n.Link,
			CreatedAt: n.CreatedAt,
		})
	}
	return views
}
