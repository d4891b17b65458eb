package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func TestBuildOrder(t *testing.T) {
	request := makeRequest()
	offer := makeOffer()
	now := time.Now().UTC()

	order := domain.BuildOrder(offer, request, "order-1", now)

	if order.ID != "order-1" {
		t.Fatalf("expected id order-1, got %s", order.ID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if order.BuyerID != request.BuyerID {
		t.Fatalf("expected buyer %s, got %s", request.BuyerID, order.BuyerID)
	}
	if order.SellerID != offer.SellerID {
		t.Fatalf("expected seller %s, got %s", offer.SellerID, order.SellerID)
	}
	if order.RequestID != request.ID {
		t.Fatalf("expected request %s, got %s", request.ID, order.RequestID)
	}
	if order.Title != request.Title {
		t.Fatalf("expected title from request, got %q", order.Title)
	}
	if order.Description != offer.Description {
		t.Fatalf("expected description from offer, got %q", order.Description)
	}
	if order.AgreedPriceMinor != offer.PriceMinor {
		t.Fatalf("expected agreed price %d, got %d", offer.PriceMinor, order.AgreedPriceMinor)
	}
	if order.Quantity == nil || *order.Quantity != *request.Quantity {
		t.Fatalf("expected quantity from request, got %v", order.Quantity)
	}
	if !order.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, order.CreatedAt)
	}

	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("built order must be valid, got %v", errs)
	}
}

// Фабрика детерминирована: одинаковые входы дают одинаковый заказ.
func TestBuildOrder_Deterministic(t *testing.T) {
	request := makeRequest()
	offer := makeOffer()
	now := time.Now().UTC()

	first := domain.BuildOrder(offer, request, "order-1", now)
	second := domain.BuildOrder(offer, request, "order-1", now)

	if first != second {
		t.Fatal("expected identical orders for identical inputs")
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	order := domain.BuildOrder(makeOffer(), makeRequest(), "order-1", time.Now().UTC())

	order.AgreedPriceMinor = 0
	order.BuyerID = ""
	if errs := order.ValidateInvariants(); len(errs) != 2 {
		t.Fatalf("expected 2 validation errors, got %v", errs)
	}
}
