package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// helper для создания валидного ожидающего предложения.
func makeOffer() domain.Offer {
	return domain.Offer{
		ID:               "offer-1",
		RequestID:        "request-1",
		SellerID:         "seller-1",
		PriceMinor:       120_000,
		Description:      "in stock, certified",
		DeliveryTimeline: "5-7 days",
		Status:           domain.OfferStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestOfferValidateInvariants_Ok(t *testing.T) {
	offer := makeOffer()
	if errs := offer.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOfferValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Offer)
	}{
		{
			name: "no request",
			mut: func(o *domain.Offer) {
				o.RequestID = ""
			},
		},
		{
			name: "no seller",
			mut: func(o *domain.Offer) {
				o.SellerID = ""
			},
		},
		{
			name: "zero price",
			mut: func(o *domain.Offer) {
				o.PriceMinor = 0
			},
		},
		{
			name: "negative delivery cost",
			mut: func(o *domain.Offer) {
				o.DeliveryCostMinor = -1
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offer := makeOffer()
			tc.mut(&offer)
			if errs := offer.ValidateInvariants(); len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}
		})
	}
}

func TestOfferIsTerminal(t *testing.T) {
	offer := makeOffer()
	if offer.IsTerminal() {
		t.Fatal("pending offer must not be terminal")
	}

	offer.Status = domain.OfferStatusAccepted
	if !offer.IsTerminal() {
		t.Fatal("accepted offer must be terminal")
	}

	offer.Status = domain.OfferStatusRejected
	if !offer.IsTerminal() {
		t.Fatal("rejected offer must be terminal")
	}
}
