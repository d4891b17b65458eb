package resolution_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/service/resolution"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func newReconciler(f *fixture, t *testing.T) *resolution.Reconciler {
	t.Helper()
	return resolution.NewReconciler(
		f.requests, f.offers, f.orders, f.outbox,
		resolution.WithLogger(log.New().WithField("test", t.Name())),
		resolution.WithBatchSize(10),
	)
}

// seedClosedRequest создаёт заявку, закрытую в момент closedAt, минуя
// условную запись: так моделируется давно упавшее принятие.
func (f *fixture) seedClosedRequest(t *testing.T, id, buyerID string, closedAt time.Time) domain.Request {
	t.Helper()

	request := domain.Request{
		ID:        id,
		BuyerID:   buyerID,
		Title:     "office chairs",
		Status:    domain.RequestStatusClosed,
		CreatedAt: closedAt,
		UpdatedAt: closedAt,
	}
	if err := f.requests.Create(request); err != nil {
		t.Fatalf("seed closed request: %v", err)
	}
	return request
}

func TestReconciler_CreatesMissingOrder(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "request-1", "buyer-1")
	offer := f.seedOffer(t, "offer-1", "request-1", "seller-1")

	// Падение между принятием предложения и созданием заказа.
	if err := f.requests.UpdateStatus("request-1", domain.RequestStatusOpen, domain.RequestStatusClosed); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := f.offers.UpdateStatus("offer-1", domain.OfferStatusPending, domain.OfferStatusAccepted); err != nil {
		t.Fatalf("setup: %v", err)
	}

	repaired := newReconciler(f, t).RunOnce(context.Background())
	if repaired != 1 {
		t.Fatalf("expected 1 repair, got %d", repaired)
	}

	order, err := f.orders.GetByRequest("request-1")
	if err != nil {
		t.Fatalf("order not repaired: %v", err)
	}
	if order.SellerID != offer.SellerID || order.AgreedPriceMinor != offer.PriceMinor {
		t.Fatalf("repaired order does not match the offer: %+v", order)
	}

	// Повторный проход ничего не находит.
	if repaired := newReconciler(f, t).RunOnce(context.Background()); repaired != 0 {
		t.Fatalf("expected idempotent pass, got %d repairs", repaired)
	}
}

func TestReconciler_ClosesRequestForAcceptedOffer(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "request-1", "buyer-1")
	f.seedOffer(t, "offer-1", "request-1", "seller-1")

	// Предложение принято, но заявку закрыть не успели: такое состояние сам
	// workflow не оставляет, но хранилище может пережить частичный импорт.
	if err := f.offers.UpdateStatus("offer-1", domain.OfferStatusPending, domain.OfferStatusAccepted); err != nil {
		t.Fatalf("setup: %v", err)
	}

	repaired := newReconciler(f, t).RunOnce(context.Background())
	if repaired < 1 {
		t.Fatalf("expected repairs, got %d", repaired)
	}

	if got := f.requestStatus(t, "request-1"); got != domain.RequestStatusClosed {
		t.Fatalf("request status = %s", got)
	}
	if _, err := f.orders.GetByRequest("request-1"); err != nil {
		t.Fatalf("order not repaired: %v", err)
	}
}

func TestReconciler_ReopensAbandonedRequest(t *testing.T) {
	f := newFixture(t)
	// Принятие упало между закрытием заявки и принятием предложения, причём
	// давно: закрытие заведомо старше защитного окна.
	f.seedClosedRequest(t, "request-1", "buyer-1", time.Now().UTC().Add(-time.Hour))
	f.seedOffer(t, "offer-1", "request-1", "seller-1")

	repaired := newReconciler(f, t).RunOnce(context.Background())
	if repaired != 1 {
		t.Fatalf("expected 1 repair, got %d", repaired)
	}

	if got := f.requestStatus(t, "request-1"); got != domain.RequestStatusOpen {
		t.Fatalf("request status = %s", got)
	}
	if got := f.offerStatus(t, "offer-1"); got != domain.OfferStatusPending {
		t.Fatalf("offer status = %s", got)
	}
}

func TestReconciler_LeavesFreshlyClosedRequestAlone(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "request-1", "buyer-1")
	f.seedOffer(t, "offer-1", "request-1", "seller-1")
	f.seedOffer(t, "offer-2", "request-1", "seller-2")

	// Живое принятие только что закрыло заявку и ещё не успело принять
	// предложение. Возвращать такую заявку в open нельзя: второе принятие
	// по ней дало бы двух победителей.
	if err := f.requests.UpdateStatus("request-1", domain.RequestStatusOpen, domain.RequestStatusClosed); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if repaired := newReconciler(f, t).RunOnce(context.Background()); repaired != 0 {
		t.Fatalf("expected no repairs inside the reopen grace window, got %d", repaired)
	}
	if got := f.requestStatus(t, "request-1"); got != domain.RequestStatusClosed {
		t.Fatalf("request status = %s", got)
	}

	// Принятие доводит переход после прохода reconciler; победитель один.
	if err := f.offers.UpdateStatus("offer-1", domain.OfferStatusPending, domain.OfferStatusAccepted); err != nil {
		t.Fatalf("complete acceptance: %v", err)
	}
	accepted, err := f.offers.ListByStatus(domain.OfferStatusAccepted, 0)
	if err != nil {
		t.Fatalf("list accepted: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected exactly one accepted offer, got %d", len(accepted))
	}
}

func TestReconciler_ReopenGraceOverride(t *testing.T) {
	f := newFixture(t)
	f.seedClosedRequest(t, "request-1", "buyer-1", time.Now().UTC().Add(-10*time.Minute))

	reconciler := resolution.NewReconciler(
		f.requests, f.offers, f.orders, f.outbox,
		resolution.WithLogger(log.New().WithField("test", t.Name())),
		resolution.WithReopenGrace(time.Hour),
	)
	if repaired := reconciler.RunOnce(context.Background()); repaired != 0 {
		t.Fatalf("expected the longer grace to defer the reopen, got %d repairs", repaired)
	}
	if got := f.requestStatus(t, "request-1"); got != domain.RequestStatusClosed {
		t.Fatalf("request status = %s", got)
	}
}

func TestReconciler_LeavesCompleteResolutionsAlone(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "request-1", "buyer-1")
	f.seedOffer(t, "offer-1", "request-1", "seller-1")

	if _, err := f.workflow.AcceptOffer(context.Background(), "offer-1", "buyer-1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if repaired := newReconciler(f, t).RunOnce(context.Background()); repaired != 0 {
		t.Fatalf("expected nothing to repair, got %d", repaired)
	}
}

func TestReconciler_RunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	reconciler := resolution.NewReconciler(
		f.requests, f.offers, f.orders, f.outbox,
		resolution.WithLogger(log.New().WithField("test", t.Name())),
		resolution.WithInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reconciler.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}

func TestReconciler_RepairEventEnqueued(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "request-1", "buyer-1")
	f.seedOffer(t, "offer-1", "request-1", "seller-1")
	if err := f.requests.UpdateStatus("request-1", domain.RequestStatusOpen, domain.RequestStatusClosed); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := f.offers.UpdateStatus("offer-1", domain.OfferStatusPending, domain.OfferStatusAccepted); err != nil {
		t.Fatalf("setup: %v", err)
	}

	outbox := memory.NewOutboxRepository()
	reconciler := resolution.NewReconciler(
		f.requests, f.offers, f.orders, outbox,
		resolution.WithLogger(log.New().WithField("test", t.Name())),
	)
	if repaired := reconciler.RunOnce(context.Background()); repaired != 1 {
		t.Fatalf("expected 1 repair, got %d", repaired)
	}

	pending, err := outbox.PullPending(0)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	found := false
	for _, msg := range pending {
		if msg.EventType != string(kafka.EventTypeResolutionRepaired) {
			continue
		}
		found = true

		var event kafka.ResolutionEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			t.Fatalf("decode repair event: %v", err)
		}
		if event.EventType != kafka.EventTypeResolutionRepaired || event.OfferID != "offer-1" || event.RequestID != "request-1" {
			t.Fatalf("unexpected repair event: %+v", event)
		}
		if event.Metadata["action"] == "" {
			t.Fatalf("expected repair action metadata, got %v", event.Metadata)
		}
	}
	if !found {
		t.Fatal("expected a resolution.repaired event")
	}
}

func TestReconciler_SkipsClosedRequestWithOrder(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(t, "request-1", "buyer-1")
	offer := f.seedOffer(t, "offer-1", "request-1", "seller-1")

	if err := f.requests.UpdateStatus("request-1", domain.RequestStatusOpen, domain.RequestStatusClosed); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := f.offers.UpdateStatus("offer-1", domain.OfferStatusPending, domain.OfferStatusAccepted); err != nil {
		t.Fatalf("setup: %v", err)
	}
	order := domain.BuildOrder(offer, request, "order-1", time.Now().UTC())
	if err := f.orders.Create(order); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if repaired := newReconciler(f, t).RunOnce(context.Background()); repaired != 0 {
		t.Fatalf("expected nothing to repair, got %d", repaired)
	}
	if got := f.requestStatus(t, "request-1"); got != domain.RequestStatusClosed {
		t.Fatalf("request status = %s", got)
	}

	if _, err := f.orders.GetByRequest("request-1"); err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("unexpected order lookup error: %v", err)
	}
}
