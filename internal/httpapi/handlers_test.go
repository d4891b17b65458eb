package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/httpapi"
	"github.com/vladislavdragonenkov/marketplace/internal/service/messaging"
	"github.com/vladislavdragonenkov/marketplace/internal/service/resolution"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	requests := memory.NewRequestRepository()
	offers := memory.NewOfferRepository()
	orders := memory.NewOrderRepository()
	notifications := memory.NewNotificationRepository()
	conversations := memory.NewConversationRepository()
	outbox := memory.NewOutboxRepository()

	logger := log.New().WithField("test", t.Name())
	messenger := messaging.NewService(conversations, notifications, logger)
	workflow := resolution.NewWorkflowWithoutMetrics(requests, offers, orders, messenger, outbox, logger)
	server := httpapi.NewServer(requests, offers, orders, notifications, workflow, logger)
	return httpapi.NewRouter(server, logger)
}

func doJSON(t *testing.T, handler http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func createRequest(t *testing.T, handler http.Handler, buyerID string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/v1/requests", buyerID, map[string]any{
		"title":    "office chairs",
		"category": "furniture",
		"quantity": 20,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create request: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)["id"].(string)
}

func createOffer(t *testing.T, handler http.Handler, requestID, sellerID string, price int64) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/v1/requests/"+requestID+"/offers", sellerID, map[string]any{
		"price_minor":       price,
		"delivery_timeline": "5-7 days",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create offer: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)["id"].(string)
}

func TestRequestLifecycle(t *testing.T) {
	handler := newTestHandler(t)

	requestID := createRequest(t, handler, "buyer-1")

	rec := doJSON(t, handler, http.MethodGet, "/v1/requests/"+requestID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get request: status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "open" || body["buyer_id"] != "buyer-1" {
		t.Fatalf("unexpected request view: %v", body)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	handler := newTestHandler(t)

	// Без заголовка пользователя.
	rec := doJSON(t, handler, http.MethodPost, "/v1/requests", "", map[string]any{"title": "chairs"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Без обязательного title.
	rec = doJSON(t, handler, http.MethodPost, "/v1/requests", "buyer-1", map[string]any{"category": "furniture"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body %s", rec.Code, rec.Body.String())
	}

	// Нарушенный порядок бюджета.
	rec = doJSON(t, handler, http.MethodPost, "/v1/requests", "buyer-1", map[string]any{
		"title":            "chairs",
		"budget_min_minor": 500,
		"budget_max_minor": 100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted budget, got %d", rec.Code)
	}
}

func TestCreateOffer_DuplicateGuard(t *testing.T) {
	handler := newTestHandler(t)
	requestID := createRequest(t, handler, "buyer-1")
	createOffer(t, handler, requestID, "seller-1", 100000)

	rec := doJSON(t, handler, http.MethodPost, "/v1/requests/"+requestID+"/offers", "seller-1", map[string]any{
		"price_minor": 90000,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second offer by the same seller, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "duplicate_offer" {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestCreateOffer_UnknownRequest(t *testing.T) {
	handler := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/v1/requests/missing/offers", "seller-1", map[string]any{
		"price_minor": 100,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAcceptOffer_HTTPFlow(t *testing.T) {
	handler := newTestHandler(t)
	requestID := createRequest(t, handler, "buyer-1")
	offer1 := createOffer(t, handler, requestID, "seller-1", 125000)
	offer2 := createOffer(t, handler, requestID, "seller-2", 110000)

	rec := doJSON(t, handler, http.MethodPost, "/v1/offers/"+offer1+"/accept", "buyer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status %d, body %s", rec.Code, rec.Body.String())
	}
	order := decodeBody(t, rec)
	if order["seller_id"] != "seller-1" || order["request_id"] != requestID {
		t.Fatalf("unexpected order: %v", order)
	}
	if order["agreed_price_minor"] != float64(125000) {
		t.Fatalf("unexpected agreed price: %v", order["agreed_price_minor"])
	}

	// Заявка закрыта.
	rec = doJSON(t, handler, http.MethodGet, "/v1/requests/"+requestID, "", nil)
	if decodeBody(t, rec)["status"] != "closed" {
		t.Fatalf("request not closed: %s", rec.Body.String())
	}

	// Проигравшее предложение отклонено.
	rec = doJSON(t, handler, http.MethodGet, "/v1/offers/"+offer2, "", nil)
	if decodeBody(t, rec)["status"] != "rejected" {
		t.Fatalf("losing offer not rejected: %s", rec.Body.String())
	}

	// Заказ виден покупателю.
	rec = doJSON(t, handler, http.MethodGet, "/v1/orders", "buyer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list orders: status %d", rec.Code)
	}
	var orders []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
		t.Fatalf("decode orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	// Продавец получил уведомление.
	rec = doJSON(t, handler, http.MethodGet, "/v1/notifications", "seller-1", nil)
	var notifications []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &notifications); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(notifications) != 1 || notifications[0]["type"] != "offer_accepted" {
		t.Fatalf("unexpected notifications: %v", notifications)
	}
}

func TestAcceptOffer_ErrorMapping(t *testing.T) {
	handler := newTestHandler(t)
	requestID := createRequest(t, handler, "buyer-1")
	offerID := createOffer(t, handler, requestID, "seller-1", 100000)

	// Не покупатель заявки.
	rec := doJSON(t, handler, http.MethodPost, "/v1/offers/"+offerID+"/accept", "seller-1", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// Несуществующее предложение.
	rec = doJSON(t, handler, http.MethodPost, "/v1/offers/missing/accept", "buyer-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	// Повторное принятие: предложение уже терминально.
	rec = doJSON(t, handler, http.MethodPost, "/v1/offers/"+offerID+"/accept", "buyer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first accept failed: %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/v1/offers/"+offerID+"/accept", "buyer-1", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", rec.Code)
	}
}

func TestRejectOffer_HTTPFlow(t *testing.T) {
	handler := newTestHandler(t)
	requestID := createRequest(t, handler, "buyer-1")
	offerID := createOffer(t, handler, requestID, "seller-1", 100000)

	rec := doJSON(t, handler, http.MethodPost, "/v1/offers/"+offerID+"/reject", "buyer-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reject: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Заявка осталась открытой.
	rec = doJSON(t, handler, http.MethodGet, "/v1/requests/"+requestID, "", nil)
	if decodeBody(t, rec)["status"] != "open" {
		t.Fatalf("request must stay open: %s", rec.Body.String())
	}

	// Подать предложение по отклонённому повторно нельзя (guard по паре).
	rec = doJSON(t, handler, http.MethodPost, "/v1/requests/"+requestID+"/offers", "seller-1", map[string]any{
		"price_minor": 90000,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected duplicate guard to hold, got %d", rec.Code)
	}
}

func TestListRequestOffers(t *testing.T) {
	handler := newTestHandler(t)
	requestID := createRequest(t, handler, "buyer-1")
	createOffer(t, handler, requestID, "seller-1", 100000)
	createOffer(t, handler, requestID, "seller-2", 110000)

	rec := doJSON(t, handler, http.MethodGet, "/v1/requests/"+requestID+"/offers", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list offers: status %d", rec.Code)
	}
	var offers []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &offers); err != nil {
		t.Fatalf("decode offers: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}
}

func TestOfferOnClosedRequest(t *testing.T) {
	handler := newTestHandler(t)
	requestID := createRequest(t, handler, "buyer-1")
	offerID := createOffer(t, handler, requestID, "seller-1", 100000)

	rec := doJSON(t, handler, http.MethodPost, "/v1/offers/"+offerID+"/accept", "buyer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept failed: %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/requests/"+requestID+"/offers", "seller-2", map[string]any{
		"price_minor": 90000,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an offer on a closed request, got %d", rec.Code)
	}
}
