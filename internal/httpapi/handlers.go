package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// userHeader несёт идентификатор вызывающего. Аутентификацию выполняет
// внешний шлюз; сервис доверяет заголовку.
const userHeader = "X-User-Id"

// Resolver — операции резолюции, нужные HTTP-слою.
type Resolver interface {
	AcceptOffer(ctx context.Context, offerID, callerID string) (domain.Order, error)
	RejectOffer(ctx context.Context, offerID, callerID string) error
}

// Server объединяет обработчики HTTP API.
type Server struct {
	requests      domain.RequestRepository
	offers        domain.OfferRepository
	orders        domain.OrderRepository
	notifications domain.NotificationRepository
	resolver      Resolver
	logger        *log.Entry
}

// NewServer создаёт HTTP-слой поверх репозиториев и workflow резолюции.
func NewServer(
	requests domain.RequestRepository,
	offers domain.OfferRepository,
	orders domain.OrderRepository,
	notifications domain.NotificationRepository,
	resolver Resolver,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Server{
		requests:      requests,
		offers:        offers,
		orders:        orders,
		notifications: notifications,
		resolver:      resolver,
		logger:        logger,
	}
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(userHeader))
	if userID == "" {
		WriteJSONError(w, http.StatusUnauthorized, "unauthenticated", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func validationDetails(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func (s *Server) createRequestHandler(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := s.caller(w, r)
	if !ok {
		return
	}

	var body createRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}

	request := domain.Request{
		ID:               uuid.NewString(),
		BuyerID:          buyerID,
		Title:            body.Title,
		Description:      body.Description,
		Category:         body.Category,
		BudgetMinMinor:   body.BudgetMinMinor,
		BudgetMaxMinor:   body.BudgetMaxMinor,
		Quantity:         body.Quantity,
		Deadline:         body.Deadline,
		DeliveryLocation: body.DeliveryLocation,
		Status:           domain.RequestStatusOpen,
		CreatedAt:        time.Now().UTC(),
	}
	if errs := request.ValidateInvariants(); len(errs) > 0 {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", validationDetails(errs))
		return
	}

	if err := s.requests.Create(request); err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.WithFields(log.Fields{
		"request_id": request.ID,
		"buyer_id":   buyerID,
	}).Info("request created")

	writeJSON(w, http.StatusCreated, newRequestView(request))
}

func (s *Server) getRequestHandler(w http.ResponseWriter, r *http.Request) {
	request, err := s.requests.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRequestView(request))
}

func (s *Server) createOfferHandler(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := s.caller(w, r)
	if !ok {
		return
	}

	request, err := s.requests.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !request.IsOpen() {
		writeDomainError(w, domain.ErrRequestNotOpen)
		return
	}

	var body createOfferBody
	if !decodeJSON(w, r, &body) {
		return
	}

	offer := domain.Offer{
		ID:                uuid.NewString(),
		RequestID:         request.ID,
		SellerID:          sellerID,
		PriceMinor:        body.PriceMinor,
		Description:       body.Description,
		DeliveryTimeline:  body.DeliveryTimeline,
		DeliveryCostMinor: body.DeliveryCostMinor,
		PaymentTerms:      body.PaymentTerms,
		Status:            domain.OfferStatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	if errs := offer.ValidateInvariants(); len(errs) > 0 {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", validationDetails(errs))
		return
	}

	if err := s.offers.Create(offer); err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.WithFields(log.Fields{
		"offer_id":   offer.ID,
		"request_id": request.ID,
		"seller_id":  sellerID,
	}).Info("offer created")

	writeJSON(w, http.StatusCreated, newOfferView(offer))
}

func (s *Server) listRequestOffersHandler(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if _, err := s.requests.Get(requestID); err != nil {
		writeDomainError(w, err)
		return
	}

	offers, err := s.offers.ListByRequest(requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOfferViews(offers))
}

func (s *Server) getOfferHandler(w http.ResponseWriter, r *http.Request) {
	offer, err := s.offers.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOfferView(offer))
}

func (s *Server) acceptOfferHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}

	order, err := s.resolver.AcceptOffer(r.Context(), r.PathValue("id"), callerID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			WriteJSONError(w, http.StatusServiceUnavailable, "cancelled", "request was cancelled before the resolution started")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

func (s *Server) rejectOfferHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := s.caller(w, r)
	if !ok {
		return
	}

	err := s.resolver.RejectOffer(r.Context(), r.PathValue("id"), callerID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			WriteJSONError(w, http.StatusServiceUnavailable, "cancelled", "request was cancelled before the resolution started")
			return
		}
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

func (s *Server) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := s.caller(w, r)
	if !ok {
		return
	}

	orders, err := s.orders.ListByBuyer(buyerID, 0)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.caller(w, r)
	if !ok {
		return
	}

	notifications, err := s.notifications.ListByUser(userID, 0)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationViews(notifications))
}
