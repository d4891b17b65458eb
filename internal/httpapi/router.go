package httpapi

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// NewRouter регистрирует маршруты API и оборачивает их в middleware.
func NewRouter(s *Server, logger *log.Entry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/requests", s.createRequestHandler)
	mux.HandleFunc("GET /v1/requests/{id}", s.getRequestHandler)
	mux.HandleFunc("POST /v1/requests/{id}/offers", s.createOfferHandler)
	mux.HandleFunc("GET /v1/requests/{id}/offers", s.listRequestOffersHandler)

	mux.HandleFunc("GET /v1/offers/{id}", s.getOfferHandler)
	mux.HandleFunc("POST /v1/offers/{id}/accept", s.acceptOfferHandler)
	mux.HandleFunc("POST /v1/offers/{id}/reject", s.rejectOfferHandler)

	mux.HandleFunc("GET /v1/orders/{id}", s.getOrderHandler)
	mux.HandleFunc("GET /v1/orders", s.listOrdersHandler)

	mux.HandleFunc("GET /v1/notifications", s.listNotificationsHandler)

	return WithRequestID(WithLogging(logger, mux))
}
