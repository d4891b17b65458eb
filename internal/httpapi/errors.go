// Package httpapi реализует HTTP-слой сервиса резолюции предложений.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// jsonError — JSON-представление ошибки API.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError пишет JSON-ошибку с заданным статусом.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// writeDomainError отображает ошибки домена на HTTP-статусы.
// Неклассифицированные ошибки считаются временными отказами хранилища.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		WriteJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNotRequestBuyer):
		WriteJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrAlreadyResolved):
		WriteJSONError(w, http.StatusConflict, "already_resolved", err.Error())
	case domain.IsInvalidState(err):
		WriteJSONError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrDuplicateOffer):
		WriteJSONError(w, http.StatusConflict, "duplicate_offer", err.Error())
	case domain.IsStatusConflict(err):
		WriteJSONError(w, http.StatusConflict, "conflict", err.Error())
	default:
		WriteJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "could not complete, please retry")
	}
}
