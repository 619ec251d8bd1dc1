package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/marketplace-orders/internal/logging"
	"github.com/safar/marketplace-orders/internal/models"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.FromContext(r.Context()).Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, errorResponse{Error: message, Code: code})
}

// respondDomainError maps a service error onto its HTTP status. Errors that
// are not part of the domain taxonomy are logged and reported as 500 without
// leaking their text.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *models.InsufficientStockError

	switch {
	case errors.As(err, &stockErr):
		respondJSON(w, r, http.StatusConflict, errorResponse{
			Error:   stockErr.Error(),
			Code:    "insufficient_stock",
			Details: stockErr,
		})
	case errors.Is(err, models.ErrValidation):
		respondError(w, r, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, models.ErrForbidden):
		respondError(w, r, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, models.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		respondError(w, r, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, models.ErrConflict):
		respondError(w, r, http.StatusConflict, "conflict", "the resource was modified concurrently, retry the request")
	default:
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.NewValidationError("body", err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}
