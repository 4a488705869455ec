package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Fields: fields}})
}

// writeServiceError translates booking errors into HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		ire *domain.InvalidRangeError
		nfe *domain.NotFoundError
		sue *domain.SlotUnavailableError
		ite *domain.InvalidTransitionError
		pue *domain.PaymentUnverifiedError
		rce *domain.RateConfigError
		ce  *domain.CollaboratorError
	)
	switch {
	case errors.As(err, &ire):
		writeError(w, http.StatusBadRequest, "invalid_range", ire.Error(), nil)
	case errors.As(err, &nfe):
		writeError(w, http.StatusNotFound, "not_found", nfe.Error(), nil)
	case errors.As(err, &sue):
		body := ErrorBody{Code: "slot_unavailable", Message: sue.Error()}
		if sue.Conflict != nil {
			body.Conflict = &ConflictResponse{
				BookingID: sue.Conflict.BookingID,
				StartDate: sue.Conflict.StartDate,
				EndDate:   sue.Conflict.EndDate,
				Status:    string(sue.Conflict.Status),
			}
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: body})
	case errors.As(err, &ite):
		if errors.Is(err, domain.ErrNotOwner) || errors.Is(err, domain.ErrNotBookingParty) {
			writeError(w, http.StatusForbidden, "forbidden", ite.Error(), nil)
			return
		}
		writeError(w, http.StatusConflict, "invalid_transition", ite.Error(), nil)
	case errors.As(err, &pue):
		writeError(w, http.StatusPaymentRequired, "payment_unverified", pue.Error(), nil)
	case errors.As(err, &rce):
		logger.Error("Rate configuration error", "carID", rce.CarID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "pricing is unavailable for this car", nil)
	case errors.As(err, &ce):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable, please retry", nil)
	default:
		logger.Error("Unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}
