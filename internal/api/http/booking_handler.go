package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"carrental-backend/internal/config"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/security"
	"carrental-backend/internal/service"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 16

// Pinger reports whether the booking store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type BookingHandler struct {
	svc service.BookingService
}

func NewBookingHandler(svc service.BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	start, end, ok := parseRange(w, req.StartDate, req.EndDate)
	if !ok {
		return
	}

	b, err := h.svc.InitBooking(r.Context(), service.InitBookingRequest{
		CarID:     req.CarID,
		UserID:    caller.UserID,
		StartDate: start,
		EndDate:   end,
		Note:      req.Note,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	b, err := h.svc.GetBooking(r.Context(), caller, mux.Vars(r)["id"])
	h.respond(w, b, err)
}

func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req ConfirmBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	b, err := h.svc.ConfirmBooking(r.Context(), caller, mux.Vars(r)["id"], req.PaymentID)
	h.respond(w, b, err)
}

func (h *BookingHandler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	b, err := h.svc.ApproveBooking(r.Context(), caller, mux.Vars(r)["id"])
	h.respond(w, b, err)
}

func (h *BookingHandler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req ReasonRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	b, err := h.svc.RejectBooking(r.Context(), caller, mux.Vars(r)["id"], req.Reason)
	h.respond(w, b, err)
}

func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	b, err := h.svc.CompleteBooking(r.Context(), caller, mux.Vars(r)["id"])
	h.respond(w, b, err)
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req ReasonRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	b, err := h.svc.CancelBooking(r.Context(), caller, mux.Vars(r)["id"], req.Reason)
	h.respond(w, b, err)
}

func (h *BookingHandler) QuotePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, ok := parseRange(w, q.Get("start"), q.Get("end"))
	if !ok {
		return
	}
	quote, err := h.svc.QuotePrice(r.Context(), mux.Vars(r)["carId"], start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(quote))
}

func (h *BookingHandler) respond(w http.ResponseWriter, b *domain.Booking, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// HealthHandler answers 200 while the store responds to a ping.
func HealthHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "store unreachable", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NewRouter wires the booking API onto a gorilla/mux router. Route names are
// the keys of config.EndpointSecurityConfig.
func NewRouter(svc service.BookingService, tm security.TokenManager, store Pinger) *mux.Router {
	h := NewBookingHandler(svc)
	router := mux.NewRouter()
	router.Use(LoggingMiddleware, NewAuthMiddleware(tm).Handler)

	router.HandleFunc("/healthz", HealthHandler(store)).Methods(http.MethodGet).Name(config.RouteHealth)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/cars/{carId}/quote", h.QuotePrice).Methods(http.MethodGet).Name(config.RouteQuotePrice)
	api.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost).Name(config.RouteCreateBooking)
	api.HandleFunc("/bookings/{id}", h.GetBooking).Methods(http.MethodGet).Name(config.RouteGetBooking)
	api.HandleFunc("/bookings/{id}/confirm", h.ConfirmBooking).Methods(http.MethodPost).Name(config.RouteConfirmBooking)
	api.HandleFunc("/bookings/{id}/approve", h.ApproveBooking).Methods(http.MethodPost).Name(config.RouteApproveBooking)
	api.HandleFunc("/bookings/{id}/reject", h.RejectBooking).Methods(http.MethodPost).Name(config.RouteRejectBooking)
	api.HandleFunc("/bookings/{id}/complete", h.CompleteBooking).Methods(http.MethodPost).Name(config.RouteCompleteBooking)
	api.HandleFunc("/bookings/{id}/cancel", h.CancelBooking).Methods(http.MethodPost).Name(config.RouteCancelBooking)

	return router
}

func requireCaller(w http.ResponseWriter, r *http.Request) (domain.Caller, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok || caller.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "caller identity missing", nil)
		return domain.Caller{}, false
	}
	return caller, true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body: "+err.Error(), nil)
		return false
	}
	if fields := validationErrors(v); fields != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "request validation failed", fields)
		return false
	}
	return true
}

// decodeOptional accepts an empty body for endpoints whose fields are all optional.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decodeAndValidate(w, r, v)
}

func parseRange(w http.ResponseWriter, rawStart, rawEnd string) (time.Time, time.Time, bool) {
	fields := map[string]string{}
	start, err := pricing.ParseDate(rawStart)
	if err != nil {
		fields["start_date"] = err.Error()
	}
	end, err := pricing.ParseDate(rawEnd)
	if err != nil {
		fields["end_date"] = err.Error()
	}
	if len(fields) > 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid dates", fields)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
