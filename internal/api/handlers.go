package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"flight-aggregator/internal/booking"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/revalidate"
	"flight-aggregator/internal/search"
	"flight-aggregator/internal/supplier"
)

type Searcher interface {
	Search(ctx context.Context, criteria models.SearchCriteria) (*models.SearchResult, error)
	CheckRouting(ctx context.Context, searchID string) (*models.SearchResult, error)
}

type Revalidator interface {
	Revalidate(ctx context.Context, req models.RevalidateRequest) (*models.Quote, error)
}

type Booker interface {
	Initiate(ctx context.Context, userID string, req models.InitiateRequest) (*models.InitiateResponse, error)
	Confirm(ctx context.Context, req models.ConfirmRequest) (*models.BookResponse, error)
}

type Handler struct {
	Search          Searcher
	Revalidator     Revalidator
	Booking         Booker
	Log             *logrus.Logger
	DefaultCurrency string

	validate *validator.Validate
}

func NewHandler(s Searcher, rv Revalidator, b Booker, log *logrus.Logger, defaultCurrency string) *Handler {
	return &Handler{
		Search:          s,
		Revalidator:     rv,
		Booking:         b,
		Log:             log,
		DefaultCurrency: defaultCurrency,
		validate:        validator.New(),
	}
}

type errorResponse struct {
	Error     bool   `json:"error"`
	Message   string `json:"message"`
	BookingID string `json:"bookingId,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Health check endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// SearchFlights fans the search out to every active supplier
func (h *Handler) SearchFlights(w http.ResponseWriter, r *http.Request) {
	var req models.SearchCriteria
	if !h.decode(w, r, &req) {
		return
	}
	if req.Currency == "" {
		req.Currency = h.DefaultCurrency
	}

	res, err := h.Search.Search(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CheckRouting returns everything persisted so far for a search
func (h *Handler) CheckRouting(w http.ResponseWriter, r *http.Request) {
	searchID := mux.Vars(r)["searchId"]

	res, err := h.Search.CheckRouting(r.Context(), searchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RevalidateFare re-prices a searched itinerary. An unavailable fare is a
// normal answer with isValid false.
func (h *Handler) RevalidateFare(w http.ResponseWriter, r *http.Request) {
	var req models.RevalidateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Currency == "" {
		req.Currency = h.DefaultCurrency
	}

	quote, err := h.Revalidator.Revalidate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// InitiateBooking locks the fare and records the booking intent
func (h *Handler) InitiateBooking(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: true, Message: "user id required"})
		return
	}

	var req models.InitiateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Currency == "" {
		req.Currency = h.DefaultCurrency
	}

	resp, err := h.Booking.Initiate(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ConfirmBooking tickets an initiated booking
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.Booking.Confirm(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: true, Message: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: true, Message: validationMessage(err)})
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: true, Message: err.Error()}

	var dup *booking.DuplicateBookingError
	if errors.As(err, &dup) {
		resp.BookingID, resp.Status = dup.BookingID, dup.Status
	}
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		if status == http.StatusInternalServerError {
			resp.Message = "internal server error"
		}
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrSearchNotFound), errors.Is(err, booking.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrDuplicateBooking), errors.Is(err, booking.ErrAlreadyConfirmed):
		return http.StatusConflict
	case errors.Is(err, booking.ErrFareUnavailable), errors.Is(err, booking.ErrReplayUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, revalidate.ErrEmptySolution), errors.Is(err, supplier.ErrUnknownSupplier):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrNoActiveSupplier), errors.Is(err, search.ErrNoResults),
		errors.Is(err, revalidate.ErrRateUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, supplier.ErrProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
