// Package booking turns a revalidated fare into a ticketed order. Initiate
// locks the price and records intent; Confirm replays the stored intent
// through the ticketing workflow, which settles the booking in the ledger.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flight-aggregator/internal/database"
	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/queue"
	"flight-aggregator/internal/revalidate"
	"flight-aggregator/internal/settlement"
	"flight-aggregator/internal/temporal/workflows"
)

type Ledger interface {
	FindDuplicateBooking(ctx context.Context, q models.DuplicateQuery) (*models.Booking, error)
	CreateBookingWithLog(ctx context.Context, b *models.Booking, l *models.BookingLog, guard *models.DuplicateQuery) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	GetBookingLog(ctx context.Context, logID string) (*models.BookingLog, error)
	MarkBookingLogVerified(ctx context.Context, logID, transactionID string) error
	TransitionBookingStatus(ctx context.Context, bookingID, from, to string) (bool, error)
	SaveAdditionalDetail(ctx context.Context, d *models.BookingAdditionalDetail) error
}

type Revalidator interface {
	Revalidate(ctx context.Context, req models.RevalidateRequest) (*models.Quote, error)
}

type Ticketer interface {
	Ticket(ctx context.Context, input models.TicketingInput) (*models.TicketingResult, error)
}

type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
}

type Options struct {
	EnforceDuplicateGuard bool
	MaxTicketAttempts     int
}

type Orchestrator struct {
	ledger      Ledger
	revalidator Revalidator
	ticketer    Ticketer
	publisher   Publisher
	metrics     *metrics.Metrics
	log         *logrus.Logger
	opts        Options

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(ledger Ledger, revalidator Revalidator, ticketer Ticketer, publisher Publisher,
	m *metrics.Metrics, log *logrus.Logger, opts Options) *Orchestrator {
	if opts.MaxTicketAttempts < 1 {
		opts.MaxTicketAttempts = workflows.DefaultMaxTicketAttempts
	}
	return &Orchestrator{
		ledger:      ledger,
		revalidator: revalidator,
		ticketer:    ticketer,
		publisher:   publisher,
		metrics:     m,
		log:         log,
		opts:        opts,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// Initiate re-prices the itinerary and records the booking intent. No
// supplier booking call happens here.
func (o *Orchestrator) Initiate(ctx context.Context, userID string, req models.InitiateRequest) (*models.InitiateResponse, error) {
	paxes := CountPassengers(req.Passengers, o.now())

	quote, err := o.revalidator.Revalidate(ctx, models.RevalidateRequest{
		SolutionID:   req.SolutionID,
		SearchReqID:  req.SearchReqID,
		ProviderCode: req.ProviderCode,
		Routes:       req.Routes,
		Paxes:        paxes,
		Currency:     req.Currency,
	})
	if err != nil {
		return nil, err
	}
	if !quote.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrFareUnavailable, quote.Message)
	}

	b, err := o.newBooking(userID, req, paxes, quote)
	if err != nil {
		return nil, err
	}

	var guard *models.DuplicateQuery
	if o.opts.EnforceDuplicateGuard {
		guard = &models.DuplicateQuery{
			UserID:      userID,
			Origin:      firstOf(b.OriginCode),
			Destination: lastOf(b.DestinationCode),
			Checkin:     b.Checkin,
			Checkout:    b.Checkout,
			Supplier:    b.SupplierName,
			JourneyType: b.JourneyType,
			Paxes:       paxes,
		}
		dup, err := o.ledger.FindDuplicateBooking(ctx, *guard)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			return nil, &DuplicateBookingError{BookingID: dup.BookingID, Status: dup.BookingStatus}
		}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode booking request: %w", err)
	}
	l := &models.BookingLog{
		LogID:              o.newID(),
		BookingReferenceID: b.BookingReferenceID,
		UserID:             userID,
		PaymentStatus:      models.PaymentPending,
		Data:               data,
	}

	dup, err := o.ledger.CreateBookingWithLog(ctx, b, l, guard)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, &DuplicateBookingError{BookingID: dup.BookingID, Status: dup.BookingStatus}
	}

	o.metrics.Bookings.WithLabelValues(models.StatusInProgress).Inc()
	o.log.WithFields(logrus.Fields{
		"bookingId": b.BookingID,
		"logId":     l.LogID,
		"supplier":  b.SupplierName,
	}).Info("booking initiated")

	return &models.InitiateResponse{
		BookingLogID: l.LogID,
		BookingID:    b.BookingID,
		Fare:         quote.Fare,
	}, nil
}

func (o *Orchestrator) newBooking(userID string, req models.InitiateRequest, paxes models.PaxCount, quote *models.Quote) (*models.Booking, error) {
	if len(req.Routes) == 0 {
		return nil, fmt.Errorf("booking request has no routes")
	}

	b := &models.Booking{
		BookingID:          o.newID(),
		BookingReferenceID: o.newID(),
		UserID:             userID,
		SupplierName:       req.ProviderCode,
		BookingStatus:      models.StatusInProgress,
		JourneyType:        req.JourneyType,
		Paxes:              paxes,
		Total:              quote.Fare.TotalFare,
		Currency:           quote.Fare.Currency,
		IsRefundable:       quote.IsRefundable,
	}
	for _, r := range req.Routes {
		b.OriginCode = append(b.OriginCode, r.Origin)
		b.DestinationCode = append(b.DestinationCode, r.Destination)
	}

	checkin, err := time.Parse("2006-01-02", req.Routes[0].DepartureDate)
	if err != nil {
		return nil, fmt.Errorf("invalid departure date %q: %w", req.Routes[0].DepartureDate, err)
	}
	b.Checkin = checkin
	if req.JourneyType == models.JourneyRoundTrip && len(req.Routes) > 1 {
		checkout, err := time.Parse("2006-01-02", req.Routes[len(req.Routes)-1].DepartureDate)
		if err != nil {
			return nil, fmt.Errorf("invalid return date %q: %w", req.Routes[len(req.Routes)-1].DepartureDate, err)
		}
		b.Checkout = checkout
	}
	return b, nil
}

// Confirm tickets a previously initiated booking. The ticketing input is
// rebuilt from the request stored at initiate, never from the caller. The
// ticketing workflow settles the booking row itself; Confirm only reads it.
func (o *Orchestrator) Confirm(ctx context.Context, req models.ConfirmRequest) (*models.BookResponse, error) {
	b, err := o.ledger.GetBooking(ctx, req.BookingID)
	if errors.Is(err, database.ErrBookingNotFound) {
		return nil, fmt.Errorf("%s: %w", req.BookingID, ErrBookingNotFound)
	}
	if err != nil {
		return nil, err
	}

	l, err := o.ledger.GetBookingLog(ctx, req.BookingLogID)
	if errors.Is(err, database.ErrBookingLogNotFound) {
		return nil, fmt.Errorf("log %s: %w", req.BookingLogID, ErrBookingNotFound)
	}
	if err != nil {
		return nil, err
	}
	if l.BookingReferenceID != b.BookingReferenceID {
		return nil, fmt.Errorf("log %s does not belong to booking %s: %w", l.LogID, b.BookingID, ErrBookingNotFound)
	}
	if l.IsVerified {
		return nil, ErrAlreadyConfirmed
	}

	var stored models.InitiateRequest
	if len(l.Data) == 0 {
		return nil, ErrReplayUnavailable
	}
	if err := json.Unmarshal(l.Data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReplayUnavailable, err)
	}

	if err := o.ledger.MarkBookingLogVerified(ctx, l.LogID, o.newID()); err != nil {
		if errors.Is(err, database.ErrAlreadyVerified) {
			return nil, ErrAlreadyConfirmed
		}
		return nil, err
	}

	entry := o.log.WithFields(logrus.Fields{"bookingId": b.BookingID, "logId": l.LogID})
	entry.Info("confirming booking")

	result, err := o.ticketer.Ticket(ctx, models.TicketingInput{
		BookingID:         b.BookingID,
		BookingLogID:      l.LogID,
		ProviderCode:      stored.ProviderCode,
		JourneyType:       stored.JourneyType,
		SolutionIDs:       revalidate.SplitSolution(stored.SolutionID),
		Passengers:        WithPaxTypes(stored.Passengers, o.now()),
		Contact:           stored.Contact,
		MaxTicketAttempts: o.opts.MaxTicketAttempts,
	})
	if err != nil {
		if errors.Is(err, workflows.ErrTicketingStarted) {
			return nil, ErrAlreadyConfirmed
		}
		// the supplier may or may not have ticketed; a row the workflow
		// already settled keeps its status
		entry.WithError(err).Error("ticketing did not complete")
		moved, uerr := o.ledger.TransitionBookingStatus(ctx, b.BookingID, models.StatusInProgress, models.StatusPending)
		if uerr != nil {
			entry.WithError(uerr).Error("failed to mark booking pending")
		}
		if moved {
			o.metrics.Bookings.WithLabelValues(models.StatusPending).Inc()
		}
		return nil, fmt.Errorf("ticketing failed: %w", err)
	}

	status := result.BookingStatus
	if status == "" {
		status = settlement.Status(result)
	}
	settled, err := o.ledger.GetBooking(ctx, b.BookingID)
	if err != nil {
		entry.WithError(err).Warn("failed to reload settled booking")
		b.BookingStatus = status
	} else {
		b = settled
	}

	resp := &models.BookResponse{
		OrderDetail:  orders(result),
		OrderDetails: b,
		Error:        status == models.StatusFailed,
		Message:      result.Message,
	}

	o.metrics.Bookings.WithLabelValues(status).Inc()
	for _, leg := range result.Legs {
		if leg.TicketAttempts > 0 {
			o.metrics.TicketAttempts.Observe(float64(leg.TicketAttempts))
		}
	}

	o.saveAudit(ctx, entry, b.BookingID, l.Data, result, resp)
	if status == models.StatusConfirmed {
		o.publishConfirmed(ctx, entry, b)
	}

	entry.WithFields(logrus.Fields{"status": status, "outcome": result.Outcome}).Info("booking confirmed")
	return resp, nil
}

func (o *Orchestrator) saveAudit(ctx context.Context, entry *logrus.Entry, bookingID string, apiRequest json.RawMessage,
	result *models.TicketingResult, resp *models.BookResponse) {
	var requests, responses []json.RawMessage
	for _, leg := range result.Legs {
		requests = append(requests, nonNullJSON(leg.Request))
		responses = append(responses, nonNullJSON(leg.Response))
	}
	supplierReq, _ := json.Marshal(requests)
	supplierResp, _ := json.Marshal(responses)
	apiResp, _ := json.Marshal(resp)

	err := o.ledger.SaveAdditionalDetail(ctx, &models.BookingAdditionalDetail{
		BookingID:        bookingID,
		SupplierRequest:  supplierReq,
		SupplierResponse: supplierResp,
		APIRequest:       apiRequest,
		APIResponse:      apiResp,
	})
	if err != nil {
		entry.WithError(err).Warn("failed to save booking audit detail")
	}
}

func (o *Orchestrator) publishConfirmed(ctx context.Context, entry *logrus.Entry, b *models.Booking) {
	event := queue.BookingConfirmedEvent{
		BookingID:          b.BookingID,
		BookingReferenceID: b.BookingReferenceID,
		UserID:             b.UserID,
		Supplier:           b.SupplierName,
		JourneyType:        b.JourneyType,
		PNR:                b.PNR,
		TicketNumbers:      b.TicketNumbers,
		Origin:             b.OriginCode,
		Destination:        b.DestinationCode,
		Checkin:            b.Checkin.Format("2006-01-02"),
		Total:              b.Total,
		Currency:           b.Currency,
		ConfirmedAt:        o.now().UTC().Format(time.RFC3339),
	}
	if err := o.publisher.PublishBookingConfirmed(ctx, event); err != nil {
		entry.WithError(err).Warn("failed to publish booking.confirmed")
	}
}

func orders(result *models.TicketingResult) []models.OrderDetail {
	out := make([]models.OrderDetail, 0, len(result.Legs))
	for _, leg := range result.Legs {
		if leg.Outcome == models.OutcomeTicketed {
			out = append(out, leg.Order)
		}
	}
	return out
}

func nonNullJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func lastOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}
