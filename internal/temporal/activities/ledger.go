package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"flight-aggregator/internal/database"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/revalidate"
	"flight-aggregator/internal/settlement"
)

type ErrorLogger interface {
	LogError(ctx context.Context, entry models.ErrorLog) error
}

// Ledger is the booking store the ticketing workflow settles into
type Ledger interface {
	ErrorLogger
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	UpdateBookingOrder(ctx context.Context, bookingID string, u models.BookingOrderUpdate) error
}

type LedgerActivities struct {
	Ledger Ledger
	Rates  revalidate.RateSource
}

func NewLedgerActivities(ledger Ledger, rates revalidate.RateSource) *LedgerActivities {
	return &LedgerActivities{Ledger: ledger, Rates: rates}
}

// RecordManualIntervention flags a booking whose legs ended in different
// states so operations can reconcile it with the supplier
func (a *LedgerActivities) RecordManualIntervention(ctx context.Context, bookingID, providerCode, message string) error {
	entry := models.ErrorLog{
		Source:   "ticketing",
		Supplier: providerCode,
		Message:  fmt.Sprintf("booking %s: %s", bookingID, message),
	}
	if err := a.Ledger.LogError(ctx, entry); err != nil {
		return fmt.Errorf("failed to record manual intervention: %w", err)
	}
	return nil
}

// RecordTicketingResult writes the ticketing outcome onto the booking row and
// returns the booking status it settled on. It runs inside the workflow, so
// the row is settled even when nobody waits for the result.
func (a *LedgerActivities) RecordTicketingResult(ctx context.Context, bookingID string, result *models.TicketingResult) (string, error) {
	b, err := a.Ledger.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrBookingNotFound) {
		return "", temporal.NewNonRetryableApplicationError(err.Error(), "BookingMissing", err)
	}
	if err != nil {
		return "", err
	}

	update, err := settlement.OrderUpdate(ctx, b, result, a.Rates)
	if err != nil {
		if lerr := a.Ledger.LogError(ctx, models.ErrorLog{
			Source:   "ticketing",
			Supplier: b.SupplierName,
			Message:  fmt.Sprintf("booking %s: repriced total not converted: %v", bookingID, err),
		}); lerr != nil {
			return "", fmt.Errorf("failed to log conversion error: %w", lerr)
		}
	}

	if err := a.Ledger.UpdateBookingOrder(ctx, bookingID, update); err != nil {
		return "", fmt.Errorf("failed to persist ticketing result: %w", err)
	}
	return update.BookingStatus, nil
}
