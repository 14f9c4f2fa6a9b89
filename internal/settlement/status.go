// Package settlement turns a ticketing result into the booking row it
// settles: the booking status and the order fields written to the ledger.
package settlement

import (
	"strings"

	"flight-aggregator/internal/models"
)

// Status maps a ticketing result onto the booking state machine.
// A fully ticketed booking is CONFIRMED only when every leg's supplier status
// says so; anything still settling on the supplier side stays PENDING.
func Status(result *models.TicketingResult) string {
	switch result.Outcome {
	case models.OutcomeTicketed:
		for _, leg := range result.Legs {
			if !supplierConfirmed(leg.Order.Status) {
				return models.StatusPending
			}
		}
		return models.StatusConfirmed
	case models.OutcomePartiallyTicketed:
		return models.StatusPending
	case models.OutcomePriceChangedExhausted, models.OutcomeFailed:
		return models.StatusFailed
	}
	return models.StatusFailed
}

func supplierConfirmed(status string) bool {
	switch strings.ToLower(strings.ReplaceAll(status, " ", "")) {
	case "confirmed", "ticketed", "issued", "booked", "success", "successful":
		return true
	}
	return false
}
