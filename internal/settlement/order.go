package settlement

import (
	"context"
	"fmt"
	"math"
	"strings"

	"flight-aggregator/internal/models"
	"flight-aggregator/internal/revalidate"
)

// OrderUpdate builds the ledger update for b from a ticketing result.
//
// The quoted total stands unless a leg was ticketed after accepting a price
// change. Then the supplier's order fares become the total, converted into
// the booking currency. When that conversion is impossible the quoted total
// is kept and the error is returned next to a usable update.
func OrderUpdate(ctx context.Context, b *models.Booking, result *models.TicketingResult, rates revalidate.RateSource) (models.BookingOrderUpdate, error) {
	u := models.BookingOrderUpdate{
		BookingStatus:   Status(result),
		Total:           b.Total,
		Currency:        b.Currency,
		OriginCode:      b.OriginCode,
		DestinationCode: b.DestinationCode,
		IsRefundable:    b.IsRefundable,
	}

	var pnrs, refs, statuses []string
	complete := len(result.Legs) > 0
	repriced := false
	for _, leg := range result.Legs {
		if leg.Outcome != models.OutcomeTicketed {
			complete = false
			continue
		}
		order := leg.Order
		pnrs = appendNonEmpty(pnrs, order.PNR)
		refs = appendNonEmpty(refs, order.SupplierReferenceID)
		statuses = appendNonEmpty(statuses, order.Status)
		u.TicketNumbers = append(u.TicketNumbers, order.TicketNumbers...)
		if order.Fare.TotalFare <= 0 {
			complete = false
		}
		if leg.TicketAttempts > 1 {
			repriced = true
		}
	}
	u.PNR = strings.Join(pnrs, ",")
	u.SupplierReferenceID = strings.Join(refs, ",")
	u.SupplierStatus = strings.Join(statuses, ",")

	if !complete || !repriced {
		return u, nil
	}

	total := 0.0
	for _, leg := range result.Legs {
		fare, err := revalidate.ToCurrency(ctx, rates, leg.Order.Fare, b.Currency)
		if err != nil {
			return u, fmt.Errorf("repriced order of %s: %w", leg.SolutionID, err)
		}
		total += fare.TotalFare
	}
	u.Total = roundCents(total)
	return u, nil
}

// Apply copies u onto b
func Apply(b *models.Booking, u models.BookingOrderUpdate) {
	b.BookingStatus = u.BookingStatus
	b.SupplierStatus = u.SupplierStatus
	b.SupplierReferenceID = u.SupplierReferenceID
	b.PNR = u.PNR
	b.TicketNumbers = u.TicketNumbers
	b.IsRefundable = u.IsRefundable
	b.Total = u.Total
	b.Currency = u.Currency
	b.OriginCode = u.OriginCode
	b.DestinationCode = u.DestinationCode
}

func appendNonEmpty(s []string, v string) []string {
	if v == "" {
		return s
	}
	return append(s, v)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
