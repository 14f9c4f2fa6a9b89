package search

import (
	"context"
	"fmt"
	"strings"

	"flight-aggregator/internal/models"
	"flight-aggregator/internal/revalidate"
)

// normalizeCurrency prices every route in currency so batches from
// suppliers quoting in different currencies can be compared. An empty
// currency leaves routes as the supplier sent them.
func normalizeCurrency(ctx context.Context, rates revalidate.RateSource, routes []models.Route, currency string) ([]models.Route, error) {
	if currency == "" {
		return routes, nil
	}
	currency = strings.ToUpper(currency)

	seen := make(map[string]float64)
	out := make([]models.Route, len(routes))
	for i := range routes {
		r := routes[i]
		from := strings.ToUpper(r.Fare.Currency)
		if from == "" || from == currency {
			out[i] = r
			continue
		}

		rate, ok := seen[from]
		if !ok {
			if rates == nil {
				return nil, fmt.Errorf("%s to %s: %w", from, currency, revalidate.ErrRateUnavailable)
			}
			var err error
			if rate, err = rates.Rate(ctx, from, currency); err != nil {
				return nil, err
			}
			seen[from] = rate
		}

		r.Fare = revalidate.ConvertFare(r.Fare, currency, rate)
		if len(r.GroupHash) > 0 {
			alts := make([]models.GroupHash, len(r.GroupHash))
			for j, g := range r.GroupHash {
				g.TotalAmount = revalidate.ConvertAmount(g.TotalAmount, rate)
				alts[j] = g
			}
			r.GroupHash = alts
		}
		out[i] = r
	}
	return out, nil
}
