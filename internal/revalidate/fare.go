package revalidate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"flight-aggregator/internal/cache"
	"flight-aggregator/internal/models"
)

var ErrRateUnavailable = errors.New("currency rate unavailable")

// RateSource returns the multiplier converting amounts in from into to
type RateSource interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// CacheRates reads rates written by the rate refresher under fx:FROM:TO
type CacheRates struct {
	cache cache.Cache
}

func NewCacheRates(c cache.Cache) *CacheRates {
	return &CacheRates{cache: c}
}

func (r *CacheRates) Rate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, nil
	}
	v, err := r.cache.Get(ctx, "fx:"+from+":"+to)
	if errors.Is(err, cache.ErrMiss) {
		return 0, fmt.Errorf("%s to %s: %w", from, to, ErrRateUnavailable)
	}
	if err != nil {
		return 0, fmt.Errorf("read rate %s to %s: %w", from, to, err)
	}
	rate, err := strconv.ParseFloat(v, 64)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("bad rate %q for %s to %s: %w", v, from, to, ErrRateUnavailable)
	}
	return rate, nil
}

// ToCurrency returns f expressed in currency. Fares without a currency or
// already in currency come back unchanged.
func ToCurrency(ctx context.Context, rates RateSource, f models.Fare, currency string) (models.Fare, error) {
	if currency == "" || f.Currency == "" || strings.EqualFold(currency, f.Currency) {
		return f, nil
	}
	if rates == nil {
		return f, fmt.Errorf("%s to %s: %w", f.Currency, currency, ErrRateUnavailable)
	}
	rate, err := rates.Rate(ctx, f.Currency, currency)
	if err != nil {
		return f, err
	}
	return ConvertFare(f, strings.ToUpper(currency), rate), nil
}

// ConvertAmount converts a single amount, rounding up to the cent
func ConvertAmount(v, rate float64) float64 {
	return ceilCents(v * rate)
}

// ConvertFare converts f with rate. Per-passenger unit amounts are rounded up
// to the cent before they are multiplied by the passenger count.
func ConvertFare(f models.Fare, to string, rate float64) models.Fare {
	out := models.Fare{Currency: to}
	if len(f.PaxFares) > 0 {
		out.PaxFares = make([]models.PaxFare, len(f.PaxFares))
		for i, pf := range f.PaxFares {
			unitBase := ceilCents(pf.BaseFare * rate)
			unitTax := ceilCents(pf.Tax * rate)
			out.PaxFares[i] = models.PaxFare{PaxType: pf.PaxType, Count: pf.Count, BaseFare: unitBase, Tax: unitTax}
			out.BaseFare += unitBase * float64(pf.Count)
			out.Tax += unitTax * float64(pf.Count)
		}
	} else {
		out.BaseFare = ceilCents(f.BaseFare * rate)
		out.Tax = ceilCents(f.Tax * rate)
	}
	out.BaseFare = roundCents(out.BaseFare)
	out.Tax = roundCents(out.Tax)
	out.ServiceFee = ceilCents(f.ServiceFee * rate)
	out.OtherCharges = ceilCents(f.OtherCharges * rate)
	out.TotalFare = roundCents(out.BaseFare + out.Tax + out.ServiceFee + out.OtherCharges)
	if out.TotalFare == 0 {
		// supplier sent a total without a breakdown
		out.TotalFare = ceilCents(f.TotalFare * rate)
	}
	out.PublishedFare = ceilCents(f.PublishedFare * rate)
	if out.PublishedFare < out.TotalFare {
		out.PublishedFare = out.TotalFare
	}
	return out
}

// MergeQuotes folds per-leg quotes into one itinerary quote carrying solutionID
func MergeQuotes(solutionID string, legs []*models.Quote) *models.Quote {
	merged := &models.Quote{
		SolutionID:   solutionID,
		IsValid:      true,
		IsRefundable: true,
	}
	for i, q := range legs {
		if i == 0 {
			merged.ProviderCode = q.ProviderCode
			merged.Fare.Currency = q.Fare.Currency
		}
		merged.IsValid = merged.IsValid && q.IsValid
		merged.IsLCC = merged.IsLCC || q.IsLCC
		merged.IsRefundable = merged.IsRefundable && q.IsRefundable
		merged.IsPriceChanged = merged.IsPriceChanged || q.IsPriceChanged
		merged.AirlineCode = append(merged.AirlineCode, q.AirlineCode...)
		merged.FlightSegments = append(merged.FlightSegments, q.FlightSegments...)
		merged.DepartureInfo = append(merged.DepartureInfo, q.DepartureInfo...)
		merged.ArrivalInfo = append(merged.ArrivalInfo, q.ArrivalInfo...)
		merged.FareRules = append(merged.FareRules, q.FareRules...)
		merged.Fare = addFares(merged.Fare, q.Fare)
	}
	return merged
}

func addFares(a, b models.Fare) models.Fare {
	out := models.Fare{
		Currency:      a.Currency,
		BaseFare:      roundCents(a.BaseFare + b.BaseFare),
		Tax:           roundCents(a.Tax + b.Tax),
		PublishedFare: roundCents(a.PublishedFare + b.PublishedFare),
		ServiceFee:    roundCents(a.ServiceFee + b.ServiceFee),
		OtherCharges:  roundCents(a.OtherCharges + b.OtherCharges),
		TotalFare:     roundCents(a.TotalFare + b.TotalFare),
	}
	if out.Currency == "" {
		out.Currency = b.Currency
	}

	byType := make(map[string]int)
	for _, pf := range a.PaxFares {
		byType[pf.PaxType] = len(out.PaxFares)
		out.PaxFares = append(out.PaxFares, pf)
	}
	for _, pf := range b.PaxFares {
		idx, ok := byType[pf.PaxType]
		if !ok {
			byType[pf.PaxType] = len(out.PaxFares)
			out.PaxFares = append(out.PaxFares, pf)
			continue
		}
		cur := &out.PaxFares[idx]
		cur.BaseFare = roundCents(cur.BaseFare + pf.BaseFare)
		cur.Tax = roundCents(cur.Tax + pf.Tax)
		if pf.Count > cur.Count {
			cur.Count = pf.Count
		}
	}
	return out
}

// ceilCents rounds up to the cent, ignoring binary noise below 1e-6 cents
func ceilCents(v float64) float64 {
	cents := math.Round(v*100*1e6) / 1e6
	return math.Ceil(cents) / 100
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
