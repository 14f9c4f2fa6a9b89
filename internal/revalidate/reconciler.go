// Package revalidate re-confirms the price of a searched itinerary right
// before booking. Round trips sold as two one-way solutions are revalidated
// leg by leg and merged back into one quote.
package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/supplier"
)

var ErrEmptySolution = errors.New("solution id has no legs")

type Resolver interface {
	Lookup(code string) (supplier.Adapter, error)
}

// Store persists the raw fare quote of each leg for the booking step
type Store interface {
	SaveRevalidateResponse(ctx context.Context, rec *models.RevalidateRecord) error
}

type ErrorLogger interface {
	LogError(ctx context.Context, entry models.ErrorLog) error
}

type Reconciler struct {
	registry Resolver
	store    Store
	errorLog ErrorLogger
	rates    RateSource
	metrics  *metrics.Metrics
	log      *logrus.Logger
}

func NewReconciler(registry Resolver, store Store, errorLog ErrorLogger, rates RateSource,
	m *metrics.Metrics, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		store:    store,
		errorLog: errorLog,
		rates:    rates,
		metrics:  m,
		log:      log,
	}
}

// SplitSolution returns the per-leg solution ids of a (possibly joined) id
func SplitSolution(solutionID string) []string {
	var legs []string
	for _, part := range strings.Split(solutionID, models.SolutionSeparator) {
		if p := strings.TrimSpace(part); p != "" {
			legs = append(legs, p)
		}
	}
	return legs
}

// Revalidate prices every leg in order and stops at the first invalid one.
// An invalid itinerary is returned as a quote with IsValid false and no error.
func (r *Reconciler) Revalidate(ctx context.Context, req models.RevalidateRequest) (*models.Quote, error) {
	legs := SplitSolution(req.SolutionID)
	if len(legs) == 0 {
		return nil, ErrEmptySolution
	}
	adapter, err := r.registry.Lookup(req.ProviderCode)
	if err != nil {
		return nil, err
	}

	quotes := make([]*models.Quote, 0, len(legs))
	for i, id := range legs {
		leg := supplier.LegRequest{
			SolutionID: id,
			SearchID:   req.SearchReqID,
			Route:      legRoute(req.Routes, i, len(legs)),
			Paxes:      req.Paxes,
		}
		q, err := r.revalidateLeg(ctx, adapter, leg, req.Currency)
		if err != nil {
			return nil, err
		}
		if !q.IsValid {
			r.log.WithFields(logrus.Fields{
				"solutionId": req.SolutionID,
				"leg":        i,
				"reason":     q.Message,
			}).Info("leg no longer bookable")
			return &models.Quote{
				SolutionID:   req.SolutionID,
				ProviderCode: req.ProviderCode,
				IsValid:      false,
				Message:      q.Message,
			}, nil
		}
		quotes = append(quotes, q)
	}

	if len(quotes) == 1 {
		quotes[0].SolutionID = req.SolutionID
		return quotes[0], nil
	}
	return MergeQuotes(req.SolutionID, quotes), nil
}

func (r *Reconciler) revalidateLeg(ctx context.Context, adapter supplier.Adapter, leg supplier.LegRequest, currency string) (*models.Quote, error) {
	code := adapter.Code()

	t0 := time.Now()
	rules := adapter.FareRules(ctx, leg)
	r.metrics.ObserveSupplierCall(code, "fare_rules", rules.Status.String(), t0)
	var fareRules []models.FareRule
	switch rules.Status {
	case supplier.StatusOK:
		fareRules = rules.Value
	case supplier.StatusInvalid:
		return &models.Quote{SolutionID: leg.SolutionID, ProviderCode: code, IsValid: false, Message: rules.Reason}, nil
	case supplier.StatusTransient:
		// quoting still decides validity; the missing rules are only logged
		r.logSupplierError(ctx, "fare_rules", code, rules.Err, rules.Request, rules.Raw)
	}

	t0 = time.Now()
	out := adapter.RevalidateLeg(ctx, leg)
	r.metrics.ObserveSupplierCall(code, "fare_quote", out.Status.String(), t0)
	switch out.Status {
	case supplier.StatusOK:
	case supplier.StatusInvalid:
		return &models.Quote{SolutionID: leg.SolutionID, ProviderCode: code, IsValid: false, Message: out.Reason}, nil
	case supplier.StatusTransient:
		r.logSupplierError(ctx, "fare_quote", code, out.Err, out.Request, out.Raw)
		return nil, supplier.NewProviderError(code, "fare_quote", out.Err)
	default:
		return nil, fmt.Errorf("unexpected fare quote status %v", out.Status)
	}

	rec := &models.RevalidateRecord{SolutionID: leg.SolutionID, ProviderCode: code, RawResponse: out.Raw}
	if err := r.store.SaveRevalidateResponse(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist revalidate response: %w", err)
	}

	q := out.Value
	if q == nil {
		return &models.Quote{SolutionID: leg.SolutionID, ProviderCode: code, IsValid: false, Message: "empty fare quote"}, nil
	}
	q.ProviderCode = code
	q.FareRules = fareRules

	fare, err := ToCurrency(ctx, r.rates, q.Fare, currency)
	if err != nil {
		return nil, err
	}
	q.Fare = fare
	return q, nil
}

func (r *Reconciler) logSupplierError(ctx context.Context, op, code string, err error, request, response json.RawMessage) {
	r.log.WithError(err).WithFields(logrus.Fields{"supplier": code, "operation": op}).Warn("supplier call failed")
	if lerr := r.errorLog.LogError(ctx, supplier.NewErrorLog(op, code, err, request, response)); lerr != nil {
		r.log.WithError(lerr).Error("failed to write error log")
	}
}

func legRoute(routes []models.RouteInfo, i, legs int) models.RouteInfo {
	if len(routes) == 0 {
		return models.RouteInfo{}
	}
	if len(routes) == legs {
		return routes[i]
	}
	return routes[0]
}
