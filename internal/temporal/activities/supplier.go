package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/temporal"

	"flight-aggregator/internal/database"
	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/supplier"
)

// RevalidateLedger is the part of the ledger the supplier activities read
type RevalidateLedger interface {
	GetRevalidateResponse(ctx context.Context, solutionID, providerCode string) (*models.RevalidateRecord, error)
	LogError(ctx context.Context, entry models.ErrorLog) error
}

type Resolver interface {
	Lookup(code string) (supplier.Adapter, error)
}

// SupplierActivities runs one supplier call per activity. Supplier calls
// carry no idempotency key so the workflow never lets Temporal retry them.
type SupplierActivities struct {
	Ledger   RevalidateLedger
	Registry Resolver
	Metrics  *metrics.Metrics
	Log      *logrus.Logger
}

func NewSupplierActivities(ledger RevalidateLedger, registry Resolver, m *metrics.Metrics, log *logrus.Logger) *SupplierActivities {
	return &SupplierActivities{Ledger: ledger, Registry: registry, Metrics: m, Log: log}
}

// BookLeg holds a PNR for one leg. LCC fares skip the supplier call.
func (a *SupplierActivities) BookLeg(ctx context.Context, in models.BookLegInput) (*models.BookLegResult, error) {
	adapter, rec, err := a.prepare(ctx, in.ProviderCode, in.SolutionID)
	if err != nil {
		return nil, err
	}

	t0 := time.Now()
	res, err := adapter.Book(ctx, supplier.BookRequest{
		SolutionID:  in.SolutionID,
		Revalidated: rec.RawResponse,
		Passengers:  in.Passengers,
		Contact:     in.Contact,
	})
	if err != nil {
		a.Metrics.ObserveSupplierCall(in.ProviderCode, "book", metrics.OutcomeTransient, t0)
		out := &models.BookLegResult{Failed: true, Message: err.Error()}
		if res != nil {
			out.Request, out.Response = res.Request, res.Response
		}
		a.logError(ctx, "book", in.ProviderCode, err, out.Request, out.Response)
		return out, nil
	}
	a.Metrics.ObserveSupplierCall(in.ProviderCode, "book", metrics.OutcomeOK, t0)

	return &models.BookLegResult{
		IsLCC:               res.IsLCC,
		PNR:                 res.PNR,
		SupplierReferenceID: res.SupplierReferenceID,
		Request:             res.Request,
		Response:            res.Response,
	}, nil
}

// TicketLeg issues tickets for one booked leg
func (a *SupplierActivities) TicketLeg(ctx context.Context, in models.TicketLegInput) (*models.TicketLegResult, error) {
	adapter, rec, err := a.prepare(ctx, in.ProviderCode, in.SolutionID)
	if err != nil {
		return nil, err
	}

	t0 := time.Now()
	res, err := adapter.Ticket(ctx, supplier.TicketRequest{
		SolutionID:          in.SolutionID,
		Revalidated:         rec.RawResponse,
		IsLCC:               in.IsLCC,
		PNR:                 in.PNR,
		SupplierReferenceID: in.SupplierReferenceID,
		Passengers:          in.Passengers,
		Contact:             in.Contact,
		AcceptPriceChange:   in.AcceptPriceChange,
	})
	if err != nil {
		a.Metrics.ObserveSupplierCall(in.ProviderCode, "ticket", metrics.OutcomeTransient, t0)
		out := &models.TicketLegResult{Status: models.TicketFailed, Message: err.Error()}
		if res != nil {
			out.Request, out.Response = res.Request, res.Response
		}
		a.logError(ctx, "ticket", in.ProviderCode, err, out.Request, out.Response)
		return out, nil
	}

	outcome := metrics.OutcomeOK
	if res.Status != models.TicketIssued {
		outcome = metrics.OutcomeInvalid
	}
	a.Metrics.ObserveSupplierCall(in.ProviderCode, "ticket", outcome, t0)
	return res, nil
}

// FetchOrderDetails reads the supplier's view of a ticketed leg
func (a *SupplierActivities) FetchOrderDetails(ctx context.Context, in models.OrderDetailsInput) (*models.OrderDetail, error) {
	adapter, rec, err := a.prepare(ctx, in.ProviderCode, in.SolutionID)
	if err != nil {
		return nil, err
	}

	t0 := time.Now()
	order, err := adapter.OrderDetails(ctx, supplier.OrderRequest{
		SolutionID:          in.SolutionID,
		Revalidated:         rec.RawResponse,
		PNR:                 in.PNR,
		SupplierReferenceID: in.SupplierReferenceID,
	})
	if err != nil {
		a.Metrics.ObserveSupplierCall(in.ProviderCode, "order_details", metrics.OutcomeTransient, t0)
		a.logError(ctx, "order_details", in.ProviderCode, err, nil, nil)
		return nil, fmt.Errorf("failed to fetch order details: %w", err)
	}
	a.Metrics.ObserveSupplierCall(in.ProviderCode, "order_details", metrics.OutcomeOK, t0)
	return order, nil
}

func (a *SupplierActivities) prepare(ctx context.Context, providerCode, solutionID string) (supplier.Adapter, *models.RevalidateRecord, error) {
	adapter, err := a.Registry.Lookup(providerCode)
	if err != nil {
		return nil, nil, temporal.NewNonRetryableApplicationError(err.Error(), "UnknownSupplier", err)
	}

	rec, err := a.Ledger.GetRevalidateResponse(ctx, solutionID, providerCode)
	if err != nil {
		// No revalidated fare means there is nothing to book against
		if errors.Is(err, database.ErrRevalidateNotFound) {
			return nil, nil, temporal.NewNonRetryableApplicationError(err.Error(), "RevalidateMissing", err)
		}
		return nil, nil, fmt.Errorf("failed to load revalidate response: %w", err)
	}
	return adapter, rec, nil
}

func (a *SupplierActivities) logError(ctx context.Context, op, code string, err error, request, response []byte) {
	a.Log.WithError(err).WithFields(logrus.Fields{"supplier": code, "operation": op}).Warn("supplier call failed")
	if lerr := a.Ledger.LogError(ctx, supplier.NewErrorLog(op, code, err, request, response)); lerr != nil {
		a.Log.WithError(lerr).Error("failed to write error log")
	}
}
