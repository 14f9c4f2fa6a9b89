package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"flight-aggregator/internal/database"
	"flight-aggregator/internal/logger"
	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/supplier"
)

type fakeLedger struct {
	records map[string]json.RawMessage
	errors  []models.ErrorLog
}

func (l *fakeLedger) GetRevalidateResponse(_ context.Context, solutionID, providerCode string) (*models.RevalidateRecord, error) {
	raw, ok := l.records[solutionID]
	if !ok {
		return nil, fmt.Errorf("solution %s: %w", solutionID, database.ErrRevalidateNotFound)
	}
	return &models.RevalidateRecord{SolutionID: solutionID, ProviderCode: providerCode, RawResponse: raw}, nil
}

func (l *fakeLedger) LogError(_ context.Context, e models.ErrorLog) error {
	l.errors = append(l.errors, e)
	return nil
}

type fakeAdapter struct {
	bookReq   supplier.BookRequest
	ticketReq supplier.TicketRequest
	bookErr   error
	ticket    *models.TicketLegResult
	ticketErr error
}

func (f *fakeAdapter) Code() string { return "TBO" }

func (f *fakeAdapter) Search(context.Context, models.SearchCriteria) ([]models.Route, error) {
	return nil, nil
}

func (f *fakeAdapter) FareRules(context.Context, supplier.LegRequest) supplier.Outcome[[]models.FareRule] {
	return supplier.OK[[]models.FareRule](nil, nil, nil)
}

func (f *fakeAdapter) RevalidateLeg(context.Context, supplier.LegRequest) supplier.Outcome[*models.Quote] {
	return supplier.Invalid[*models.Quote]("unused", nil, nil)
}

func (f *fakeAdapter) Book(_ context.Context, req supplier.BookRequest) (*supplier.BookResult, error) {
	f.bookReq = req
	if f.bookErr != nil {
		return &supplier.BookResult{Request: json.RawMessage(`{"ResultIndex":"OB1"}`)}, f.bookErr
	}
	return &supplier.BookResult{PNR: "ABC123", SupplierReferenceID: "9001"}, nil
}

func (f *fakeAdapter) Ticket(_ context.Context, req supplier.TicketRequest) (*models.TicketLegResult, error) {
	f.ticketReq = req
	return f.ticket, f.ticketErr
}

func (f *fakeAdapter) OrderDetails(context.Context, supplier.OrderRequest) (*models.OrderDetail, error) {
	return &models.OrderDetail{Status: "Confirmed"}, nil
}

func newActivityEnv(t *testing.T, ledger *fakeLedger, adapter *fakeAdapter) (*testsuite.TestActivityEnvironment, *SupplierActivities) {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	acts := NewSupplierActivities(ledger, supplier.NewRegistry(adapter), metrics.New(prometheus.NewRegistry()), logger.Discard())
	env.RegisterActivity(acts)
	return env, acts
}

func TestBookLeg_PassesRevalidatedFare(t *testing.T) {
	ledger := &fakeLedger{records: map[string]json.RawMessage{"OB1": json.RawMessage(`{"ResultIndex":"OB1"}`)}}
	adapter := &fakeAdapter{}
	env, acts := newActivityEnv(t, ledger, adapter)

	val, err := env.ExecuteActivity(acts.BookLeg, models.BookLegInput{ProviderCode: "TBO", SolutionID: "OB1"})
	require.NoError(t, err)

	var res models.BookLegResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "ABC123", res.PNR)
	assert.JSONEq(t, `{"ResultIndex":"OB1"}`, string(adapter.bookReq.Revalidated))
}

func TestBookLeg_MissingRevalidateIsNonRetryable(t *testing.T) {
	env, acts := newActivityEnv(t, &fakeLedger{}, &fakeAdapter{})

	_, err := env.ExecuteActivity(acts.BookLeg, models.BookLegInput{ProviderCode: "TBO", SolutionID: "OB1"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "RevalidateMissing", appErr.Type())
}

func TestBookLeg_SupplierErrorIsLogged(t *testing.T) {
	ledger := &fakeLedger{records: map[string]json.RawMessage{"OB1": json.RawMessage(`{}`)}}
	env, acts := newActivityEnv(t, ledger, &fakeAdapter{bookErr: errors.New("session expired")})

	val, err := env.ExecuteActivity(acts.BookLeg, models.BookLegInput{ProviderCode: "TBO", SolutionID: "OB1"})
	require.NoError(t, err)

	var res models.BookLegResult
	require.NoError(t, val.Get(&res))
	assert.True(t, res.Failed)
	assert.Equal(t, "session expired", res.Message)
	require.Len(t, ledger.errors, 1)
	assert.Equal(t, "book", ledger.errors[0].Source)
	assert.JSONEq(t, `{"ResultIndex":"OB1"}`, string(ledger.errors[0].Request))
}

func TestTicketLeg_ForwardsPriceAcceptance(t *testing.T) {
	ledger := &fakeLedger{records: map[string]json.RawMessage{"OB1": json.RawMessage(`{}`)}}
	adapter := &fakeAdapter{ticket: &models.TicketLegResult{Status: models.TicketIssued, TicketNumbers: []string{"098-1"}}}
	env, acts := newActivityEnv(t, ledger, adapter)

	val, err := env.ExecuteActivity(acts.TicketLeg, models.TicketLegInput{
		ProviderCode: "TBO", SolutionID: "OB1", PNR: "ABC123", AcceptPriceChange: true,
	})
	require.NoError(t, err)

	var res models.TicketLegResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, models.TicketIssued, res.Status)
	assert.True(t, adapter.ticketReq.AcceptPriceChange)
	assert.Equal(t, "ABC123", adapter.ticketReq.PNR)
}

func TestTicketLeg_SupplierErrorBecomesFailedStatus(t *testing.T) {
	ledger := &fakeLedger{records: map[string]json.RawMessage{"OB1": json.RawMessage(`{}`)}}
	env, acts := newActivityEnv(t, ledger, &fakeAdapter{ticketErr: errors.New("timeout")})

	val, err := env.ExecuteActivity(acts.TicketLeg, models.TicketLegInput{ProviderCode: "TBO", SolutionID: "OB1"})
	require.NoError(t, err)

	var res models.TicketLegResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, models.TicketFailed, res.Status)
	assert.Len(t, ledger.errors, 1)
}
