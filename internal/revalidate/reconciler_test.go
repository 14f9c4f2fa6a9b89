package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-aggregator/internal/cache"
	"flight-aggregator/internal/logger"
	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/supplier"
)

type scriptedAdapter struct {
	mu     sync.Mutex
	quotes map[string]supplier.Outcome[*models.Quote]
	rules  map[string]supplier.Outcome[[]models.FareRule]
	calls  []string
}

func (a *scriptedAdapter) Code() string { return "TBO" }

func (a *scriptedAdapter) Search(context.Context, models.SearchCriteria) ([]models.Route, error) {
	return nil, nil
}

func (a *scriptedAdapter) FareRules(_ context.Context, leg supplier.LegRequest) supplier.Outcome[[]models.FareRule] {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "rules:"+leg.SolutionID)
	if o, ok := a.rules[leg.SolutionID]; ok {
		return o
	}
	return supplier.OK([]models.FareRule{{Airline: "AI", Detail: "non refundable"}}, nil, nil)
}

func (a *scriptedAdapter) RevalidateLeg(_ context.Context, leg supplier.LegRequest) supplier.Outcome[*models.Quote] {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "quote:"+leg.SolutionID)
	return a.quotes[leg.SolutionID]
}

func (a *scriptedAdapter) Book(context.Context, supplier.BookRequest) (*supplier.BookResult, error) {
	return nil, nil
}

func (a *scriptedAdapter) Ticket(context.Context, supplier.TicketRequest) (*models.TicketLegResult, error) {
	return nil, nil
}

func (a *scriptedAdapter) OrderDetails(context.Context, supplier.OrderRequest) (*models.OrderDetail, error) {
	return nil, nil
}

type memStore struct {
	records map[string]models.RevalidateRecord
	err     error
}

func (s *memStore) SaveRevalidateResponse(_ context.Context, rec *models.RevalidateRecord) error {
	if s.err != nil {
		return s.err
	}
	if s.records == nil {
		s.records = make(map[string]models.RevalidateRecord)
	}
	s.records[rec.SolutionID] = *rec
	return nil
}

type memErrorLog struct {
	entries []models.ErrorLog
}

func (l *memErrorLog) LogError(_ context.Context, e models.ErrorLog) error {
	l.entries = append(l.entries, e)
	return nil
}

func legQuote(id string, base, tax float64, adults int) supplier.Outcome[*models.Quote] {
	q := &models.Quote{
		SolutionID:   id,
		IsValid:      true,
		IsRefundable: true,
		AirlineCode:  []string{"AI"},
		FlightSegments: [][]models.Segment{{
			{AirlineCode: "AI", FlightNumber: id},
		}},
		Fare: models.Fare{
			Currency:      "INR",
			BaseFare:      base * float64(adults),
			Tax:           tax * float64(adults),
			TotalFare:     (base + tax) * float64(adults),
			PublishedFare: (base + tax) * float64(adults),
			PaxFares:      []models.PaxFare{{PaxType: models.PaxAdult, Count: adults, BaseFare: base, Tax: tax}},
		},
	}
	raw, _ := json.Marshal(map[string]string{"ResultIndex": id})
	return supplier.OK(q, nil, raw)
}

func newTestReconciler(a *scriptedAdapter, store *memStore, errs *memErrorLog, rates RateSource) *Reconciler {
	if rates == nil {
		rates = NewCacheRates(cache.NewMemory())
	}
	return NewReconciler(supplier.NewRegistry(a), store, errs, rates,
		metrics.New(prometheus.NewRegistry()), logger.Discard())
}

func TestRevalidate_SingleLeg(t *testing.T) {
	a := &scriptedAdapter{quotes: map[string]supplier.Outcome[*models.Quote]{
		"OB1": legQuote("OB1", 100, 20, 1),
	}}
	store := &memStore{}
	r := newTestReconciler(a, store, &memErrorLog{}, nil)

	q, err := r.Revalidate(context.Background(), models.RevalidateRequest{SolutionID: "OB1", ProviderCode: "TBO"})
	require.NoError(t, err)
	assert.True(t, q.IsValid)
	assert.Equal(t, "OB1", q.SolutionID)
	assert.Equal(t, 120.0, q.Fare.TotalFare)
	assert.Len(t, q.FareRules, 1)
	assert.Contains(t, store.records, "OB1")
}

func TestRevalidate_SplitRoundTripMerges(t *testing.T) {
	a := &scriptedAdapter{quotes: map[string]supplier.Outcome[*models.Quote]{
		"OB1": legQuote("OB1", 100, 20, 2),
		"IB7": legQuote("IB7", 80, 15.5, 2),
	}}
	store := &memStore{}
	r := newTestReconciler(a, store, &memErrorLog{}, nil)

	id := "OB1" + models.SolutionSeparator + "IB7"
	q, err := r.Revalidate(context.Background(), models.RevalidateRequest{SolutionID: id, ProviderCode: "TBO"})
	require.NoError(t, err)

	assert.True(t, q.IsValid)
	assert.Equal(t, id, q.SolutionID)
	assert.Equal(t, 360.0, q.Fare.BaseFare)
	assert.Equal(t, 71.0, q.Fare.Tax)
	assert.Equal(t, 431.0, q.Fare.TotalFare)
	require.Len(t, q.Fare.PaxFares, 1)
	assert.Equal(t, models.PaxFare{PaxType: models.PaxAdult, Count: 2, BaseFare: 180, Tax: 35.5}, q.Fare.PaxFares[0])
	require.Len(t, q.FlightSegments, 2)
	assert.Equal(t, "OB1", q.FlightSegments[0][0].FlightNumber)
	assert.Equal(t, "IB7", q.FlightSegments[1][0].FlightNumber)
	assert.Equal(t, []string{"AI", "AI"}, q.AirlineCode)
	assert.Len(t, q.FareRules, 2)
	assert.Len(t, store.records, 2)
}

func TestRevalidate_FirstLegInvalidSkipsSecond(t *testing.T) {
	a := &scriptedAdapter{quotes: map[string]supplier.Outcome[*models.Quote]{
		"OB1": supplier.Invalid[*models.Quote]("fare not available", nil, nil),
		"IB7": legQuote("IB7", 80, 15, 1),
	}}
	r := newTestReconciler(a, &memStore{}, &memErrorLog{}, nil)

	q, err := r.Revalidate(context.Background(), models.RevalidateRequest{
		SolutionID:   "OB1" + models.SolutionSeparator + "IB7",
		ProviderCode: "TBO",
	})
	require.NoError(t, err)
	assert.False(t, q.IsValid)
	assert.Equal(t, "fare not available", q.Message)
	assert.Equal(t, []string{"rules:OB1", "quote:OB1"}, a.calls)
}

func TestRevalidate_FareRulesInvalidStopsLeg(t *testing.T) {
	a := &scriptedAdapter{
		quotes: map[string]supplier.Outcome[*models.Quote]{"OB1": legQuote("OB1", 100, 20, 1)},
		rules: map[string]supplier.Outcome[[]models.FareRule]{
			"OB1": supplier.Invalid[[]models.FareRule]("result index expired", nil, nil),
		},
	}
	r := newTestReconciler(a, &memStore{}, &memErrorLog{}, nil)

	q, err := r.Revalidate(context.Background(), models.RevalidateRequest{SolutionID: "OB1", ProviderCode: "TBO"})
	require.NoError(t, err)
	assert.False(t, q.IsValid)
	assert.Equal(t, []string{"rules:OB1"}, a.calls)
}

func TestRevalidate_FareRulesTransientIsLogged(t *testing.T) {
	a := &scriptedAdapter{
		quotes: map[string]supplier.Outcome[*models.Quote]{"OB1": legQuote("OB1", 100, 20, 1)},
		rules: map[string]supplier.Outcome[[]models.FareRule]{
			"OB1": supplier.Transient[[]models.FareRule](errors.New("gateway timeout"), nil, nil),
		},
	}
	errs := &memErrorLog{}
	r := newTestReconciler(a, &memStore{}, errs, nil)

	q, err := r.Revalidate(context.Background(), models.RevalidateRequest{SolutionID: "OB1", ProviderCode: "TBO"})
	require.NoError(t, err)
	assert.True(t, q.IsValid)
	assert.Empty(t, q.FareRules)
	require.Len(t, errs.entries, 1)
	assert.Equal(t, "fare_rules", errs.entries[0].Source)
}

func TestRevalidate_QuoteTransientIsProviderError(t *testing.T) {
	a := &scriptedAdapter{quotes: map[string]supplier.Outcome[*models.Quote]{
		"OB1": supplier.Transient[*models.Quote](errors.New("connection reset"), nil, nil),
	}}
	errs := &memErrorLog{}
	store := &memStore{}
	r := newTestReconciler(a, store, errs, nil)

	_, err := r.Revalidate(context.Background(), models.RevalidateRequest{SolutionID: "OB1", ProviderCode: "TBO"})
	assert.ErrorIs(t, err, supplier.ErrProvider)
	assert.Len(t, errs.entries, 1)
	assert.Empty(t, store.records)
}

func TestRevalidate_PersistFailureIsHardError(t *testing.T) {
	a := &scriptedAdapter{quotes: map[string]supplier.Outcome[*models.Quote]{
		"OB1": legQuote("OB1", 100, 20, 1),
	}}
	dbErr := errors.New("deadlock")
	r := newTestReconciler(a, &memStore{err: dbErr}, &memErrorLog{}, nil)

	_, err := r.Revalidate(context.Background(), models.RevalidateRequest{SolutionID: "OB1", ProviderCode: "TBO"})
	assert.ErrorIs(t, err, dbErr)
}

func TestRevalidate_UnknownSupplier(t *testing.T) {
	r := newTestReconciler(&scriptedAdapter{}, &memStore{}, &memErrorLog{}, nil)

	_, err := r.Revalidate(context.Background(), models.RevalidateRequest{SolutionID: "OB1", ProviderCode: "NOPE"})
	assert.ErrorIs(t, err, supplier.ErrUnknownSupplier)
}

func TestRevalidate_ConvertsCurrency(t *testing.T) {
	a := &scriptedAdapter{quotes: map[string]supplier.Outcome[*models.Quote]{
		"OB1": legQuote("OB1", 1000, 250, 2),
	}}
	mem := cache.NewMemory()
	require.NoError(t, mem.Set(context.Background(), "fx:INR:USD", "0.012", 0))
	r := newTestReconciler(a, &memStore{}, &memErrorLog{}, NewCacheRates(mem))

	q, err := r.Revalidate(context.Background(), models.RevalidateRequest{
		SolutionID: "OB1", ProviderCode: "TBO", Currency: "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", q.Fare.Currency)
	assert.Equal(t, 24.0, q.Fare.BaseFare)
	assert.Equal(t, 6.0, q.Fare.Tax)
	assert.Equal(t, 30.0, q.Fare.TotalFare)
}

func TestRevalidate_MissingRate(t *testing.T) {
	a := &scriptedAdapter{quotes: map[string]supplier.Outcome[*models.Quote]{
		"OB1": legQuote("OB1", 1000, 250, 1),
	}}
	r := newTestReconciler(a, &memStore{}, &memErrorLog{}, nil)

	_, err := r.Revalidate(context.Background(), models.RevalidateRequest{
		SolutionID: "OB1", ProviderCode: "TBO", Currency: "EUR",
	})
	assert.ErrorIs(t, err, ErrRateUnavailable)
}
