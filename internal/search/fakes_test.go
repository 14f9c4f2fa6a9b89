package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flight-aggregator/internal/models"
	"flight-aggregator/internal/normalize"
	"flight-aggregator/internal/revalidate"
	"flight-aggregator/internal/supplier"
)

type fakeAdapter struct {
	code   string
	delay  time.Duration
	routes []models.Route
	err    error
}

func (f *fakeAdapter) Code() string { return f.code }

func (f *fakeAdapter) Search(ctx context.Context, _ models.SearchCriteria) ([]models.Route, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.routes, nil
}

func (f *fakeAdapter) FareRules(context.Context, supplier.LegRequest) supplier.Outcome[[]models.FareRule] {
	return supplier.OK[[]models.FareRule](nil, nil, nil)
}

func (f *fakeAdapter) RevalidateLeg(context.Context, supplier.LegRequest) supplier.Outcome[*models.Quote] {
	return supplier.Invalid[*models.Quote]("not supported", nil, nil)
}

func (f *fakeAdapter) Book(context.Context, supplier.BookRequest) (*supplier.BookResult, error) {
	return nil, nil
}

func (f *fakeAdapter) Ticket(context.Context, supplier.TicketRequest) (*models.TicketLegResult, error) {
	return nil, nil
}

func (f *fakeAdapter) OrderDetails(context.Context, supplier.OrderRequest) (*models.OrderDetail, error) {
	return nil, nil
}

type memStore struct {
	mu      sync.Mutex
	batches map[string][]models.SearchBatch
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{batches: make(map[string][]models.SearchBatch)}
}

func (s *memStore) SaveSearchBatch(_ context.Context, b *models.SearchBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.SearchID] = append(s.batches[b.SearchID], *b)
	return nil
}

func (s *memStore) ListSearchBatches(_ context.Context, searchID string) ([]models.SearchBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SearchBatch(nil), s.batches[searchID]...), nil
}

func (s *memStore) DeleteSearchBatches(_ context.Context, searchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, searchID)
	s.deleted = append(s.deleted, searchID)
	return nil
}

type memErrorLog struct {
	mu      sync.Mutex
	entries []models.ErrorLog
}

func (l *memErrorLog) LogError(_ context.Context, e models.ErrorLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *memErrorLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type fixedRates map[string]float64

func (r fixedRates) Rate(_ context.Context, from, to string) (float64, error) {
	rate, ok := r[from+":"+to]
	if !ok {
		return 0, fmt.Errorf("%s to %s: %w", from, to, revalidate.ErrRateUnavailable)
	}
	return rate, nil
}

type staticSuppliers []string

func (s staticSuppliers) ActiveSuppliers(context.Context, string) ([]string, error) {
	return s, nil
}

var baseDeparture = time.Date(2026, 6, 12, 7, 15, 0, 0, time.UTC)

func segment(airline, number, from, to string, dep time.Time) models.Segment {
	return models.Segment{
		AirlineCode:  airline,
		FlightNumber: number,
		CabinClass:   "ECONOMY",
		Departure:    models.LocationInfo{AirportCode: from, Time: dep},
		Arrival:      models.LocationInfo{AirportCode: to, Time: dep.Add(90 * time.Minute)},
	}
}

// oneStop builds a JFK-ORD-SFO itinerary sold by provider at total
func oneStop(provider, solution string, total float64) models.Route {
	r := models.Route{
		Provider:   provider,
		SolutionID: []string{solution},
		FlightSegments: [][]models.Segment{{
			segment("UA", "100", "JFK", "ORD", baseDeparture),
			segment("UA", "200", "ORD", "SFO", baseDeparture.Add(3*time.Hour)),
		}},
		Fare: models.Fare{Currency: "USD", TotalFare: total},
	}
	normalize.Finalize(&r)
	return r
}

// splitRoundTrip pairs an outbound flight number with an inbound one
func splitRoundTrip(provider, outNumber, inNumber string, total float64) models.Route {
	r := models.Route{
		Provider:   provider,
		SolutionID: []string{provider + "-" + outNumber, provider + "-" + inNumber},
		FlightSegments: [][]models.Segment{
			{segment("DL", outNumber, "ATL", "BOS", baseDeparture)},
			{segment("DL", inNumber, "BOS", "ATL", baseDeparture.Add(96*time.Hour))},
		},
		Fare: models.Fare{Currency: "USD", TotalFare: total},
	}
	normalize.Finalize(&r)
	return r
}
