package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"flight-aggregator/internal/database"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/queue"
	"flight-aggregator/internal/revalidate"
	"flight-aggregator/internal/settlement"
	"flight-aggregator/internal/temporal/activities"
)

type memLedger struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
	logs     map[string]*models.BookingLog
	details  []models.BookingAdditionalDetail
	updates  []models.BookingOrderUpdate
	statuses []string
	errors   []models.ErrorLog

	duplicate       *models.Booking
	lockedDuplicate *models.Booking
	findCalls       int
	lastGuard       *models.DuplicateQuery
	detailErr       error
}

func newMemLedger() *memLedger {
	return &memLedger{
		bookings: make(map[string]*models.Booking),
		logs:     make(map[string]*models.BookingLog),
	}
}

func (m *memLedger) FindDuplicateBooking(context.Context, models.DuplicateQuery) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	return m.duplicate, nil
}

func (m *memLedger) CreateBookingWithLog(_ context.Context, b *models.Booking, l *models.BookingLog, guard *models.DuplicateQuery) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastGuard = guard
	if guard != nil && m.lockedDuplicate != nil {
		return m.lockedDuplicate, nil
	}
	bc, lc := *b, *l
	m.bookings[b.BookingID] = &bc
	m.logs[l.LogID] = &lc
	return nil, nil
}

func (m *memLedger) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, database.ErrBookingNotFound)
	}
	bc := *b
	return &bc, nil
}

func (m *memLedger) GetBookingLog(_ context.Context, id string) (*models.BookingLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return nil, fmt.Errorf("booking log %s: %w", id, database.ErrBookingLogNotFound)
	}
	lc := *l
	return &lc, nil
}

func (m *memLedger) MarkBookingLogVerified(_ context.Context, id, txn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.logs[id]
	if l.IsVerified {
		return database.ErrAlreadyVerified
	}
	l.IsVerified = true
	l.PaymentStatus = models.PaymentCaptured
	l.TransactionID = &txn
	return nil
}

func (m *memLedger) UpdateBookingOrder(_ context.Context, id string, u models.BookingOrderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s: %w", id, database.ErrBookingNotFound)
	}
	m.updates = append(m.updates, u)
	settlement.Apply(b, u)
	return nil
}

func (m *memLedger) TransitionBookingStatus(_ context.Context, id, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[id]
	if b.BookingStatus != from {
		return false, nil
	}
	m.statuses = append(m.statuses, to)
	b.BookingStatus = to
	return true, nil
}

func (m *memLedger) LogError(_ context.Context, e models.ErrorLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, e)
	return nil
}

func (m *memLedger) SaveAdditionalDetail(_ context.Context, d *models.BookingAdditionalDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detailErr != nil {
		return m.detailErr
	}
	m.details = append(m.details, *d)
	return nil
}

type stubRevalidator struct {
	quote *models.Quote
	err   error
	reqs  []models.RevalidateRequest
}

func (s *stubRevalidator) Revalidate(_ context.Context, req models.RevalidateRequest) (*models.Quote, error) {
	s.reqs = append(s.reqs, req)
	return s.quote, s.err
}

// stubTicketer settles its canned result through the ledger activity the
// way the worker does before the workflow returns
type stubTicketer struct {
	mu     sync.Mutex
	settle *activities.LedgerActivities
	result *models.TicketingResult
	err    error
	inputs []models.TicketingInput
}

func (s *stubTicketer) Ticket(ctx context.Context, in models.TicketingInput) (*models.TicketingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	if s.result != nil && s.settle != nil {
		status, err := s.settle.RecordTicketingResult(ctx, in.BookingID, s.result)
		if err != nil {
			return nil, err
		}
		s.result.BookingStatus = status
	}
	return s.result, s.err
}

type fixedRates map[string]float64

func (r fixedRates) Rate(_ context.Context, from, to string) (float64, error) {
	rate, ok := r[from+":"+to]
	if !ok {
		return 0, fmt.Errorf("%s to %s: %w", from, to, revalidate.ErrRateUnavailable)
	}
	return rate, nil
}

type stubPublisher struct {
	events []queue.BookingConfirmedEvent
	err    error
}

func (s *stubPublisher) PublishBookingConfirmed(_ context.Context, e queue.BookingConfirmedEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

var errBroker = errors.New("broker unreachable")
