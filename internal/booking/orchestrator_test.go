package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-aggregator/internal/logger"
	"flight-aggregator/internal/metrics"
	"flight-aggregator/internal/models"
	"flight-aggregator/internal/supplier"
	"flight-aggregator/internal/temporal/activities"
	"flight-aggregator/internal/temporal/workflows"
)

var today = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	ledger      *memLedger
	revalidator *stubRevalidator
	ticketer    *stubTicketer
	publisher   *stubPublisher
	orch        *Orchestrator
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		ledger: newMemLedger(),
		revalidator: &stubRevalidator{quote: &models.Quote{
			IsValid: true, IsRefundable: true,
			Fare: models.Fare{Currency: "USD", TotalFare: 431},
		}},
		publisher: &stubPublisher{},
	}
	f.ticketer = &stubTicketer{settle: activities.NewLedgerActivities(f.ledger, fixedRates{"INR:USD": 0.012})}
	f.orch = NewOrchestrator(f.ledger, f.revalidator, f.ticketer, f.publisher,
		metrics.New(prometheus.NewRegistry()), logger.Discard(), opts)
	f.orch.now = func() time.Time { return today }
	n := 0
	f.orch.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return f
}

func roundTripRequest() models.InitiateRequest {
	return models.InitiateRequest{
		SolutionID:   "OB1" + models.SolutionSeparator + "IB7",
		SearchReqID:  "search-1",
		ProviderCode: "TBO",
		JourneyType:  models.JourneyRoundTrip,
		Passengers: []models.Passenger{
			{FirstName: "Ada", LastName: "Lovelace", DateOfBirth: "1990-04-01", IsLead: true},
			{FirstName: "Alan", LastName: "Turing", PaxType: models.PaxAdult},
			{FirstName: "Grace", LastName: "Hopper", DateOfBirth: "2019-01-20"},
		},
		Contact: models.Contact{Email: "ada@example.com", Phone: "+15550100"},
		Routes: []models.RouteInfo{
			{Origin: "JFK", Destination: "LHR", DepartureDate: "2026-11-03"},
			{Origin: "LHR", Destination: "JFK", DepartureDate: "2026-11-10"},
		},
	}
}

func ticketed(statuses ...string) *models.TicketingResult {
	res := &models.TicketingResult{Outcome: models.OutcomeTicketed}
	for i, st := range statuses {
		res.Legs = append(res.Legs, models.LegTicketing{
			SolutionID:     fmt.Sprintf("leg-%d", i),
			Outcome:        models.OutcomeTicketed,
			TicketAttempts: 1,
			Order: models.OrderDetail{
				PNR:           fmt.Sprintf("PNR%d", i),
				Status:        st,
				TicketNumbers: []string{fmt.Sprintf("098-%d", i)},
			},
			Request:  json.RawMessage(`{"leg":` + fmt.Sprint(i) + `}`),
			Response: json.RawMessage(`{"ok":true}`),
		})
	}
	return res
}

func (f *fixture) initiate(t *testing.T) *models.InitiateResponse {
	t.Helper()
	resp, err := f.orch.Initiate(context.Background(), "user-1", roundTripRequest())
	require.NoError(t, err)
	return resp
}

func TestInitiate_PersistsIntent(t *testing.T) {
	f := newFixture(Options{EnforceDuplicateGuard: true})

	resp := f.initiate(t)

	assert.Equal(t, 431.0, resp.Fare.TotalFare)
	require.Contains(t, f.ledger.bookings, resp.BookingID)
	require.Contains(t, f.ledger.logs, resp.BookingLogID)

	b := f.ledger.bookings[resp.BookingID]
	assert.Equal(t, models.StatusInProgress, b.BookingStatus)
	assert.Equal(t, models.PaxCount{Adult: 2, Child: 1, ChildAges: []int{7}}, b.Paxes)
	assert.Equal(t, []string{"JFK", "LHR"}, b.OriginCode)
	assert.Equal(t, "2026-11-10", b.Checkout.Format("2006-01-02"))

	stored, _ := json.Marshal(roundTripRequest())
	assert.JSONEq(t, string(stored), string(f.ledger.logs[resp.BookingLogID].Data))

	require.Len(t, f.revalidator.reqs, 1)
	assert.Equal(t, 2, f.revalidator.reqs[0].Paxes.Adult)
	assert.Equal(t, 1, f.ledger.findCalls)
	require.NotNil(t, f.ledger.lastGuard)
	assert.Equal(t, "JFK", f.ledger.lastGuard.Origin)
	assert.Equal(t, "JFK", f.ledger.lastGuard.Destination)
	assert.Empty(t, f.ticketer.inputs, "initiate must not call the supplier")
}

func TestInitiate_InvalidFareNotPersisted(t *testing.T) {
	f := newFixture(Options{})
	f.revalidator.quote = &models.Quote{IsValid: false, Message: "fare sold out"}

	_, err := f.orch.Initiate(context.Background(), "user-1", roundTripRequest())

	assert.ErrorIs(t, err, ErrFareUnavailable)
	assert.Contains(t, err.Error(), "fare sold out")
	assert.Empty(t, f.ledger.bookings)
}

func TestInitiate_RevalidationErrorNotPersisted(t *testing.T) {
	f := newFixture(Options{})
	f.revalidator.quote = nil
	f.revalidator.err = supplier.NewProviderError("TBO", "fare_quote", errors.New("503"))

	_, err := f.orch.Initiate(context.Background(), "user-1", roundTripRequest())

	assert.ErrorIs(t, err, supplier.ErrProvider)
	assert.Empty(t, f.ledger.bookings)
	assert.Empty(t, f.ledger.logs)
}

func TestInitiate_DuplicateDetectedByPreCheck(t *testing.T) {
	f := newFixture(Options{EnforceDuplicateGuard: true})
	f.ledger.duplicate = &models.Booking{BookingID: "bk-0", BookingStatus: models.StatusPending}

	_, err := f.orch.Initiate(context.Background(), "user-1", roundTripRequest())

	var dup *DuplicateBookingError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "bk-0", dup.BookingID)
	assert.Equal(t, models.StatusPending, dup.Status)
	assert.ErrorIs(t, err, ErrDuplicateBooking)
	assert.Empty(t, f.ledger.bookings)
}

func TestInitiate_DuplicateDetectedUnderLock(t *testing.T) {
	f := newFixture(Options{EnforceDuplicateGuard: true})
	f.ledger.lockedDuplicate = &models.Booking{BookingID: "bk-race", BookingStatus: models.StatusInProgress}

	_, err := f.orch.Initiate(context.Background(), "user-1", roundTripRequest())

	var dup *DuplicateBookingError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "bk-race", dup.BookingID)
}

func TestInitiate_GuardDisabled(t *testing.T) {
	f := newFixture(Options{EnforceDuplicateGuard: false})
	f.ledger.duplicate = &models.Booking{BookingID: "bk-0", BookingStatus: models.StatusPending}

	f.initiate(t)

	assert.Zero(t, f.ledger.findCalls)
	assert.Nil(t, f.ledger.lastGuard)
	assert.Len(t, f.ledger.bookings, 1)
}

func TestConfirm_ReplaysStoredRequest(t *testing.T) {
	f := newFixture(Options{MaxTicketAttempts: 3})
	started := f.initiate(t)
	f.ticketer.result = ticketed("Confirmed", "Ticketed")

	resp, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})
	require.NoError(t, err)

	require.Len(t, f.ticketer.inputs, 1)
	in := f.ticketer.inputs[0]
	assert.Equal(t, []string{"OB1", "IB7"}, in.SolutionIDs)
	assert.Equal(t, "TBO", in.ProviderCode)
	require.Len(t, in.Passengers, 3)
	assert.Equal(t, "Ada", in.Passengers[0].FirstName)
	assert.Equal(t, []string{models.PaxAdult, models.PaxAdult, models.PaxChild},
		[]string{in.Passengers[0].PaxType, in.Passengers[1].PaxType, in.Passengers[2].PaxType})
	assert.Equal(t, 3, in.MaxTicketAttempts)

	assert.False(t, resp.Error)
	assert.Len(t, resp.OrderDetail, 2)
	assert.Equal(t, models.StatusConfirmed, resp.OrderDetails.BookingStatus)
	assert.Equal(t, "PNR0,PNR1", resp.OrderDetails.PNR)
	assert.Equal(t, []string{"098-0", "098-1"}, resp.OrderDetails.TicketNumbers)

	log := f.ledger.logs[started.BookingLogID]
	assert.True(t, log.IsVerified)
	assert.Equal(t, models.PaymentCaptured, log.PaymentStatus)
	require.NotNil(t, log.TransactionID)

	require.Len(t, f.ledger.details, 1)
	assert.JSONEq(t, `[{"leg":0},{"leg":1}]`, string(f.ledger.details[0].SupplierRequest))
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, started.BookingID, f.publisher.events[0].BookingID)
}

func TestConfirm_SecondCallRejectedBeforeSupplier(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	f.ticketer.result = ticketed("Confirmed", "Confirmed")
	req := models.ConfirmRequest{BookingID: started.BookingID, BookingLogID: started.BookingLogID}

	_, err := f.orch.Confirm(context.Background(), req)
	require.NoError(t, err)

	_, err = f.orch.Confirm(context.Background(), req)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
	assert.Len(t, f.ticketer.inputs, 1)
}

func TestConfirm_WorkflowAlreadyStarted(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	f.ticketer.err = fmt.Errorf("ticketing-x: %w", workflows.ErrTicketingStarted)

	_, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
}

func TestConfirm_MissingReplayData(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	f.ledger.logs[started.BookingLogID].Data = nil

	_, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	assert.ErrorIs(t, err, ErrReplayUnavailable)
	assert.Empty(t, f.ticketer.inputs)
	assert.False(t, f.ledger.logs[started.BookingLogID].IsVerified)
}

func TestConfirm_UnknownOrMismatchedIDs(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	f.ledger.logs["other"] = &models.BookingLog{LogID: "other", BookingReferenceID: "someone-else"}

	_, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{BookingID: "nope", BookingLogID: started.BookingLogID})
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.orch.Confirm(context.Background(), models.ConfirmRequest{BookingID: started.BookingID, BookingLogID: "other"})
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestConfirm_SideEffectFailuresDoNotFailBooking(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	f.ticketer.result = ticketed("Confirmed", "Confirmed")
	f.ledger.detailErr = errors.New("disk full")
	f.publisher.err = errBroker

	resp, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, resp.OrderDetails.BookingStatus)
	assert.Equal(t, models.StatusConfirmed, f.ledger.bookings[started.BookingID].BookingStatus)
}

func TestConfirm_PartialTicketingIsPending(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	res := ticketed("Confirmed")
	res.Outcome = models.OutcomePartiallyTicketed
	res.Message = workflows.ManualInterventionMessage
	res.Legs = append(res.Legs, models.LegTicketing{SolutionID: "IB7", Outcome: models.OutcomeFailed})
	f.ticketer.result = res

	resp, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	require.NoError(t, err)
	assert.False(t, resp.Error)
	assert.Equal(t, workflows.ManualInterventionMessage, resp.Message)
	assert.Equal(t, models.StatusPending, resp.OrderDetails.BookingStatus)
	assert.Len(t, resp.OrderDetail, 1)
	assert.Empty(t, f.publisher.events)
}

func TestConfirm_PriceChangeExhaustedFails(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	f.ticketer.result = &models.TicketingResult{
		Outcome: models.OutcomePriceChangedExhausted,
		Message: "price changed on every ticket attempt",
		Legs:    []models.LegTicketing{{SolutionID: "OB1", Outcome: models.OutcomePriceChangedExhausted, TicketAttempts: 2}},
	}

	resp, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	require.NoError(t, err)
	assert.True(t, resp.Error)
	assert.Equal(t, models.StatusFailed, f.ledger.bookings[started.BookingID].BookingStatus)
	assert.Empty(t, f.publisher.events)
}

func TestConfirm_TicketingErrorLeavesBookingPending(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	f.ticketer.err = errors.New("workflow timeout")

	_, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	assert.Error(t, err)
	assert.Equal(t, []string{models.StatusPending}, f.ledger.statuses)
}

func TestConfirm_AcceptedPriceChangeUpdatesTotal(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	res := ticketed("Confirmed", "Confirmed")
	res.Legs[0].TicketAttempts = 2
	res.Legs[0].Order.Fare = models.Fare{Currency: "USD", TotalFare: 250}
	res.Legs[1].Order.Fare = models.Fare{Currency: "USD", TotalFare: 199.5}
	f.ticketer.result = res

	resp, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	require.NoError(t, err)
	assert.Equal(t, 449.5, resp.OrderDetails.Total)
	assert.Equal(t, 449.5, f.ledger.bookings[started.BookingID].Total)
}

func TestConfirm_SupplierCurrencyOrderKeepsQuotedTotal(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	res := ticketed("Confirmed")
	res.Legs[0].Order.Fare = models.Fare{Currency: "INR", TotalFare: 35800}
	f.ticketer.result = res

	resp, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	require.NoError(t, err)
	assert.Equal(t, 431.0, resp.OrderDetails.Total)
	assert.Equal(t, "USD", resp.OrderDetails.Currency)
	saved := f.ledger.bookings[started.BookingID]
	assert.Equal(t, 431.0, saved.Total)
	assert.Equal(t, "USD", saved.Currency)
}

func TestConfirm_RepricedSupplierCurrencyOrderIsConverted(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	res := ticketed("Confirmed")
	res.Legs[0].TicketAttempts = 2
	res.Legs[0].Order.Fare = models.Fare{Currency: "INR", BaseFare: 30000, Tax: 5800, TotalFare: 35800}
	f.ticketer.result = res

	resp, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	require.NoError(t, err)
	assert.Equal(t, 429.6, resp.OrderDetails.Total)
	assert.Equal(t, "USD", f.ledger.bookings[started.BookingID].Currency)
	assert.Equal(t, 429.6, f.publisher.events[0].Total)
}

func TestConfirm_WaitTimeoutKeepsSettledStatus(t *testing.T) {
	f := newFixture(Options{})
	started := f.initiate(t)
	f.ticketer.result = ticketed("Confirmed", "Confirmed")
	f.ticketer.err = errors.New("context deadline exceeded")

	_, err := f.orch.Confirm(context.Background(), models.ConfirmRequest{
		BookingID: started.BookingID, BookingLogID: started.BookingLogID,
	})

	assert.Error(t, err)
	assert.Empty(t, f.ledger.statuses)
	assert.Equal(t, models.StatusConfirmed, f.ledger.bookings[started.BookingID].BookingStatus)
	assert.Equal(t, "PNR0,PNR1", f.ledger.bookings[started.BookingID].PNR)
}
