// Package supplier defines the contract every third-party flight supplier
// adapter satisfies, the tagged outcome of a supplier call, and the shared
// per-day auth token cache.
package supplier

import (
	"context"
	"encoding/json"

	"flight-aggregator/internal/models"
)

// Status tags a supplier call outcome
type Status int

const (
	StatusOK Status = iota
	StatusInvalid
	StatusTransient
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalid:
		return "invalid"
	case StatusTransient:
		return "transient"
	}
	return "unknown"
}

// Outcome is Ok(value) | Invalid(reason) | Transient(err). Request and Raw
// keep the wire payloads for persistence and error logs.
type Outcome[T any] struct {
	Status  Status
	Value   T
	Reason  string
	Err     error
	Request json.RawMessage
	Raw     json.RawMessage
}

func OK[T any](v T, request, raw json.RawMessage) Outcome[T] {
	return Outcome[T]{Status: StatusOK, Value: v, Request: request, Raw: raw}
}

func Invalid[T any](reason string, request, raw json.RawMessage) Outcome[T] {
	return Outcome[T]{Status: StatusInvalid, Reason: reason, Request: request, Raw: raw}
}

func Transient[T any](err error, request, raw json.RawMessage) Outcome[T] {
	return Outcome[T]{Status: StatusTransient, Err: err, Request: request, Raw: raw}
}

// LegRequest addresses one direction of a priced itinerary
type LegRequest struct {
	SolutionID string
	SearchID   string
	Route      models.RouteInfo
	Paxes      models.PaxCount
}

// BookRequest asks the supplier to hold a PNR for one leg. Revalidated is the
// raw fare quote persisted at revalidation time.
type BookRequest struct {
	SolutionID  string
	Revalidated json.RawMessage
	Passengers  []models.Passenger
	Contact     models.Contact
}

// BookResult is the supplier's answer to a book call. LCC legs skip the
// supplier call and come back with IsLCC set.
type BookResult struct {
	IsLCC               bool
	PNR                 string
	SupplierReferenceID string
	Request             json.RawMessage
	Response            json.RawMessage
}

// TicketRequest issues tickets for one leg
type TicketRequest struct {
	SolutionID          string
	Revalidated         json.RawMessage
	IsLCC               bool
	PNR                 string
	SupplierReferenceID string
	Passengers          []models.Passenger
	Contact             models.Contact
	AcceptPriceChange   bool
}

// OrderRequest looks up a booked leg
type OrderRequest struct {
	SolutionID          string
	Revalidated         json.RawMessage
	PNR                 string
	SupplierReferenceID string
}

// Adapter is one supplier integration. Every method is a single round trip
// with no supplier-side idempotency key.
type Adapter interface {
	Code() string
	Search(ctx context.Context, criteria models.SearchCriteria) ([]models.Route, error)
	FareRules(ctx context.Context, leg LegRequest) Outcome[[]models.FareRule]
	RevalidateLeg(ctx context.Context, leg LegRequest) Outcome[*models.Quote]
	Book(ctx context.Context, req BookRequest) (*BookResult, error)
	Ticket(ctx context.Context, req TicketRequest) (*models.TicketLegResult, error)
	OrderDetails(ctx context.Context, req OrderRequest) (*models.OrderDetail, error)
}
