package models

import "encoding/json"

// Ticketing outcomes
const (
	OutcomeTicketed              = "TICKETED"
	OutcomePriceChangedExhausted = "PRICE_CHANGED_EXHAUSTED"
	OutcomeFailed                = "FAILED"
	OutcomePartiallyTicketed     = "PARTIALLY_TICKETED"
)

// Ticket call statuses reported by a supplier
const (
	TicketIssued       = "ISSUED"
	TicketPriceChanged = "PRICE_CHANGED"
	TicketFailed       = "FAILED"
)

// TicketingInput is the ticketing workflow input
type TicketingInput struct {
	BookingID         string      `json:"bookingId"`
	BookingLogID      string      `json:"bookingLogId"`
	ProviderCode      string      `json:"providerCode"`
	JourneyType       string      `json:"journeyType"`
	SolutionIDs       []string    `json:"solutionIds"`
	Passengers        []Passenger `json:"passengers"`
	Contact           Contact     `json:"contact"`
	MaxTicketAttempts int         `json:"maxTicketAttempts"`
}

// BookLegInput is the input of the BookLeg activity
type BookLegInput struct {
	ProviderCode string      `json:"providerCode"`
	SolutionID   string      `json:"solutionId"`
	Passengers   []Passenger `json:"passengers"`
	Contact      Contact     `json:"contact"`
}

// BookLegResult carries what the ticket call needs from the book call
type BookLegResult struct {
	IsLCC               bool            `json:"isLCC"`
	PNR                 string          `json:"pnr,omitempty"`
	SupplierReferenceID string          `json:"supplierReferenceId,omitempty"`
	Failed              bool            `json:"failed"`
	Message             string          `json:"message,omitempty"`
	Request             json.RawMessage `json:"request,omitempty"`
	Response            json.RawMessage `json:"response,omitempty"`
}

// TicketLegInput is the input of the TicketLeg activity
type TicketLegInput struct {
	ProviderCode        string      `json:"providerCode"`
	SolutionID          string      `json:"solutionId"`
	IsLCC               bool        `json:"isLCC"`
	PNR                 string      `json:"pnr,omitempty"`
	SupplierReferenceID string      `json:"supplierReferenceId,omitempty"`
	Passengers          []Passenger `json:"passengers"`
	Contact             Contact     `json:"contact"`
	AcceptPriceChange   bool        `json:"acceptPriceChange"`
}

// TicketLegResult is one supplier ticket call outcome
type TicketLegResult struct {
	Status              string          `json:"status"`
	PNR                 string          `json:"pnr,omitempty"`
	SupplierReferenceID string          `json:"supplierReferenceId,omitempty"`
	TicketNumbers       []string        `json:"ticketNumbers,omitempty"`
	Message             string          `json:"message,omitempty"`
	Request             json.RawMessage `json:"request,omitempty"`
	Response            json.RawMessage `json:"response,omitempty"`
}

// OrderDetailsInput is the input of the FetchOrderDetails activity
type OrderDetailsInput struct {
	ProviderCode        string `json:"providerCode"`
	SolutionID          string `json:"solutionId"`
	PNR                 string `json:"pnr"`
	SupplierReferenceID string `json:"supplierReferenceId"`
}

// LegTicketing is the result of ticketing one leg
type LegTicketing struct {
	SolutionID     string          `json:"solutionId"`
	Outcome        string          `json:"outcome"`
	TicketAttempts int             `json:"ticketAttempts"`
	Order          OrderDetail     `json:"order"`
	Message        string          `json:"message,omitempty"`
	Request        json.RawMessage `json:"request,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
}

// TicketingResult is the ticketing workflow output
type TicketingResult struct {
	Outcome       string         `json:"outcome"`
	Legs          []LegTicketing `json:"legs"`
	Message       string         `json:"message,omitempty"`
	BookingStatus string         `json:"bookingStatus,omitempty"`
}
