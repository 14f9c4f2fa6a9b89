package models

import (
	"strings"
	"time"
)

// SolutionSeparator joins the per-direction solution ids of a round trip that
// was priced as two independent one-way solutions.
const SolutionSeparator = " ||| "

// Journey types
const (
	JourneyOneWay    = "ONE_WAY"
	JourneyRoundTrip = "ROUND_TRIP"
)

// Passenger types
const (
	PaxAdult  = "ADT"
	PaxChild  = "CHD"
	PaxInfant = "INF"
)

// SearchCriteria is the normalized flight search request sent to every supplier
type SearchCriteria struct {
	JourneyType string      `json:"journeyType" validate:"required,oneof=ONE_WAY ROUND_TRIP"`
	Routes      []RouteInfo `json:"routes" validate:"required,min=1,max=2,dive"`
	Paxes       PaxCount    `json:"paxes"`
	CabinClass  string      `json:"cabinClass"`
	Currency    string      `json:"currency"`
}

// RouteInfo describes one requested direction
type RouteInfo struct {
	Origin        string `json:"origin" validate:"required,len=3"`
	Destination   string `json:"destination" validate:"required,len=3"`
	DepartureDate string `json:"departureDate" validate:"required,datetime=2006-01-02"`
}

// PaxCount holds passenger-type counts and ages
type PaxCount struct {
	Adult      int   `json:"adult" validate:"min=1,max=9"`
	Child      int   `json:"child" validate:"min=0,max=9"`
	Infant     int   `json:"infant" validate:"min=0,max=9"`
	ChildAges  []int `json:"childAges,omitempty"`
	InfantAges []int `json:"infantAges,omitempty"`
}

// LocationInfo is one end of a flown segment
type LocationInfo struct {
	AirportCode string    `json:"airportCode"`
	AirportName string    `json:"airportName,omitempty"`
	CityName    string    `json:"cityName,omitempty"`
	Terminal    string    `json:"terminal,omitempty"`
	Time        time.Time `json:"time"`
}

// Segment is one flown leg
type Segment struct {
	AirlineCode     string       `json:"airlineCode"`
	AirlineName     string       `json:"airlineName,omitempty"`
	FlightNumber    string       `json:"flightNumber"`
	CabinClass      string       `json:"cabinClass"`
	BookingCode     string       `json:"bookingCode,omitempty"`
	Departure       LocationInfo `json:"departure"`
	Arrival         LocationInfo `json:"arrival"`
	DurationMinutes int          `json:"durationMinutes"`
	Baggage         string       `json:"baggage,omitempty"`
	CabinBaggage    string       `json:"cabinBaggage,omitempty"`
}

// PaxFare is the per-passenger price of one passenger type. BaseFare and Tax
// are unit amounts; Count multiplies them.
type PaxFare struct {
	PaxType  string  `json:"paxType"`
	Count    int     `json:"count"`
	BaseFare float64 `json:"baseFare"`
	Tax      float64 `json:"tax"`
}

// Fare is the priced breakdown of an itinerary
type Fare struct {
	Currency      string    `json:"currency"`
	BaseFare      float64   `json:"baseFare"`
	Tax           float64   `json:"tax"`
	PublishedFare float64   `json:"publishedFare"`
	ServiceFee    float64   `json:"serviceFee"`
	OtherCharges  float64   `json:"otherCharges"`
	TotalFare     float64   `json:"totalFare"`
	PaxFares      []PaxFare `json:"paxFares,omitempty"`
}

// GroupHash records one alternative offer for the same physical itinerary
type GroupHash struct {
	Provider      string   `json:"provider"`
	HashCode      []string `json:"hashCode"`
	GroupHashCode string   `json:"groupHashCode"`
	SolutionID    []string `json:"solutionId"`
	TotalAmount   float64  `json:"totalAmount"`
}

// Route is one priced itinerary as returned to the client
type Route struct {
	Provider            string      `json:"provider"`
	SolutionID          []string    `json:"solutionId"`
	HashCode            []string    `json:"hashCode"`
	GroupHashCode       string      `json:"groupHashCode"`
	JourneyType         string      `json:"journeyType"`
	IsLCC               bool        `json:"isLCC"`
	IsRefundable        bool        `json:"isRefundable"`
	IsDuplicateOutbound bool        `json:"isDuplicateOutbound"`
	FlightSegments      [][]Segment `json:"flightSegments"`
	Fare                Fare        `json:"fare"`
	GroupHash           []GroupHash `json:"groupHash"`
}

// SolutionKey returns the id a client sends back to revalidate this route
func (r *Route) SolutionKey() string {
	return strings.Join(r.SolutionID, SolutionSeparator)
}

// Alternative describes this route as a GroupHash entry
func (r *Route) Alternative() GroupHash {
	return GroupHash{
		Provider:      r.Provider,
		HashCode:      append([]string(nil), r.HashCode...),
		GroupHashCode: r.GroupHashCode,
		SolutionID:    append([]string(nil), r.SolutionID...),
		TotalAmount:   r.Fare.TotalFare,
	}
}

// SearchResult is returned by search and checkRouting
type SearchResult struct {
	SearchID string  `json:"searchId"`
	Routes   []Route `json:"route"`
	Complete bool    `json:"complete"`
	Error    bool    `json:"error"`
	Message  string  `json:"message,omitempty"`
}

// SearchBatch is one supplier's raw result set persisted for later polling
type SearchBatch struct {
	ID            int64     `json:"id" db:"id"`
	SearchID      string    `json:"searchId" db:"search_id"`
	Provider      string    `json:"provider" db:"provider_code"`
	ExpectedCount int       `json:"expectedCount" db:"sequence_count"`
	Failed        bool      `json:"failed" db:"failed"`
	Routes        []Route   `json:"routes" db:"response"`
	StartedAt     time.Time `json:"startedAt" db:"started_at"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}
