package models

import (
	"encoding/json"
	"time"
)

// RevalidateRequest asks for a fresh price on a previously searched itinerary.
// SolutionID may hold two one-way ids joined by SolutionSeparator.
type RevalidateRequest struct {
	SolutionID   string      `json:"solutionId" validate:"required"`
	SearchReqID  string      `json:"searchReqID"`
	ProviderCode string      `json:"providerCode" validate:"required"`
	Routes       []RouteInfo `json:"routes" validate:"required,min=1,max=2,dive"`
	Paxes        PaxCount    `json:"paxes"`
	Currency     string      `json:"currency"`
}

// FareRule is one supplier fare rule (cancellation, change, ...)
type FareRule struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Airline     string `json:"airline"`
	FareBasis   string `json:"fareBasis,omitempty"`
	Detail      string `json:"detail"`
}

// Quote is a revalidated fare, per leg or merged across the legs of a round trip
type Quote struct {
	SolutionID     string         `json:"solutionId"`
	ProviderCode   string         `json:"providerCode"`
	IsValid        bool           `json:"isValid"`
	Message        string         `json:"message,omitempty"`
	IsLCC          bool           `json:"isLCC"`
	IsRefundable   bool           `json:"isRefundable"`
	IsPriceChanged bool           `json:"isPriceChanged"`
	AirlineCode    []string       `json:"airlineCode"`
	FlightSegments [][]Segment    `json:"flightSegments"`
	DepartureInfo  []LocationInfo `json:"departureInfo"`
	ArrivalInfo    []LocationInfo `json:"arrivalInfo"`
	Fare           Fare           `json:"fare"`
	FareRules      []FareRule     `json:"fareRules,omitempty"`
}

// RevalidateRecord is the raw supplier fare quote persisted per leg, keyed by
// (solution_id, provider_code)
type RevalidateRecord struct {
	SolutionID   string          `json:"solutionId" db:"solution_id"`
	ProviderCode string          `json:"providerCode" db:"provider_code"`
	RawResponse  json.RawMessage `json:"rawResponse" db:"response"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}
