package tbo

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"flight-aggregator/internal/models"
	"flight-aggregator/internal/supplier"
)

// errNoResults is the search reply for a route with no availability
const errNoResults = 25

// Search runs one availability search. A split round trip comes back as two
// one-way result lists which are paired here.
func (a *Adapter) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.Route, error) {
	req := searchRequest{
		EndUserIP:   a.opts.EndUserIP,
		AdultCount:  criteria.Paxes.Adult,
		ChildCount:  criteria.Paxes.Child,
		InfantCount: criteria.Paxes.Infant,
		JourneyType: journeyOneWay,
	}
	if criteria.JourneyType == models.JourneyRoundTrip {
		req.JourneyType = journeyReturn
	}
	for _, r := range criteria.Routes {
		req.Segments = append(req.Segments, searchSegment{
			Origin:                 strings.ToUpper(r.Origin),
			Destination:            strings.ToUpper(r.Destination),
			FlightCabinClass:       cabinCode(criteria.CabinClass),
			PreferredDepartureTime: r.DepartureDate + "T00:00:00",
		})
	}

	var resp searchResponse
	_, _, err := a.exchange(ctx, "/Search", func(token string) interface{} {
		req.TokenID = token
		return req
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Response.ResponseStatus != statusSuccessful {
		if resp.Response.Error.ErrorCode == errNoResults {
			return nil, nil
		}
		return nil, errors.Errorf("search: %s (code %d)", resp.Response.Error.ErrorMessage, resp.Response.Error.ErrorCode)
	}
	return mapResults(resp.Response.TraceID, criteria.JourneyType, resp.Response.Results, a.opts.MaxReturnPairs), nil
}

func (a *Adapter) FareRules(ctx context.Context, leg supplier.LegRequest) supplier.Outcome[[]models.FareRule] {
	traceID, index, err := parseSolutionID(leg.SolutionID)
	if err != nil {
		return supplier.Invalid[[]models.FareRule](err.Error(), nil, nil)
	}

	var resp fareRuleResponse
	req, raw, err := a.exchange(ctx, "/FareRule", a.legBody(traceID, index), &resp)
	if err != nil {
		return supplier.Transient[[]models.FareRule](err, req, raw)
	}
	if resp.Response.ResponseStatus != statusSuccessful {
		return supplier.Invalid[[]models.FareRule](resp.Response.Error.ErrorMessage, req, raw)
	}

	rules := make([]models.FareRule, 0, len(resp.Response.FareRules))
	for _, r := range resp.Response.FareRules {
		rules = append(rules, models.FareRule{
			Origin:      r.Origin,
			Destination: r.Destination,
			Airline:     r.Airline,
			FareBasis:   r.FareBasisCode,
			Detail:      r.FareRuleDetail,
		})
	}
	return supplier.OK(rules, req, raw)
}

// RevalidateLeg re-prices one result. The raw reply is what Book and Ticket
// later read the trace id and result index from.
func (a *Adapter) RevalidateLeg(ctx context.Context, leg supplier.LegRequest) supplier.Outcome[*models.Quote] {
	traceID, index, err := parseSolutionID(leg.SolutionID)
	if err != nil {
		return supplier.Invalid[*models.Quote](err.Error(), nil, nil)
	}

	var resp fareQuoteResponse
	req, raw, err := a.exchange(ctx, "/FareQuote", a.legBody(traceID, index), &resp)
	if err != nil {
		return supplier.Transient[*models.Quote](err, req, raw)
	}
	if resp.Response.ResponseStatus != statusSuccessful {
		return supplier.Invalid[*models.Quote](resp.Response.Error.ErrorMessage, req, raw)
	}

	res := resp.Response.Results
	q := &models.Quote{
		SolutionID:     leg.SolutionID,
		ProviderCode:   Code,
		IsValid:        true,
		IsLCC:          res.IsLCC,
		IsRefundable:   res.IsRefundable,
		IsPriceChanged: resp.Response.IsPriceChanged,
		Fare:           mapFare(res.Fare, res.FareBreakdown),
	}
	for _, dir := range res.Segments {
		segs := mapSegments(dir)
		if len(segs) == 0 {
			continue
		}
		q.FlightSegments = append(q.FlightSegments, segs)
		q.AirlineCode = append(q.AirlineCode, segs[0].AirlineCode)
		q.DepartureInfo = append(q.DepartureInfo, segs[0].Departure)
		q.ArrivalInfo = append(q.ArrivalInfo, segs[len(segs)-1].Arrival)
	}
	return supplier.OK(q, req, raw)
}

func (a *Adapter) legBody(traceID, index string) func(string) interface{} {
	return func(token string) interface{} {
		return legRequest{EndUserIP: a.opts.EndUserIP, TokenID: token, TraceID: traceID, ResultIndex: index}
	}
}

// Book holds a PNR for a non-LCC result. LCC results are booked and ticketed
// in the single Ticket call.
func (a *Adapter) Book(ctx context.Context, in supplier.BookRequest) (*supplier.BookResult, error) {
	quote, err := decodeQuote(in.Revalidated)
	if err != nil {
		return nil, err
	}
	res := quote.Response.Results
	if res.IsLCC {
		return &supplier.BookResult{IsLCC: true}, nil
	}

	var resp bookResponse
	req, raw, err := a.exchange(ctx, "/Book", func(token string) interface{} {
		return bookRequest{
			EndUserIP:   a.opts.EndUserIP,
			TokenID:     token,
			TraceID:     quote.Response.TraceID,
			ResultIndex: res.ResultIndex,
			Passengers:  mapPassengers(in.Passengers, in.Contact, res),
		}
	}, &resp)
	out := &supplier.BookResult{Request: req, Response: raw}
	if err != nil {
		return out, err
	}
	if resp.Response.ResponseStatus != statusSuccessful {
		return out, errors.Errorf("book: %s (code %d)", resp.Response.Error.ErrorMessage, resp.Response.Error.ErrorCode)
	}

	out.PNR = resp.Response.Response.PNR
	out.SupplierReferenceID = strconv.FormatInt(resp.Response.Response.BookingID, 10)
	return out, nil
}

func (a *Adapter) Ticket(ctx context.Context, in supplier.TicketRequest) (*models.TicketLegResult, error) {
	quote, err := decodeQuote(in.Revalidated)
	if err != nil {
		return nil, err
	}
	res := quote.Response.Results

	body := ticketRequest{
		EndUserIP:             a.opts.EndUserIP,
		TraceID:               quote.Response.TraceID,
		IsPriceChangeAccepted: in.AcceptPriceChange,
	}
	if in.IsLCC {
		body.ResultIndex = res.ResultIndex
		body.Passengers = mapPassengers(in.Passengers, in.Contact, res)
	} else {
		bookingID, err := parseBookingID(in.SupplierReferenceID)
		if err != nil {
			return nil, err
		}
		body.PNR = in.PNR
		body.BookingID = bookingID
	}

	var resp ticketResponse
	req, raw, err := a.exchange(ctx, "/Ticket", func(token string) interface{} {
		body.TokenID = token
		return body
	}, &resp)
	if err != nil {
		return &models.TicketLegResult{Status: models.TicketFailed, Request: req, Response: raw}, err
	}

	r := resp.Response.Response
	out := &models.TicketLegResult{
		PNR:                 firstNonEmpty(r.PNR, r.FlightItinerary.PNR, in.PNR),
		SupplierReferenceID: in.SupplierReferenceID,
		TicketNumbers:       r.FlightItinerary.ticketNumbers(),
		Request:             req,
		Response:            raw,
	}
	if id := firstNonZero(r.BookingID, r.FlightItinerary.BookingID); id != 0 {
		out.SupplierReferenceID = strconv.FormatInt(id, 10)
	}

	switch {
	case r.IsPriceChanged || r.IsTimeChanged:
		out.Status = models.TicketPriceChanged
		out.Message = "fare or schedule changed at ticketing"
	case resp.Response.ResponseStatus != statusSuccessful:
		out.Status = models.TicketFailed
		out.Message = resp.Response.Error.ErrorMessage
	default:
		out.Status = models.TicketIssued
	}
	return out, nil
}

// OrderDetails reads a booked leg back through GetBookingDetails
func (a *Adapter) OrderDetails(ctx context.Context, in supplier.OrderRequest) (*models.OrderDetail, error) {
	bookingID, err := parseBookingID(in.SupplierReferenceID)
	if err != nil {
		return nil, err
	}

	var resp bookingDetailsResponse
	_, _, err = a.exchange(ctx, "/GetBookingDetails", func(token string) interface{} {
		return bookingDetailsRequest{EndUserIP: a.opts.EndUserIP, TokenID: token, PNR: in.PNR, BookingID: bookingID}
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Response.ResponseStatus != statusSuccessful {
		return nil, errors.Errorf("booking details: %s (code %d)", resp.Response.Error.ErrorMessage, resp.Response.Error.ErrorCode)
	}

	it := resp.Response.FlightItinerary
	return &models.OrderDetail{
		SolutionID:          in.SolutionID,
		SupplierReferenceID: strconv.FormatInt(firstNonZero(it.BookingID, bookingID), 10),
		PNR:                 firstNonEmpty(it.PNR, in.PNR),
		Status:              bookingStatus(it.Status),
		TicketNumbers:       it.ticketNumbers(),
		IsRefundable:        it.IsRefundable,
		Fare:                mapFare(it.Fare, nil),
		Origin:              it.Origin,
		Destination:         it.Destination,
	}, nil
}

func decodeQuote(raw json.RawMessage) (*fareQuoteResponse, error) {
	if len(raw) == 0 {
		return nil, errors.New("no revalidated fare quote stored")
	}
	var q fareQuoteResponse
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, errors.Wrap(err, "decode stored fare quote")
	}
	if q.Response.TraceID == "" || q.Response.Results.ResultIndex == "" {
		return nil, errors.New("stored fare quote has no trace id or result index")
	}
	return &q, nil
}

func parseBookingID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid supplier booking id %q", s)
	}
	return id, nil
}

func bookingStatus(code int) string {
	switch code {
	case bookingTicketed:
		return "Ticketed"
	case bookingConfirmed:
		return "Confirmed"
	case bookingFailed:
		return "Failed"
	}
	return "Pending"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...int64) int64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
