package tbo

import (
	"sort"
	"strings"

	"flight-aggregator/internal/models"
	"flight-aggregator/internal/normalize"
)

var cabinNames = map[int]string{
	2: "ECONOMY",
	3: "PREMIUM_ECONOMY",
	4: "BUSINESS",
	5: "PREMIUM_BUSINESS",
	6: "FIRST",
}

// cabinCode maps a requested cabin onto the search code; 1 means any cabin
func cabinCode(name string) int {
	for code, n := range cabinNames {
		if strings.EqualFold(n, strings.ReplaceAll(strings.TrimSpace(name), " ", "_")) {
			return code
		}
	}
	return 1
}

func cabinName(code int) string {
	if n, ok := cabinNames[code]; ok {
		return n
	}
	return "ECONOMY"
}

func paxTypeName(t int) string {
	switch t {
	case paxChild:
		return models.PaxChild
	case paxInfant:
		return models.PaxInfant
	}
	return models.PaxAdult
}

// mapResults turns search results into routes. One list holds one-way or
// combined return results; two lists are the outbound and inbound halves of
// a split return and are paired cheapest first, at most maxPairs times.
func mapResults(traceID, journeyType string, results [][]result, maxPairs int) []models.Route {
	switch len(results) {
	case 0:
		return nil
	case 1:
		routes := make([]models.Route, 0, len(results[0]))
		for _, r := range results[0] {
			route := mapResult(traceID, r)
			route.JourneyType = journeyType
			if len(route.FlightSegments) == 0 {
				continue
			}
			normalize.Finalize(&route)
			routes = append(routes, route)
		}
		return routes
	}

	outbound := cheapestFirst(results[0])
	inbound := cheapestFirst(results[1])
	var routes []models.Route
	for _, ob := range outbound {
		for _, ib := range inbound {
			if len(routes) >= maxPairs {
				return routes
			}
			out, in := mapResult(traceID, ob), mapResult(traceID, ib)
			if len(out.FlightSegments) == 0 || len(in.FlightSegments) == 0 {
				continue
			}
			route := models.Route{
				Provider:       Code,
				SolutionID:     []string{out.SolutionID[0], in.SolutionID[0]},
				JourneyType:    models.JourneyRoundTrip,
				IsLCC:          out.IsLCC || in.IsLCC,
				IsRefundable:   out.IsRefundable && in.IsRefundable,
				FlightSegments: [][]models.Segment{out.FlightSegments[0], in.FlightSegments[0]},
				Fare:           sumFares(out.Fare, in.Fare),
			}
			normalize.Finalize(&route)
			routes = append(routes, route)
		}
	}
	return routes
}

func cheapestFirst(results []result) []result {
	out := append([]result(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fare.PublishedFare < out[j].Fare.PublishedFare
	})
	return out
}

func mapResult(traceID string, r result) models.Route {
	route := models.Route{
		Provider:     Code,
		SolutionID:   []string{solutionID(traceID, r.ResultIndex)},
		IsLCC:        r.IsLCC,
		IsRefundable: r.IsRefundable,
		Fare:         mapFare(r.Fare, r.FareBreakdown),
	}
	for _, dir := range r.Segments {
		if segs := mapSegments(dir); len(segs) > 0 {
			route.FlightSegments = append(route.FlightSegments, segs)
		}
	}
	return route
}

func mapSegments(dir []segment) []models.Segment {
	out := make([]models.Segment, 0, len(dir))
	for _, s := range dir {
		out = append(out, models.Segment{
			AirlineCode:  s.Airline.AirlineCode,
			AirlineName:  s.Airline.AirlineName,
			FlightNumber: s.Airline.FlightNumber,
			CabinClass:   cabinName(s.CabinClass),
			BookingCode:  s.Airline.FareClass,
			Departure: models.LocationInfo{
				AirportCode: s.Origin.Airport.AirportCode,
				AirportName: s.Origin.Airport.AirportName,
				CityName:    s.Origin.Airport.CityName,
				Terminal:    s.Origin.Airport.Terminal,
				Time:        s.Origin.DepTime.Time,
			},
			Arrival: models.LocationInfo{
				AirportCode: s.Destination.Airport.AirportCode,
				AirportName: s.Destination.Airport.AirportName,
				CityName:    s.Destination.Airport.CityName,
				Terminal:    s.Destination.Airport.Terminal,
				Time:        s.Destination.ArrTime.Time,
			},
			DurationMinutes: s.Duration,
			Baggage:         s.Baggage,
			CabinBaggage:    s.CabinBaggage,
		})
	}
	return out
}

// mapFare converts a supplier fare. Breakdown amounts are totals per
// passenger type and become unit amounts.
func mapFare(f fare, breakdown []fareBreakdown) models.Fare {
	out := models.Fare{
		Currency:      f.Currency,
		BaseFare:      f.BaseFare,
		Tax:           f.Tax,
		PublishedFare: f.PublishedFare,
		ServiceFee:    f.ServiceFee,
		OtherCharges:  f.OtherCharges,
		TotalFare:     f.PublishedFare,
	}
	for _, b := range breakdown {
		if b.PassengerCount <= 0 {
			continue
		}
		n := float64(b.PassengerCount)
		out.PaxFares = append(out.PaxFares, models.PaxFare{
			PaxType:  paxTypeName(b.PassengerType),
			Count:    b.PassengerCount,
			BaseFare: b.BaseFare / n,
			Tax:      b.Tax / n,
		})
	}
	return out
}

func sumFares(a, b models.Fare) models.Fare {
	out := models.Fare{
		Currency:      a.Currency,
		BaseFare:      a.BaseFare + b.BaseFare,
		Tax:           a.Tax + b.Tax,
		PublishedFare: a.PublishedFare + b.PublishedFare,
		ServiceFee:    a.ServiceFee + b.ServiceFee,
		OtherCharges:  a.OtherCharges + b.OtherCharges,
		TotalFare:     a.TotalFare + b.TotalFare,
	}
	out.PaxFares = append(out.PaxFares, a.PaxFares...)
	for _, pf := range b.PaxFares {
		merged := false
		for i := range out.PaxFares {
			if out.PaxFares[i].PaxType == pf.PaxType {
				out.PaxFares[i].BaseFare += pf.BaseFare
				out.PaxFares[i].Tax += pf.Tax
				merged = true
				break
			}
		}
		if !merged {
			out.PaxFares = append(out.PaxFares, pf)
		}
	}
	return out
}

func mapPassengers(in []models.Passenger, contact models.Contact, r result) []passenger {
	unit := make(map[int]fare, len(r.FareBreakdown))
	for _, b := range r.FareBreakdown {
		if b.PassengerCount <= 0 {
			continue
		}
		n := float64(b.PassengerCount)
		unit[b.PassengerType] = fare{
			Currency:      r.Fare.Currency,
			BaseFare:      b.BaseFare / n,
			Tax:           b.Tax / n,
			PublishedFare: (b.BaseFare + b.Tax) / n,
		}
	}

	out := make([]passenger, 0, len(in))
	for i, p := range in {
		t := paxCode(p.PaxType)
		out = append(out, passenger{
			Title:       p.Title,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			PaxType:     t,
			DateOfBirth: dobTime(p.DateOfBirth),
			Gender:      genderCode(p.Gender),
			PassportNo:  p.Passport,
			Nationality: p.Nationality,
			ContactNo:   contact.Phone,
			Email:       contact.Email,
			IsLeadPax:   p.IsLead || (i == 0 && !anyLead(in)),
			Fare:        unit[t],
		})
	}
	return out
}

func paxCode(t string) int {
	switch t {
	case models.PaxChild:
		return paxChild
	case models.PaxInfant:
		return paxInfant
	}
	return paxAdult
}

func genderCode(g string) int {
	switch strings.ToUpper(g) {
	case "F", "FEMALE":
		return 2
	}
	return 1
}

func dobTime(dob string) string {
	if dob == "" {
		return ""
	}
	return dob + "T00:00:00"
}

func anyLead(ps []models.Passenger) bool {
	for _, p := range ps {
		if p.IsLead {
			return true
		}
	}
	return false
}
