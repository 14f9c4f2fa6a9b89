// Package normalize holds the supplier-independent half of result
// normalization: itinerary content hashes and fare totals. Supplier adapters
// map their payloads into models.Route and then call Finalize.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"flight-aggregator/internal/models"
)

const hashTimeLayout = "2006-01-02T15:04"

// DirectionHash identifies the physical flights of one direction. Price,
// supplier and booking class do not contribute.
func DirectionHash(segments []models.Segment) string {
	var b strings.Builder
	for i, s := range segments {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strings.ToUpper(strings.TrimSpace(s.AirlineCode)))
		b.WriteByte('|')
		b.WriteString(strings.TrimLeft(strings.TrimSpace(s.FlightNumber), "0"))
		b.WriteByte('|')
		b.WriteString(strings.ToUpper(s.CabinClass))
		b.WriteByte('|')
		b.WriteString(strings.ToUpper(s.Departure.AirportCode))
		b.WriteByte('|')
		b.WriteString(formatTime(s.Departure.Time))
		b.WriteByte('|')
		b.WriteString(strings.ToUpper(s.Arrival.AirportCode))
		b.WriteByte('|')
		b.WriteString(formatTime(s.Arrival.Time))
	}
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// GroupHashCode is a pure function of the ordered direction hashes
func GroupHashCode(hashes []string) string {
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(hashes, ">")), 16)
}

// Finalize computes the hash codes and the fare total of a mapped route
func Finalize(r *models.Route) {
	r.HashCode = make([]string, len(r.FlightSegments))
	for i, dir := range r.FlightSegments {
		r.HashCode[i] = DirectionHash(dir)
	}
	r.GroupHashCode = GroupHashCode(r.HashCode)
	FinalizeFare(&r.Fare)
	if r.JourneyType == "" {
		r.JourneyType = models.JourneyOneWay
		if len(r.FlightSegments) > 1 {
			r.JourneyType = models.JourneyRoundTrip
		}
	}
}

// FinalizeFare fills TotalFare when the supplier left it empty
func FinalizeFare(f *models.Fare) {
	if f.TotalFare == 0 {
		f.TotalFare = f.BaseFare + f.Tax + f.ServiceFee + f.OtherCharges
	}
	if f.PublishedFare == 0 {
		f.PublishedFare = f.TotalFare
	}
}

// Local times from suppliers carry no zone; hashing uses the wall clock only.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(hashTimeLayout)
}
