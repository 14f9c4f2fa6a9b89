package booking

import (
	"time"

	"flight-aggregator/internal/models"
)

// CountPassengers derives passenger-type counts from the passenger list. An
// explicit PaxType wins; otherwise the type follows from the age on ref.
func CountPassengers(passengers []models.Passenger, ref time.Time) models.PaxCount {
	var c models.PaxCount
	for _, p := range passengers {
		paxType, age, hasAge := classify(p, ref)
		switch paxType {
		case models.PaxInfant:
			c.Infant++
			if hasAge {
				c.InfantAges = append(c.InfantAges, age)
			}
		case models.PaxChild:
			c.Child++
			if hasAge {
				c.ChildAges = append(c.ChildAges, age)
			}
		default:
			c.Adult++
		}
	}
	return c
}

// WithPaxTypes returns a copy of passengers with every PaxType filled in
func WithPaxTypes(passengers []models.Passenger, ref time.Time) []models.Passenger {
	out := make([]models.Passenger, len(passengers))
	for i, p := range passengers {
		p.PaxType, _, _ = classify(p, ref)
		out[i] = p
	}
	return out
}

func classify(p models.Passenger, ref time.Time) (string, int, bool) {
	age, hasAge := ageOn(p.DateOfBirth, ref)
	if p.PaxType != "" {
		return p.PaxType, age, hasAge
	}
	switch {
	case hasAge && age < 2:
		return models.PaxInfant, age, true
	case hasAge && age < 12:
		return models.PaxChild, age, true
	}
	return models.PaxAdult, age, hasAge
}

func ageOn(dob string, ref time.Time) (int, bool) {
	if dob == "" {
		return 0, false
	}
	born, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return 0, false
	}
	age := ref.Year() - born.Year()
	if ref.Month() < born.Month() || (ref.Month() == born.Month() && ref.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}
