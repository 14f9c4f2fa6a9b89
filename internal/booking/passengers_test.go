package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"flight-aggregator/internal/models"
)

func TestCountPassengers(t *testing.T) {
	ref := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	passengers := []models.Passenger{
		{FirstName: "a", PaxType: models.PaxAdult},
		{FirstName: "b", DateOfBirth: "1985-02-11"},
		{FirstName: "c", DateOfBirth: "2016-10-16"},
		{FirstName: "d", DateOfBirth: "2025-01-01"},
		{FirstName: "e", PaxType: models.PaxChild},
		{FirstName: "f", DateOfBirth: "2014-10-15"},
	}

	got := CountPassengers(passengers, ref)

	assert.Equal(t, 3, got.Adult)
	assert.Equal(t, 2, got.Child)
	assert.Equal(t, 1, got.Infant)
	assert.Equal(t, []int{9}, got.ChildAges)
	assert.Equal(t, []int{1}, got.InfantAges)
}
