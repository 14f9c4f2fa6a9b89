package booking

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrAlreadyConfirmed  = errors.New("booking already confirmed")
	ErrReplayUnavailable = errors.New("stored booking request unavailable")
	ErrFareUnavailable   = errors.New("fare no longer available")
	ErrDuplicateBooking  = errors.New("duplicate booking")
)

// DuplicateBookingError carries the open booking that blocks a new one
type DuplicateBookingError struct {
	BookingID string
	Status    string
}

func (e *DuplicateBookingError) Error() string {
	return fmt.Sprintf("%v: booking %s is %s", ErrDuplicateBooking, e.BookingID, e.Status)
}

func (e *DuplicateBookingError) Is(target error) bool { return target == ErrDuplicateBooking }
