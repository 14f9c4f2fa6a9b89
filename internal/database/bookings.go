package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flight-aggregator/internal/models"
)

const dateLayout = "2006-01-02"

const duplicateQuery = `
	SELECT booking_id, booking_status
	FROM bookings
	WHERE user_id = ? AND first_origin = ? AND last_destination = ?
	  AND checkin = ? AND checkout <=> ?
	  AND supplier_name = ? AND journey_type = ?
	  AND adults = ? AND children = ? AND infants = ?
	  AND booking_status IN (?, ?)
	LIMIT 1`

func duplicateArgs(q models.DuplicateQuery) []interface{} {
	return []interface{}{
		q.UserID, q.Origin, q.Destination,
		q.Checkin.Format(dateLayout), nullDate(q.Checkout),
		q.Supplier, q.JourneyType,
		q.Paxes.Adult, q.Paxes.Child, q.Paxes.Infant,
		models.StatusPending, models.StatusInProgress,
	}
}

// FindDuplicateBooking returns an open booking equivalent to q, or nil
func (db *DB) FindDuplicateBooking(ctx context.Context, q models.DuplicateQuery) (*models.Booking, error) {
	var b models.Booking
	err := db.QueryRowContext(ctx, duplicateQuery, duplicateArgs(q)...).Scan(&b.BookingID, &b.BookingStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate booking: %w", err)
	}
	return &b, nil
}

// CreateBookingWithLog inserts the booking and its log in one transaction.
// When guard is set the duplicate lookup runs under FOR UPDATE first and an
// existing open booking is returned instead of inserting.
func (db *DB) CreateBookingWithLog(ctx context.Context, b *models.Booking, l *models.BookingLog, guard *models.DuplicateQuery) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if guard != nil {
		var dup models.Booking
		err := tx.QueryRowContext(ctx, duplicateQuery+" FOR UPDATE", duplicateArgs(*guard)...).
			Scan(&dup.BookingID, &dup.BookingStatus)
		switch {
		case err == nil:
			return &dup, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("failed to lock duplicate booking: %w", err)
		}
	}

	origin, _ := json.Marshal(b.OriginCode)
	destination, _ := json.Marshal(b.DestinationCode)
	paxes, _ := json.Marshal(b.Paxes)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (booking_id, booking_reference_id, user_id, supplier_name, booking_status,
			journey_type, origin_code, destination_code, first_origin, last_destination,
			checkin, checkout, adults, children, infants, paxes, total, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.BookingID, b.BookingReferenceID, b.UserID, b.SupplierName, b.BookingStatus,
		b.JourneyType, string(origin), string(destination), first(b.OriginCode), last(b.DestinationCode),
		b.Checkin.Format(dateLayout), nullDate(b.Checkout), b.Paxes.Adult, b.Paxes.Child, b.Paxes.Infant,
		string(paxes), b.Total, b.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO booking_logs (log_id, booking_reference_id, user_id, is_verified, payment_status, data)
		VALUES (?, ?, ?, 0, ?, ?)
	`, l.LogID, l.BookingReferenceID, l.UserID, l.PaymentStatus, nullJSON(l.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create booking log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil, nil
}

// GetBooking retrieves a booking by ID
func (db *DB) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	query := `
		SELECT booking_id, booking_reference_id, user_id, supplier_name, booking_status, supplier_status,
			journey_type, origin_code, destination_code, checkin, checkout, paxes, total, currency,
			supplier_reference_id, pnr, ticket_numbers, is_refundable, created_at, updated_at
		FROM bookings
		WHERE booking_id = ?
	`

	var b models.Booking
	var origin, destination, paxes, tickets []byte
	var checkout sql.NullTime
	err := db.QueryRowContext(ctx, query, bookingID).Scan(
		&b.BookingID, &b.BookingReferenceID, &b.UserID, &b.SupplierName, &b.BookingStatus, &b.SupplierStatus,
		&b.JourneyType, &origin, &destination, &b.Checkin, &checkout, &paxes, &b.Total, &b.Currency,
		&b.SupplierReferenceID, &b.PNR, &tickets, &b.IsRefundable, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if checkout.Valid {
		b.Checkout = checkout.Time
	}
	if err := unmarshalColumns(
		column{origin, &b.OriginCode},
		column{destination, &b.DestinationCode},
		column{paxes, &b.Paxes},
		column{tickets, &b.TicketNumbers},
	); err != nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, err)
	}

	return &b, nil
}

// GetBookingLog retrieves a booking log by ID
func (db *DB) GetBookingLog(ctx context.Context, logID string) (*models.BookingLog, error) {
	query := `
		SELECT log_id, booking_reference_id, user_id, is_verified, payment_status, transaction_id, data,
			created_at, updated_at
		FROM booking_logs
		WHERE log_id = ?
	`

	var l models.BookingLog
	var txnID sql.NullString
	var data []byte
	err := db.QueryRowContext(ctx, query, logID).Scan(
		&l.LogID, &l.BookingReferenceID, &l.UserID, &l.IsVerified, &l.PaymentStatus, &txnID, &data,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking log %s: %w", logID, ErrBookingLogNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking log: %w", err)
	}

	if txnID.Valid {
		l.TransactionID = &txnID.String
	}
	if len(data) > 0 {
		l.Data = json.RawMessage(data)
	}
	return &l, nil
}

// MarkBookingLogVerified flips is_verified exactly once. A second call for
// the same log returns ErrAlreadyVerified.
func (db *DB) MarkBookingLogVerified(ctx context.Context, logID, transactionID string) error {
	query := `
		UPDATE booking_logs
		SET is_verified = 1, payment_status = ?, transaction_id = ?, updated_at = NOW()
		WHERE log_id = ? AND is_verified = 0
	`

	result, err := db.ExecContext(ctx, query, models.PaymentCaptured, transactionID, logID)
	if err != nil {
		return fmt.Errorf("failed to verify booking log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("booking log %s: %w", logID, ErrAlreadyVerified)
	}

	return nil
}

// UpdateBookingOrder writes the ticketing result back onto the booking
func (db *DB) UpdateBookingOrder(ctx context.Context, bookingID string, u models.BookingOrderUpdate) error {
	query := `
		UPDATE bookings
		SET booking_status = ?, supplier_status = ?, supplier_reference_id = ?, pnr = ?,
			ticket_numbers = ?, is_refundable = ?, total = ?, currency = ?,
			origin_code = ?, destination_code = ?, updated_at = NOW()
		WHERE booking_id = ?
	`

	tickets, _ := json.Marshal(u.TicketNumbers)
	origin, _ := json.Marshal(u.OriginCode)
	destination, _ := json.Marshal(u.DestinationCode)

	result, err := db.ExecContext(ctx, query, u.BookingStatus, u.SupplierStatus, u.SupplierReferenceID, u.PNR,
		string(tickets), u.IsRefundable, u.Total, u.Currency, string(origin), string(destination), bookingID)
	if err != nil {
		return fmt.Errorf("failed to update booking order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("booking %s: %w", bookingID, ErrBookingNotFound)
	}

	return nil
}

// TransitionBookingStatus moves a booking from one status to another. It
// reports false when the booking was no longer in from, which leaves a status
// written by the ticketing worker untouched.
func (db *DB) TransitionBookingStatus(ctx context.Context, bookingID, from, to string) (bool, error) {
	query := `
		UPDATE bookings
		SET booking_status = ?, updated_at = NOW()
		WHERE booking_id = ? AND booking_status = ?
	`

	result, err := db.ExecContext(ctx, query, to, bookingID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// SaveAdditionalDetail appends an audit row for a confirmed booking
func (db *DB) SaveAdditionalDetail(ctx context.Context, d *models.BookingAdditionalDetail) error {
	query := `
		INSERT INTO booking_additional_details (booking_id, supplier_request, supplier_response, api_request, api_response)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query, d.BookingID,
		nullJSON(d.SupplierRequest), nullJSON(d.SupplierResponse), nullJSON(d.APIRequest), nullJSON(d.APIResponse))
	if err != nil {
		return fmt.Errorf("failed to save booking detail: %w", err)
	}

	return nil
}

type column struct {
	raw  []byte
	dest interface{}
}

func unmarshalColumns(cols ...column) error {
	for _, c := range cols {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dest); err != nil {
			return fmt.Errorf("failed to decode json column: %w", err)
		}
	}
	return nil
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func last(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}
