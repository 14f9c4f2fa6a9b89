package models

import (
	"encoding/json"
	"time"
)

// Booking statuses
const (
	StatusInProgress = "INPROGRESS"
	StatusConfirmed  = "CONFIRMED"
	StatusPending    = "PENDING"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
)

// Payment statuses
const (
	PaymentPending  = "PENDING"
	PaymentCaptured = "CAPTURED"
)

// ModuleFlight is the supplier credential module used by this service
const ModuleFlight = "flight"

// IsTerminalStatus reports whether a booking can no longer change state
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusConfirmed, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Booking represents a flight reservation
type Booking struct {
	BookingID           string    `json:"bookingId" db:"booking_id"`
	BookingReferenceID  string    `json:"bookingReferenceId" db:"booking_reference_id"`
	UserID              string    `json:"userId" db:"user_id"`
	SupplierName        string    `json:"supplierName" db:"supplier_name"`
	BookingStatus       string    `json:"bookingStatus" db:"booking_status"`
	SupplierStatus      string    `json:"supplierStatus,omitempty" db:"supplier_status"`
	JourneyType         string    `json:"journeyType" db:"journey_type"`
	OriginCode          []string  `json:"originCode" db:"origin_code"`
	DestinationCode     []string  `json:"destinationCode" db:"destination_code"`
	Checkin             time.Time `json:"checkin" db:"checkin"`
	Checkout            time.Time `json:"checkout" db:"checkout"`
	Paxes               PaxCount  `json:"paxes" db:"paxes"`
	Total               float64   `json:"total" db:"total"`
	Currency            string    `json:"currency" db:"currency"`
	SupplierReferenceID string    `json:"supplierReferenceId,omitempty" db:"supplier_reference_id"`
	PNR                 string    `json:"pnr,omitempty" db:"pnr"`
	TicketNumbers       []string  `json:"ticketNumbers,omitempty" db:"ticket_numbers"`
	IsRefundable        bool      `json:"isRefundable" db:"is_refundable"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time `json:"updatedAt" db:"updated_at"`
}

// BookingLog is the durable replay handle created at initiate
type BookingLog struct {
	LogID              string          `json:"logId" db:"log_id"`
	BookingReferenceID string          `json:"bookingReferenceId" db:"booking_reference_id"`
	UserID             string          `json:"userId" db:"user_id"`
	IsVerified         bool            `json:"isVerified" db:"is_verified"`
	PaymentStatus      string          `json:"paymentStatus" db:"payment_status"`
	TransactionID      *string         `json:"transactionId,omitempty" db:"transaction_id"`
	Data               json.RawMessage `json:"data" db:"data"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" db:"updated_at"`
}

// BookingAdditionalDetail is the append-only audit row written after confirm
type BookingAdditionalDetail struct {
	BookingID        string          `json:"bookingId" db:"booking_id"`
	SupplierRequest  json.RawMessage `json:"supplierRequest" db:"supplier_request"`
	SupplierResponse json.RawMessage `json:"supplierResponse" db:"supplier_response"`
	APIRequest       json.RawMessage `json:"apiRequest" db:"api_request"`
	APIResponse      json.RawMessage `json:"apiResponse" db:"api_response"`
}

// ErrorLog captures a supplier-caused failure for offline reconciliation
type ErrorLog struct {
	Source   string          `json:"source" db:"source"`
	Supplier string          `json:"supplier" db:"supplier_code"`
	Message  string          `json:"message" db:"message"`
	Stack    string          `json:"stack" db:"stack"`
	Request  json.RawMessage `json:"request,omitempty" db:"request"`
	Response json.RawMessage `json:"response,omitempty" db:"response"`
}

// SupplierCredential is one supplier_credentials row
type SupplierCredential struct {
	SupplierCode string `json:"supplierCode" db:"supplier_code"`
	Module       string `json:"module" db:"module"`
	BaseURL      string `json:"baseUrl" db:"base_url"`
	ClientID     string `json:"clientId" db:"client_id"`
	UserName     string `json:"userName" db:"user_name"`
	Password     string `json:"-" db:"password"`
	IsActive     bool   `json:"isActive" db:"is_active"`
}

// DuplicateQuery identifies an equivalent open booking
type DuplicateQuery struct {
	UserID      string
	Origin      string
	Destination string
	Checkin     time.Time
	Checkout    time.Time
	Supplier    string
	JourneyType string
	Paxes       PaxCount
}

// BookingOrderUpdate is what confirm writes back onto the booking row
type BookingOrderUpdate struct {
	BookingStatus       string
	SupplierStatus      string
	SupplierReferenceID string
	PNR                 string
	TicketNumbers       []string
	IsRefundable        bool
	Total               float64
	Currency            string
	OriginCode          []string
	DestinationCode     []string
}

// API Request/Response models

type Passenger struct {
	Title       string `json:"title"`
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	PaxType     string `json:"paxType" validate:"omitempty,oneof=ADT CHD INF"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Gender      string `json:"gender"`
	Passport    string `json:"passportNo,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	IsLead      bool   `json:"isLeadPax"`
}

type Contact struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

type InitiateRequest struct {
	SolutionID   string      `json:"solutionId" validate:"required"`
	SearchReqID  string      `json:"searchReqID"`
	ProviderCode string      `json:"providerCode" validate:"required"`
	JourneyType  string      `json:"journeyType" validate:"required,oneof=ONE_WAY ROUND_TRIP"`
	Currency     string      `json:"currency"`
	Passengers   []Passenger `json:"passengers" validate:"required,min=1,dive"`
	Contact      Contact     `json:"contact"`
	Routes       []RouteInfo `json:"routes" validate:"required,min=1,max=2,dive"`
}

type InitiateResponse struct {
	BookingLogID string `json:"booking_log_id"`
	BookingID    string `json:"booking_id"`
	Fare         Fare   `json:"fare"`
	Error        bool   `json:"error"`
	Message      string `json:"message,omitempty"`
}

type ConfirmRequest struct {
	BookingID    string `json:"bookingId" validate:"required"`
	BookingLogID string `json:"bookingLogId" validate:"required"`
}

// OrderDetail is the supplier's view of one booked leg
type OrderDetail struct {
	SolutionID          string   `json:"solutionId"`
	SupplierReferenceID string   `json:"supplierReferenceId"`
	PNR                 string   `json:"pnr"`
	Status              string   `json:"status"`
	TicketNumbers       []string `json:"ticketNumbers,omitempty"`
	IsRefundable        bool     `json:"isRefundable"`
	Fare                Fare     `json:"fare"`
	Origin              string   `json:"origin"`
	Destination         string   `json:"destination"`
}

type BookResponse struct {
	OrderDetail  []OrderDetail `json:"orderDetail"`
	OrderDetails *Booking      `json:"orderDetails"`
	Error        bool          `json:"error"`
	Message      string        `json:"message,omitempty"`
}
