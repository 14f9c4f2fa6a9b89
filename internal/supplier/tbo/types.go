package tbo

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	statusSuccessful = 1

	// errInvalidSession is returned when the day's token was revoked early
	errInvalidSession = 6

	journeyOneWay = 1
	journeyReturn = 2

	paxAdult  = 1
	paxChild  = 2
	paxInfant = 3
)

// Booking statuses reported by GetBookingDetails
const (
	bookingFailed    = 3
	bookingConfirmed = 1
	bookingTicketed  = 5
)

// wallClock is the zone-less local time format used on every timestamp
const wallClock = "2006-01-02T15:04:05"

type apiError struct {
	ErrorCode    int    `json:"ErrorCode"`
	ErrorMessage string `json:"ErrorMessage"`
}

// envelope is the status part shared by every response
type envelope struct {
	Response struct {
		ResponseStatus int      `json:"ResponseStatus"`
		Error          apiError `json:"Error"`
		TraceID        string   `json:"TraceId"`
	} `json:"Response"`
}

type authRequest struct {
	ClientID  string `json:"ClientId"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
	EndUserIP string `json:"EndUserIp"`
}

type authResponse struct {
	Status  int      `json:"Status"`
	TokenID string   `json:"TokenId"`
	Error   apiError `json:"Error"`
}

type searchSegment struct {
	Origin                 string `json:"Origin"`
	Destination            string `json:"Destination"`
	FlightCabinClass       int    `json:"FlightCabinClass"`
	PreferredDepartureTime string `json:"PreferredDepartureTime"`
}

type searchRequest struct {
	EndUserIP   string          `json:"EndUserIp"`
	TokenID     string          `json:"TokenId"`
	AdultCount  int             `json:"AdultCount"`
	ChildCount  int             `json:"ChildCount"`
	InfantCount int             `json:"InfantCount"`
	JourneyType int             `json:"JourneyType"`
	Segments    []searchSegment `json:"Segments"`
}

type searchResponse struct {
	Response struct {
		ResponseStatus int        `json:"ResponseStatus"`
		Error          apiError   `json:"Error"`
		TraceID        string     `json:"TraceId"`
		Results        [][]result `json:"Results"`
	} `json:"Response"`
}

type airport struct {
	AirportCode string `json:"AirportCode"`
	AirportName string `json:"AirportName"`
	Terminal    string `json:"Terminal"`
	CityName    string `json:"CityName"`
}

type wireTime struct{ time.Time }

func (t *wireTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	parsed, err := time.Parse(wallClock, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t wireTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(wallClock))
}

type segment struct {
	Airline struct {
		AirlineCode  string `json:"AirlineCode"`
		AirlineName  string `json:"AirlineName"`
		FlightNumber string `json:"FlightNumber"`
		FareClass    string `json:"FareClass"`
	} `json:"Airline"`
	Origin struct {
		Airport airport  `json:"Airport"`
		DepTime wireTime `json:"DepTime"`
	} `json:"Origin"`
	Destination struct {
		Airport airport  `json:"Airport"`
		ArrTime wireTime `json:"ArrTime"`
	} `json:"Destination"`
	Duration     int    `json:"Duration"`
	CabinClass   int    `json:"CabinClass"`
	Baggage      string `json:"Baggage"`
	CabinBaggage string `json:"CabinBaggage"`
}

type fare struct {
	Currency      string  `json:"Currency"`
	BaseFare      float64 `json:"BaseFare"`
	Tax           float64 `json:"Tax"`
	PublishedFare float64 `json:"PublishedFare"`
	OfferedFare   float64 `json:"OfferedFare"`
	ServiceFee    float64 `json:"ServiceFee"`
	OtherCharges  float64 `json:"OtherCharges"`
}

// fareBreakdown amounts are totals for PassengerCount passengers
type fareBreakdown struct {
	PassengerType  int     `json:"PassengerType"`
	PassengerCount int     `json:"PassengerCount"`
	BaseFare       float64 `json:"BaseFare"`
	Tax            float64 `json:"Tax"`
}

type result struct {
	ResultIndex   string          `json:"ResultIndex"`
	IsLCC         bool            `json:"IsLCC"`
	IsRefundable  bool            `json:"IsRefundable"`
	Fare          fare            `json:"Fare"`
	FareBreakdown []fareBreakdown `json:"FareBreakdown"`
	Segments      [][]segment     `json:"Segments"`
}

// legRequest addresses one result for FareRule and FareQuote
type legRequest struct {
	EndUserIP   string `json:"EndUserIp"`
	TokenID     string `json:"TokenId"`
	TraceID     string `json:"TraceId"`
	ResultIndex string `json:"ResultIndex"`
}

type fareRuleResponse struct {
	Response struct {
		ResponseStatus int      `json:"ResponseStatus"`
		Error          apiError `json:"Error"`
		FareRules      []struct {
			Origin         string `json:"Origin"`
			Destination    string `json:"Destination"`
			Airline        string `json:"Airline"`
			FareBasisCode  string `json:"FareBasisCode"`
			FareRuleDetail string `json:"FareRuleDetail"`
		} `json:"FareRules"`
	} `json:"Response"`
}

type fareQuoteResponse struct {
	Response struct {
		ResponseStatus int      `json:"ResponseStatus"`
		Error          apiError `json:"Error"`
		TraceID        string   `json:"TraceId"`
		IsPriceChanged bool     `json:"IsPriceChanged"`
		Results        result   `json:"Results"`
	} `json:"Response"`
}

type passenger struct {
	Title       string `json:"Title"`
	FirstName   string `json:"FirstName"`
	LastName    string `json:"LastName"`
	PaxType     int    `json:"PaxType"`
	DateOfBirth string `json:"DateOfBirth,omitempty"`
	Gender      int    `json:"Gender"`
	PassportNo  string `json:"PassportNo,omitempty"`
	Nationality string `json:"Nationality,omitempty"`
	ContactNo   string `json:"ContactNo"`
	Email       string `json:"Email"`
	IsLeadPax   bool   `json:"IsLeadPax"`
	Fare        fare   `json:"Fare"`
}

type bookRequest struct {
	EndUserIP   string      `json:"EndUserIp"`
	TokenID     string      `json:"TokenId"`
	TraceID     string      `json:"TraceId"`
	ResultIndex string      `json:"ResultIndex"`
	Passengers  []passenger `json:"Passengers"`
}

type bookResponse struct {
	Response struct {
		ResponseStatus int      `json:"ResponseStatus"`
		Error          apiError `json:"Error"`
		TraceID        string   `json:"TraceId"`
		Response       struct {
			PNR       string `json:"PNR"`
			BookingID int64  `json:"BookingId"`
		} `json:"Response"`
	} `json:"Response"`
}

// ticketRequest tickets an LCC result directly or a held non-LCC PNR
type ticketRequest struct {
	EndUserIP             string      `json:"EndUserIp"`
	TokenID               string      `json:"TokenId"`
	TraceID               string      `json:"TraceId"`
	ResultIndex           string      `json:"ResultIndex,omitempty"`
	PNR                   string      `json:"PNR,omitempty"`
	BookingID             int64       `json:"BookingId,omitempty"`
	Passengers            []passenger `json:"Passengers,omitempty"`
	IsPriceChangeAccepted bool        `json:"IsPriceChangeAccepted"`
}

type itinerary struct {
	PNR          string `json:"PNR"`
	BookingID    int64  `json:"BookingId"`
	Status       int    `json:"Status"`
	IsRefundable bool   `json:"IsRefundable"`
	Origin       string `json:"Origin"`
	Destination  string `json:"Destination"`
	Fare         fare   `json:"Fare"`
	Passenger    []struct {
		Ticket *struct {
			TicketNumber string `json:"TicketNumber"`
		} `json:"Ticket"`
	} `json:"Passenger"`
}

func (it itinerary) ticketNumbers() []string {
	var out []string
	for _, p := range it.Passenger {
		if p.Ticket != nil && p.Ticket.TicketNumber != "" {
			out = append(out, p.Ticket.TicketNumber)
		}
	}
	return out
}

type ticketResponse struct {
	Response struct {
		ResponseStatus int      `json:"ResponseStatus"`
		Error          apiError `json:"Error"`
		TraceID        string   `json:"TraceId"`
		Response       struct {
			PNR             string    `json:"PNR"`
			BookingID       int64     `json:"BookingId"`
			IsPriceChanged  bool      `json:"IsPriceChanged"`
			IsTimeChanged   bool      `json:"IsTimeChanged"`
			FlightItinerary itinerary `json:"FlightItinerary"`
		} `json:"Response"`
	} `json:"Response"`
}

type bookingDetailsRequest struct {
	EndUserIP string `json:"EndUserIp"`
	TokenID   string `json:"TokenId"`
	PNR       string `json:"PNR"`
	BookingID int64  `json:"BookingId"`
}

type bookingDetailsResponse struct {
	Response struct {
		ResponseStatus  int       `json:"ResponseStatus"`
		Error           apiError  `json:"Error"`
		FlightItinerary itinerary `json:"FlightItinerary"`
	} `json:"Response"`
}
