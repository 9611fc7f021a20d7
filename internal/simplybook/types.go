package simplybook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultLoginURL = "https://user-api.simplybook.me/login"
	defaultAPIURL   = "https://user-api.simplybook.me"
)

// Event is one entry of the remote service catalog.
type Event struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration,omitempty"`
	Price    string `json:"price,omitempty"`
}

type rawEvent struct {
	ID       flexInt    `json:"id"`
	Name     string     `json:"name"`
	Duration flexInt    `json:"duration"`
	Price    flexString `json:"price"`
}

// ClientData is the contact block sent with a booking.
type ClientData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// BookRequest is the input for Book. UnitID is nil when the caller has no
// specific provider in mind.
type BookRequest struct {
	EventID    int
	UnitID     *int
	Date       string
	Time       string
	Client     ClientData
	Additional map[string]any
}

// BookedSlot is one booking the remote created.
type BookedSlot struct {
	ID            string `json:"id"`
	EventID       string `json:"eventId,omitempty"`
	UnitID        string `json:"unitId,omitempty"`
	StartDateTime string `json:"startDateTime,omitempty"`
	EndDateTime   string `json:"endDateTime,omitempty"`
	Code          string `json:"code,omitempty"`
}

type rawBookedSlot struct {
	ID            flexString `json:"id"`
	EventID       flexString `json:"event_id"`
	UnitID        flexString `json:"unit_id"`
	StartDateTime string     `json:"start_date_time"`
	EndDateTime   string     `json:"end_date_time"`
	Code          string     `json:"code"`
}

// BookResult carries either the remote's accepted bookings or the remote
// error object. A non-nil Error is a soft failure, not a Go error.
type BookResult struct {
	RequireConfirm bool            `json:"requireConfirm,omitempty"`
	Bookings       []BookedSlot    `json:"bookings,omitempty"`
	Error          *RemoteError    `json:"error,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// Confirmed reports whether the remote accepted the booking.
func (r *BookResult) Confirmed() bool {
	return r != nil && r.Error == nil
}

// ErrorKind classifies remote rejections the intake flow reports differently.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindUnitUnavailable
	ErrorKindEventUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindUnitUnavailable:
		return "unit_unavailable"
	case ErrorKindEventUnavailable:
		return "event_unavailable"
	default:
		return "unknown"
	}
}

// RemoteError is the JSON-RPC error object returned by the scheduler.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Kind    ErrorKind       `json:"-"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("simplybook: remote error %d: %s", e.Code, e.Message)
}

// Unavailable reports whether the remote rejected the slot itself.
func (e *RemoteError) Unavailable() bool {
	return e != nil && (e.Kind == ErrorKindUnitUnavailable || e.Kind == ErrorKindEventUnavailable)
}

func classifyError(message string) ErrorKind {
	msg := strings.ToLower(message)
	if !strings.Contains(msg, "not available") && !strings.Contains(msg, "unavailable") {
		return ErrorKindUnknown
	}
	for _, word := range []string{"unit", "provider", "performer"} {
		if strings.Contains(msg, word) {
			return ErrorKindUnitUnavailable
		}
	}
	for _, word := range []string{"event", "service", "time"} {
		if strings.Contains(msg, word) {
			return ErrorKindEventUnavailable
		}
	}
	return ErrorKindUnknown
}

// WorkDay is one day of a provider's work calendar.
type WorkDay struct {
	From     string `json:"from"`
	To       string `json:"to"`
	IsDayOff bool   `json:"isDayOff"`
}

type rawWorkDay struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	IsDayOff flexInt `json:"is_day_off"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RemoteError    `json:"error"`
	ID     json.RawMessage `json:"id"`
}

// flexInt accepts 7, "7" and "" from the remote.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("simplybook: not an integer: %s", s)
		}
		n = int(fl)
	}
	*f = flexInt(n)
	return nil
}

// flexString accepts strings and bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}
