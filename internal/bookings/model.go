package bookings

import (
	"strings"
	"time"
)

// Status is the lifecycle state an operator assigns to a booking.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// ParseStatus validates a status supplied by a client.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Record is the business's own booking record.
type Record struct {
	ID                string    `json:"id"`
	ClientName        string    `json:"clientName"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Service           string    `json:"service"`
	Participants      int       `json:"participants"`
	Date              string    `json:"date"`
	Time              string    `json:"time"`
	Status            Status    `json:"status"`
	Notes             string    `json:"notes"`
	ExternalSessionID string    `json:"externalSessionId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Fields are the writable parts of a record. Empty strings and a zero
// participant count mean "keep what is there".
type Fields struct {
	ClientName   string
	Email        string
	Phone        string
	Service      string
	Participants int
	Date         string
	Time         string
	Status       Status
	Notes        string
}

func (f Fields) mergeInto(r *Record) {
	mergeString(&r.ClientName, f.ClientName)
	mergeString(&r.Email, f.Email)
	mergeString(&r.Phone, f.Phone)
	mergeString(&r.Service, f.Service)
	mergeString(&r.Date, f.Date)
	mergeString(&r.Time, f.Time)
	mergeString(&r.Notes, f.Notes)
	if f.Participants > 0 {
		r.Participants = f.Participants
	}
	if f.Status != "" {
		r.Status = f.Status
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func newRecord(id, sessionID string, f Fields, now time.Time) *Record {
	r := &Record{
		ID:                id,
		Participants:      1,
		Status:            StatusUpcoming,
		ExternalSessionID: sessionID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	f.mergeInto(r)
	return r
}

// ListFilter narrows List results. The zero value lists everything.
type ListFilter struct {
	Status Status
}

func (f ListFilter) matches(r *Record) bool {
	return f.Status == "" || r.Status == f.Status
}
