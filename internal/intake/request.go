package intake

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request is a completed booking handed to the intake flow, either by the
// payment webhook or by the site's confirmation page.
type Request struct {
	SessionID    string `json:"sessionId"`
	CustomerName string `json:"customerName"`
	Email        string `json:"email" validate:"required"`
	Phone        string `json:"phone"`
	Service      string `json:"service" validate:"required"`
	Date         string `json:"date" validate:"required"`
	Time         string `json:"time" validate:"required"`
	Participants Count  `json:"participants"`
	Notes        string `json:"notes"`
	UnitID       any    `json:"unitId,omitempty"`
}

func (r Request) trimmed() Request {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Service = strings.TrimSpace(r.Service)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	return r
}

// Count is a participant count that tolerates string-encoded numbers.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// unreadable counts fall back to the default
		*c = 0
		return nil
	}
	*c = Count(n)
	return nil
}

// ValidationError lists the required fields a request is missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateRequest(v *validator.Validate, req Request) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return &ValidationError{Missing: missing}
}
