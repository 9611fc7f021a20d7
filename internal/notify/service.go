package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/cpr-booking-platform/internal/bookings"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

// Config controls the wording and routing of booking emails.
type Config struct {
	BusinessName string
	// AdminEmail receives a copy of every confirmation when set.
	AdminEmail string
	ReplyTo    string
}

// Service sends booking confirmation emails.
type Service struct {
	email  EmailSender
	cfg    Config
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.BusinessName) == "" {
		cfg.BusinessName = "CPR Training"
	}
	return &Service{email: email, cfg: cfg, logger: logger}
}

// SendBookingConfirmation emails the customer and, when configured, the
// operator. synced reports whether the scheduler accepted the booking.
func (s *Service) SendBookingConfirmation(ctx context.Context, rec *bookings.Record, synced bool) error {
	if s == nil || s.email == nil || rec == nil {
		return nil
	}

	var errs []error
	if strings.TrimSpace(rec.Email) != "" {
		msg := s.customerMessage(rec, synced)
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send confirmation", "error", err, "booking_id", rec.ID)
			errs = append(errs, err)
		} else {
			s.logger.Info("notify: confirmation sent", "booking_id", rec.ID, "synced", synced)
		}
	}

	if s.cfg.AdminEmail != "" {
		if err := s.email.Send(ctx, s.operatorMessage(rec, synced)); err != nil {
			s.logger.Error("notify: failed to send operator copy", "error", err, "booking_id", rec.ID)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d email(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (s *Service) customerMessage(rec *bookings.Record, synced bool) EmailMessage {
	name := firstNonEmpty(rec.ClientName, "there")

	var subject, lead string
	if synced {
		subject = fmt.Sprintf("Your %s booking is confirmed", rec.Service)
		lead = "Your class is booked and on our calendar."
	} else {
		subject = fmt.Sprintf("We received your %s booking", rec.Service)
		lead = "We received your booking. Our team will confirm the class time with you shortly."
	}

	details := bookingDetails(rec)
	body := fmt.Sprintf("Hi %s,\n\n%s\n\n%s\n\nThank you,\n%s", name, lead, details, s.cfg.BusinessName)

	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif; max-width: 600px;">`)
	fmt.Fprintf(&b, "<p>Hi %s,</p><p>%s</p>", html.EscapeString(name), html.EscapeString(lead))
	b.WriteString(`<table style="border-collapse: collapse; margin: 20px 0;">`)
	for _, row := range detailRows(rec) {
		fmt.Fprintf(&b, `<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			html.EscapeString(row[0]), html.EscapeString(row[1]))
	}
	fmt.Fprintf(&b, "</table><p>Thank you,<br>%s</p></div>", html.EscapeString(s.cfg.BusinessName))

	return EmailMessage{
		To:       rec.Email,
		ToName:   rec.ClientName,
		Subject:  subject,
		Body:     body,
		HTML:     b.String(),
		ReplyTo:  s.cfg.ReplyTo,
		Category: CategoryConfirmation,
	}
}

func (s *Service) operatorMessage(rec *bookings.Record, synced bool) EmailMessage {
	state := "synced to scheduler"
	if !synced {
		state = "NOT synced to scheduler, confirm manually"
	}
	subject := fmt.Sprintf("New booking: %s (%s)", firstNonEmpty(rec.ClientName, rec.Email), state)
	body := fmt.Sprintf("%s\n\nEmail: %s\nPhone: %s\nBooking ID: %s", bookingDetails(rec), rec.Email, firstNonEmpty(rec.Phone, "not provided"), rec.ID)
	if rec.Notes != "" {
		body += "\nNotes: " + rec.Notes
	}
	return EmailMessage{
		To:       s.cfg.AdminEmail,
		Subject:  subject,
		Body:     body,
		ReplyTo:  rec.Email,
		Category: CategoryOperatorCopy,
	}
}

func detailRows(rec *bookings.Record) [][2]string {
	return [][2]string{
		{"Class", rec.Service},
		{"Date", displayDate(rec.Date)},
		{"Time", rec.Time},
		{"Participants", fmt.Sprintf("%d", rec.Participants)},
	}
}

func bookingDetails(rec *bookings.Record) string {
	lines := make([]string, 0, 4)
	for _, row := range detailRows(rec) {
		lines = append(lines, row[0]+": "+row[1])
	}
	return strings.Join(lines, "\n")
}

// displayDate trims the midnight timestamp stored on records.
func displayDate(date string) string {
	if i := strings.IndexByte(date, 'T'); i == len("2006-01-02") {
		return date[:i]
	}
	return date
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
