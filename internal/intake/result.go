package intake

import (
	"github.com/wolfman30/cpr-booking-platform/internal/bookings"
	"github.com/wolfman30/cpr-booking-platform/internal/simplybook"
)

// SyncOutcome is how the remote scheduler sync ended for one intake.
type SyncOutcome string

const (
	SyncConfirmed            SyncOutcome = "confirmed"
	SyncRejected             SyncOutcome = "rejected"
	SyncSkippedNormalization SyncOutcome = "skipped_normalization"
	SyncFailed               SyncOutcome = "failed"
	SyncDisabled             SyncOutcome = "disabled"
)

// SyncReport describes the remote sync stage by stage.
type SyncReport struct {
	Outcome   SyncOutcome          `json:"outcome"`
	EventID   int                  `json:"eventId,omitempty"`
	EventName string               `json:"eventName,omitempty"`
	MatchTier simplybook.MatchTier `json:"matchTier,omitempty"`
	Date      string               `json:"date,omitempty"`
	Time      string               `json:"time,omitempty"`
	// Reason is the rejection kind or the field that failed to normalize.
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the response body of an intake.
type Result struct {
	Success            bool                     `json:"success"`
	Message            string                   `json:"message"`
	Booking            *bookings.Record         `json:"booking,omitempty"`
	Created            bool                     `json:"created"`
	SimplybookResponse any                      `json:"simplybookResponse,omitempty"`
	Availability       *simplybook.Availability `json:"availability,omitempty"`
	Sync               SyncReport               `json:"sync"`
}

const (
	msgConfirmed   = "Booking confirmed and synced with our scheduling system."
	msgUnavailable = "Booking received. The requested time is no longer available in our scheduling system, so our team will contact you to confirm a session."
	msgRejected    = "Booking received. Scheduling sync is pending manual review."
	msgSkipped     = "Booking received. We could not read the requested date or time, so our team will confirm your session manually."
	msgFailed      = "Booking received. Scheduling sync could not be completed; our team will follow up to confirm your session."
	msgReceived    = "Booking received."
	msgSaveFailed  = "We could not save your booking. Please contact us to confirm your session."

	msgSavedIncomplete = "Your booking was saved but could not be fully processed. Our team will follow up to confirm your session."
)

func messageFor(report SyncReport) string {
	switch report.Outcome {
	case SyncConfirmed:
		return msgConfirmed
	case SyncRejected:
		if report.Reason == simplybook.ErrorKindUnitUnavailable.String() || report.Reason == simplybook.ErrorKindEventUnavailable.String() {
			return msgUnavailable
		}
		return msgRejected
	case SyncSkippedNormalization:
		return msgSkipped
	case SyncFailed:
		return msgFailed
	default:
		return msgReceived
	}
}
