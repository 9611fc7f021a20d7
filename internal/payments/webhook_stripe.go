package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/wolfman30/cpr-booking-platform/internal/intake"
	"github.com/wolfman30/cpr-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

const (
	providerStripe         = "stripe"
	eventCheckoutCompleted = "checkout.session.completed"
	maxWebhookPayloadBytes = 65536
	stripeSignatureHeader  = "Stripe-Signature"
)

// Intaker runs a completed booking through the intake flow.
type Intaker interface {
	Process(ctx context.Context, req intake.Request) (*intake.Result, error)
}

// StripeWebhookHandler turns completed checkout sessions into bookings.
type StripeWebhookHandler struct {
	webhookSecret string
	intake        Intaker
	processed     ProcessedTracker
	metrics       *metrics.IntakeMetrics
	logger        *logging.Logger
}

// NewStripeWebhookHandler creates a handler. An empty webhookSecret skips
// signature checks, which is only meant for local development.
func NewStripeWebhookHandler(webhookSecret string, in Intaker, processed ProcessedTracker, m *metrics.IntakeMetrics, logger *logging.Logger) *StripeWebhookHandler {
	if in == nil {
		panic("payments: intake required")
	}
	if processed == nil {
		processed = NewMemoryProcessedTracker(0)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		intake:        in,
		processed:     processed,
		metrics:       m,
		logger:        logger,
	}
}

// Handle processes POST /webhooks/stripe.
//
// Authentic events are acknowledged with 200 even when the remote
// scheduler sync fails. Only a failed internal save returns 500, so Stripe
// redelivers and the event is claimable again.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPayloadBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	evt, err := h.constructEvent(payload, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		h.logger.Warn("stripe webhook rejected", "error", err)
		h.metrics.ObserveWebhook(providerStripe, "unknown", "invalid_signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	eventType := string(evt.Type)
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	if eventType != eventCheckoutCompleted {
		h.metrics.ObserveWebhook(providerStripe, eventType, "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	claimed, err := h.processed.MarkProcessed(r.Context(), providerStripe, evt.ID)
	if err != nil {
		h.logger.Error("processed lookup failed", "error", err, "event_id", evt.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !claimed {
		h.metrics.ObserveWebhook(providerStripe, eventType, "duplicate")
		w.WriteHeader(http.StatusOK)
		return
	}

	var session stripe.CheckoutSession
	if evt.Data == nil || json.Unmarshal(evt.Data.Raw, &session) != nil {
		h.logger.Warn("stripe webhook has no checkout session", "event_id", evt.ID)
		h.metrics.ObserveWebhook(providerStripe, eventType, "malformed")
		w.WriteHeader(http.StatusOK)
		return
	}

	req := IntakeRequestFromSession(&session)
	res, err := h.intake.Process(r.Context(), req)
	var verr *intake.ValidationError
	switch {
	case errors.As(err, &verr):
		// Retrying cannot add metadata the session never had.
		h.logger.Warn("stripe session missing booking metadata",
			"event_id", evt.ID,
			"session_id", session.ID,
			"missing", strings.Join(verr.Missing, ","),
		)
		h.metrics.ObserveWebhook(providerStripe, eventType, "incomplete")
		w.WriteHeader(http.StatusOK)
	case err != nil:
		h.logger.Error("stripe intake failed", "error", err, "event_id", evt.ID, "session_id", session.ID)
		if rerr := h.processed.Release(r.Context(), providerStripe, evt.ID); rerr != nil {
			h.logger.Warn("failed to release processed event", "error", rerr, "event_id", evt.ID)
		}
		h.metrics.ObserveWebhook(providerStripe, eventType, "failed")
		http.Error(w, "server error", http.StatusInternalServerError)
	default:
		h.logger.Info("stripe checkout booked",
			"event_id", evt.ID,
			"session_id", session.ID,
			"booking_id", res.Booking.ID,
			"sync", string(res.Sync.Outcome),
		)
		h.metrics.ObserveWebhook(providerStripe, eventType, "processed")
		w.WriteHeader(http.StatusOK)
	}
}

func (h *StripeWebhookHandler) constructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if h.webhookSecret == "" {
		var evt stripe.Event
		err := json.Unmarshal(payload, &evt)
		return evt, err
	}
	return webhook.ConstructEventWithOptions(payload, sigHeader, h.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// IntakeRequestFromSession maps checkout session metadata onto an intake
// request. Metadata keys are set when the checkout session is created.
func IntakeRequestFromSession(s *stripe.CheckoutSession) intake.Request {
	md := s.Metadata
	req := intake.Request{
		SessionID:    s.ID,
		CustomerName: md["customerName"],
		Email:        s.CustomerEmail,
		Service:      md["service"],
		Date:         md["date"],
		Time:         md["time"],
		Notes:        md["notes"],
	}
	if d := s.CustomerDetails; d != nil {
		if d.Email != "" {
			req.Email = d.Email
		}
		req.Phone = d.Phone
		if req.CustomerName == "" {
			req.CustomerName = d.Name
		}
	}
	if req.Phone == "" {
		req.Phone = md["phone"]
	}
	if v := strings.TrimSpace(md["participants"]); v != "" {
		_ = req.Participants.UnmarshalJSON([]byte(v))
	}
	if v := strings.TrimSpace(md["unitId"]); v != "" {
		req.UnitID = v
	}
	return req
}
