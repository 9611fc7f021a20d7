package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/wolfman30/cpr-booking-platform/internal/bookings"
	"github.com/wolfman30/cpr-booking-platform/internal/intake"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

const testSecret = "whsec_test123"

func buildStripePayload(t *testing.T, eventID, eventType, sessionID string, metadata map[string]string) []byte {
	t.Helper()
	evt := map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"object":         "checkout.session",
				"customer_email": "fallback@example.com",
				"customer_details": map[string]any{
					"email": "jane@example.com",
					"phone": "+1 555 123 4567",
					"name":  "Jane From Stripe",
				},
				"metadata":       metadata,
				"payment_status": "paid",
			},
		},
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("failed to marshal stripe event: %v", err)
	}
	return data
}

func stripeSign(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%s,v1=%s", ts, sig)
}

func bookingMetadata() map[string]string {
	return map[string]string{
		"service":      "BLS Provider",
		"date":         "2025-04-14",
		"time":         "9:00 AM",
		"participants": "2",
		"customerName": "Jane Doe",
		"unitId":       "4",
	}
}

type stubIntake struct {
	requests []intake.Request
	err      error
}

func (s *stubIntake) Process(ctx context.Context, req intake.Request) (*intake.Result, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &intake.Result{Success: true, Booking: &bookings.Record{ID: "b-1"}, Sync: intake.SyncReport{Outcome: intake.SyncDisabled}}, nil
}

func postWebhook(h *StripeWebhookHandler, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhooks/stripe", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func TestStripeWebhookHandler_Success(t *testing.T) {
	in := &stubIntake{}
	handler := NewStripeWebhookHandler(testSecret, in, NewMemoryProcessedTracker(time.Hour), nil, logging.Default())

	body := buildStripePayload(t, "evt_1", "checkout.session.completed", "cs_123", bookingMetadata())
	rr := postWebhook(handler, body, stripeSign(body, testSecret))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(in.requests) != 1 {
		t.Fatalf("expected one intake, got %d", len(in.requests))
	}
	req := in.requests[0]
	if req.SessionID != "cs_123" || req.Email != "jane@example.com" || req.Phone != "+1 555 123 4567" {
		t.Fatalf("unexpected contact mapping: %+v", req)
	}
	if req.CustomerName != "Jane Doe" || req.Service != "BLS Provider" || req.Time != "9:00 AM" {
		t.Fatalf("unexpected metadata mapping: %+v", req)
	}
	if req.Participants != 2 || req.UnitID != "4" {
		t.Fatalf("unexpected participants/unit: %+v", req)
	}
}

func TestStripeWebhookHandler_InvalidSignature(t *testing.T) {
	in := &stubIntake{}
	handler := NewStripeWebhookHandler(testSecret, in, nil, nil, logging.Default())

	body := buildStripePayload(t, "evt_1", "checkout.session.completed", "cs_123", bookingMetadata())
	rr := postWebhook(handler, body, stripeSign(body, "whsec_wrong"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if rr := postWebhook(handler, body, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d", rr.Code)
	}
	if len(in.requests) != 0 {
		t.Fatalf("intake must not run for unsigned payloads")
	}
}

func TestStripeWebhookHandler_DevBypass(t *testing.T) {
	in := &stubIntake{}
	handler := NewStripeWebhookHandler("", in, nil, nil, logging.Default())
	body := buildStripePayload(t, "evt_dev", "checkout.session.completed", "cs_dev", bookingMetadata())
	if rr := postWebhook(handler, body, ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(in.requests) != 1 {
		t.Fatalf("expected intake to run")
	}
}

func TestStripeWebhookHandler_IgnoresOtherEvents(t *testing.T) {
	in := &stubIntake{}
	handler := NewStripeWebhookHandler(testSecret, in, nil, nil, logging.Default())
	body := buildStripePayload(t, "evt_2", "payment_intent.created", "pi_1", nil)
	if rr := postWebhook(handler, body, stripeSign(body, testSecret)); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(in.requests) != 0 {
		t.Fatalf("non-checkout events must be ignored")
	}
}

func TestStripeWebhookHandler_Duplicate(t *testing.T) {
	in := &stubIntake{}
	handler := NewStripeWebhookHandler(testSecret, in, NewMemoryProcessedTracker(time.Hour), nil, logging.Default())
	body := buildStripePayload(t, "evt_dup", "checkout.session.completed", "cs_dup", bookingMetadata())

	for i := 0; i < 2; i++ {
		if rr := postWebhook(handler, body, stripeSign(body, testSecret)); rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rr.Code)
		}
	}
	if len(in.requests) != 1 {
		t.Fatalf("expected single intake for duplicate delivery, got %d", len(in.requests))
	}
}

func TestStripeWebhookHandler_IncompleteMetadataAcknowledged(t *testing.T) {
	in := &stubIntake{err: &intake.ValidationError{Missing: []string{"service"}}}
	handler := NewStripeWebhookHandler(testSecret, in, nil, nil, logging.Default())
	body := buildStripePayload(t, "evt_3", "checkout.session.completed", "cs_3", map[string]string{})
	if rr := postWebhook(handler, body, stripeSign(body, testSecret)); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestStripeWebhookHandler_SaveFailureReleasesEvent(t *testing.T) {
	in := &stubIntake{err: fmt.Errorf("%w: db down", intake.ErrInternal)}
	tracker := NewMemoryProcessedTracker(time.Hour)
	handler := NewStripeWebhookHandler(testSecret, in, tracker, nil, logging.Default())
	body := buildStripePayload(t, "evt_4", "checkout.session.completed", "cs_4", bookingMetadata())

	if rr := postWebhook(handler, body, stripeSign(body, testSecret)); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	in.err = nil
	if rr := postWebhook(handler, body, stripeSign(body, testSecret)); rr.Code != http.StatusOK {
		t.Fatalf("expected redelivery to succeed, got %d", rr.Code)
	}
	if len(in.requests) != 2 {
		t.Fatalf("expected redelivery to reach intake, got %d calls", len(in.requests))
	}
}

func TestStripeWebhookHandler_TrackerError(t *testing.T) {
	in := &stubIntake{}
	handler := NewStripeWebhookHandler(testSecret, in, errTracker{}, nil, logging.Default())
	body := buildStripePayload(t, "evt_5", "checkout.session.completed", "cs_5", bookingMetadata())
	if rr := postWebhook(handler, body, stripeSign(body, testSecret)); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

type errTracker struct{}

func (errTracker) MarkProcessed(context.Context, string, string) (bool, error) {
	return false, errors.New("redis down")
}

func (errTracker) Release(context.Context, string, string) error { return nil }

func TestIntakeRequestFromSessionFallbacks(t *testing.T) {
	req := IntakeRequestFromSession(&stripe.CheckoutSession{
		ID:            "cs_9",
		CustomerEmail: "only@example.com",
		Metadata:      map[string]string{"participants": "lots", "unitId": "", "phone": "5551234567"},
	})
	if req.Email != "only@example.com" || req.Phone != "5551234567" {
		t.Fatalf("unexpected fallbacks: %+v", req)
	}
	if req.Participants != 0 || req.UnitID != nil {
		t.Fatalf("unexpected participants/unit: %+v", req)
	}
}
