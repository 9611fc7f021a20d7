package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "",
		FromEmail: "test@example.com",
	}, nil)

	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "test@example.com",
		FromName:  "",
	}, nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name %q, got %q", defaultFromName, sender.fromName)
	}
}

func TestNewSendGridSender_CustomFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "test@example.com",
		FromName:  "Custom Name",
	}, nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != "Custom Name" {
		t.Errorf("expected from name 'Custom Name', got %q", sender.fromName)
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{
		client: nil,
	}

	err := sender.Send(context.Background(), EmailMessage{
		To:      "recipient@example.com",
		Subject: "Test",
		Body:    "Test body",
	})

	if err == nil {
		t.Error("expected error when client is nil")
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "recipient@example.com",
		Subject: "Test Subject",
		Body:    "Test body",
	})

	if err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}

func TestStubEmailSender_RecordsMessages(t *testing.T) {
	sender := NewStubEmailSender(nil)
	_ = sender.Send(context.Background(), EmailMessage{To: "a@example.com", Subject: "one"})
	_ = sender.Send(context.Background(), EmailMessage{To: "b@example.com", Subject: "two"})

	sent := sender.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 recorded messages, got %d", len(sent))
	}
	if sent[1].Subject != "two" {
		t.Errorf("unexpected subject: %s", sent[1].Subject)
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := newSESSender(api, SESConfig{FromEmail: "bookings@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:       "customer@example.com",
		Subject:  "Booked",
		Body:     "See you there",
		ReplyTo:  "desk@example.com",
		Category: CategoryConfirmation,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.input == nil {
		t.Fatal("expected SendEmail to be called")
	}
	if got := api.input.Destination.ToAddresses; len(got) != 1 || got[0] != "customer@example.com" {
		t.Errorf("unexpected destination: %v", got)
	}
	if got := api.input.ReplyToAddresses; len(got) != 1 || got[0] != "desk@example.com" {
		t.Errorf("unexpected reply-to: %v", got)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != `"CPR Training Bookings" <bookings@example.com>` {
		t.Errorf("unexpected from address: %s", got)
	}
	if tags := api.input.EmailTags; len(tags) != 1 || aws.ToString(tags[0].Value) != CategoryConfirmation {
		t.Errorf("expected category tag, got %+v", tags)
	}
	if api.input.Content.Simple.Body.Html != nil {
		t.Errorf("expected text-only body")
	}
}

func TestSESSender_SendError(t *testing.T) {
	api := &fakeSES{err: errors.New("throttled")}
	sender := newSESSender(api, SESConfig{FromEmail: "bookings@example.com"}, nil)

	if err := sender.Send(context.Background(), EmailMessage{To: "x@example.com", Subject: "s", Body: "b"}); err == nil {
		t.Error("expected error from SES")
	}
}

func TestEmailMessage_Fields(t *testing.T) {
	msg := EmailMessage{
		To:      "recipient@example.com",
		ToName:  "John Doe",
		Subject: "Test Subject",
		Body:    "Plain text body",
		HTML:    "<p>HTML body</p>",
	}

	if msg.To != "recipient@example.com" {
		t.Errorf("unexpected To: %s", msg.To)
	}
	if msg.ToName != "John Doe" {
		t.Errorf("unexpected ToName: %s", msg.ToName)
	}
	if msg.Subject != "Test Subject" {
		t.Errorf("unexpected Subject: %s", msg.Subject)
	}
	if msg.Body != "Plain text body" {
		t.Errorf("unexpected Body: %s", msg.Body)
	}
	if msg.HTML != "<p>HTML body</p>" {
		t.Errorf("unexpected HTML: %s", msg.HTML)
	}
}

type fakeSendGrid struct {
	sent   *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender_SendBuildsMessage(t *testing.T) {
	client := &fakeSendGrid{status: 202}
	sender := newSendGridSender(client, SendGridConfig{FromEmail: "bookings@example.com", Sandbox: true}, nil)

	err := sender.Send(context.Background(), EmailMessage{
		To:       "customer@example.com",
		Subject:  "Booked",
		Body:     "plain",
		ReplyTo:  "desk@example.com",
		Category: CategoryConfirmation,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := client.sent
	if m == nil {
		t.Fatal("expected a message to be sent")
	}
	if m.ReplyTo == nil || m.ReplyTo.Address != "desk@example.com" {
		t.Errorf("unexpected reply-to: %+v", m.ReplyTo)
	}
	if len(m.Categories) != 1 || m.Categories[0] != CategoryConfirmation {
		t.Errorf("unexpected categories: %v", m.Categories)
	}
	if m.MailSettings == nil || m.MailSettings.SandboxMode == nil || !*m.MailSettings.SandboxMode.Enable {
		t.Errorf("expected sandbox mode enabled")
	}
	if len(m.Content) != 2 || m.Content[1].Value != "plain" {
		t.Errorf("expected html part to fall back to the text body, got %+v", m.Content)
	}
}

func TestSendGridSender_SendRejected(t *testing.T) {
	sender := newSendGridSender(&fakeSendGrid{status: 400}, SendGridConfig{FromEmail: "bookings@example.com"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "x@example.com", Subject: "s", Body: "b"}); err == nil {
		t.Error("expected error on 4xx response")
	}
	if err := newSendGridSender(&fakeSendGrid{err: errors.New("dial")}, SendGridConfig{}, nil).
		Send(context.Background(), EmailMessage{To: "x@example.com"}); err == nil {
		t.Error("expected transport error")
	}
}
