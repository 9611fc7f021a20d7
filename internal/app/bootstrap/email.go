package bootstrap

import (
	"context"
	"strings"

	appconfig "github.com/wolfman30/cpr-booking-platform/internal/config"
	"github.com/wolfman30/cpr-booking-platform/internal/notify"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

// BuildEmailSender picks the confirmation email transport. EMAIL_PROVIDER
// may be "sendgrid", "ses", "stub" or "auto"; auto prefers SendGrid, then
// SES, then the stub.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))

	sendgrid := func() notify.EmailSender {
		s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  firstNonEmpty(cfg.SendGridFromName, cfg.BusinessName),
			Sandbox:   cfg.SendGridSandbox,
		}, logger)
		if s == nil {
			return nil
		}
		return s
	}
	ses := func() notify.EmailSender {
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return nil
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Warn("email: aws config unavailable", "error", err)
			return nil
		}
		return notify.NewSESSender(newSESClient(awsCfg, cfg.AWSEndpointOverride), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  firstNonEmpty(cfg.SESFromName, cfg.BusinessName),
		}, logger)
	}

	var sender notify.EmailSender
	switch provider {
	case "sendgrid":
		sender = sendgrid()
	case "ses":
		sender = ses()
	case "stub", "none":
	default:
		if sender = sendgrid(); sender == nil {
			sender = ses()
		}
	}
	if sender == nil {
		logger.Info("email: using stub sender", "provider", provider)
		return notify.NewStubEmailSender(logger)
	}
	return sender
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
