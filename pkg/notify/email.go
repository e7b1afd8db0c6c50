package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"coolmon/pkg/models"
)

// EmailSink sends urgent-alarm mail through the SMTP settings row.
type EmailSink struct{}

func NewEmailSink() *EmailSink { return &EmailSink{} }

func (sink *EmailSink) Name() string { return "email" }

// Send mails the alert to the configured recipients. Disabled or
// unconfigured SMTP is a logged no-op, not an error.
func (sink *EmailSink) Send(ctx context.Context, cfg *models.SystemSettings, exchangerName string, alert models.Alert) error {
	if !cfg.SMTPEnabled {
		slog.Info("Urgent alarm (email disabled)", "component", "Notifier",
			"exchanger", exchangerName, "pump", alert.PumpName)
		return nil
	}

	recipients := cfg.Recipients()
	if len(recipients) == 0 {
		slog.Info("Urgent alarm (no email recipients configured)", "component", "Notifier",
			"exchanger", exchangerName, "pump", alert.PumpName)
		return nil
	}

	flow := 0.0
	threshold := cfg.PumpFlowCriticalThreshold
	if alert.FlowRate != nil {
		flow = *alert.FlowRate
	}
	if alert.Threshold != nil {
		threshold = *alert.Threshold
	}

	subject := fmt.Sprintf("URGENT: Low Flow Rate Alert - %s", exchangerName)
	body := fmt.Sprintf(`URGENT ALARM - IMMEDIATE ATTENTION REQUIRED

Heat Exchanger: %s
Pump ID: %s
Current Flow Rate: %g L/min
Critical Threshold: %g L/min

Time: %s

This is an automated alert from the Cooling Monitor system.
Please investigate immediately to prevent equipment damage.
`, exchangerName, alert.PumpName, flow, threshold, time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

	message := strings.Join([]string{
		"From: " + cfg.SMTPFromEmail,
		"To: " + strings.Join(recipients, ", "),
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if cfg.SMTPPassword != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPServer)
	}

	addr := fmt.Sprintf("%s:%d", cfg.SMTPServer, cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, cfg.SMTPFromEmail, recipients, []byte(message)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}

	slog.Info("Urgent alarm email sent", "component", "Notifier",
		"exchanger", exchangerName, "pump", alert.PumpName, "recipients", len(recipients))
	return nil
}
