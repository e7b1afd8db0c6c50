package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coolmon/pkg/models"
)

// TeamsSink posts a MessageCard to a Microsoft Teams incoming webhook.
type TeamsSink struct {
	http *http.Client
}

func NewTeamsSink() *TeamsSink {
	return &TeamsSink{http: &http.Client{Timeout: 10 * time.Second}}
}

func (sink *TeamsSink) Name() string { return "teams" }

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type teamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	Facts            []teamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
	Text             string      `json:"text,omitempty"`
}

type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections"`
}

// Send posts the alert card. Disabled or unconfigured webhook is a
// logged no-op, not an error.
func (sink *TeamsSink) Send(ctx context.Context, cfg *models.SystemSettings, exchangerName string, alert models.Alert) error {
	if !cfg.TeamsEnabled || cfg.TeamsWebhookURL == "" {
		slog.Info("Urgent alarm (Teams disabled)", "component", "Notifier",
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

	card := teamsCard{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "FF0000",
		Summary:    fmt.Sprintf("URGENT: Low Flow Rate Alert - %s", exchangerName),
		Sections: []teamsSection{
			{
				ActivityTitle:    "URGENT ALARM - IMMEDIATE ATTENTION REQUIRED",
				ActivitySubtitle: time.Now().UTC().Format("2006-01-02 15:04:05 UTC"),
				Facts: []teamsFact{
					{Name: "Heat Exchanger:", Value: exchangerName},
					{Name: "Pump ID:", Value: alert.PumpName},
					{Name: "Current Flow Rate:", Value: fmt.Sprintf("%g L/min", flow)},
					{Name: "Critical Threshold:", Value: fmt.Sprintf("%g L/min", threshold)},
					{Name: "Status:", Value: "**CRITICALLY LOW**"},
				},
				Markdown: true,
			},
			{
				Text: "**Action Required:** Please investigate immediately to prevent equipment damage.",
			},
		},
	}

	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to marshal Teams card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TeamsWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sink.http.Do(req)
	if err != nil {
		return fmt.Errorf("Teams webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Teams webhook returned status %d", resp.StatusCode)
	}

	slog.Info("Urgent alarm Teams message sent", "component", "Notifier",
		"exchanger", exchangerName, "pump", alert.PumpName)
	return nil
}
