// Package notify fans newly created urgent alerts out to the live
// dashboard and the configured external sinks. Every destination is
// independent: a sink failing is logged and never affects the alert,
// its sibling sinks, or the poll cycle that produced it.
package notify

import (
	"context"
	"log/slog"

	"coolmon/pkg/models"
)

// AlertEvent is the structured message pushed to dashboard subscribers.
type AlertEvent struct {
	Type              string   `json:"type"`
	AlertID           int64    `json:"alert_id"`
	HeatExchangerID   int64    `json:"heat_exchanger_id"`
	HeatExchangerName string   `json:"heat_exchanger_name"`
	Severity          string   `json:"severity"`
	Title             string   `json:"title"`
	PumpName          string   `json:"pump_name,omitempty"`
	FlowRate          *float64 `json:"flow_rate,omitempty"`
	Threshold         *float64 `json:"threshold,omitempty"`
}

// Broadcaster pushes an event to all live subscribers.
type Broadcaster interface {
	Broadcast(event any)
}

// Sink delivers an urgent alert to one external destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, cfg *models.SystemSettings, exchangerName string, alert models.Alert) error
}

// SettingsSource provides the notification configuration at send time.
type SettingsSource interface {
	Get(ctx context.Context) (*models.SystemSettings, error)
}

// Notifier is the fan-out point for newly created alerts.
type Notifier struct {
	hub      Broadcaster
	settings SettingsSource
	sinks    []Sink
}

func NewNotifier(hub Broadcaster, settingsSource SettingsSource, sinks ...Sink) *Notifier {
	return &Notifier{hub: hub, settings: settingsSource, sinks: sinks}
}

// NotifyNewAlerts dispatches each critical alert to the hub and to every
// sink. Warning-level subsystem alerts only persist; they do not notify.
func (notifier *Notifier) NotifyNewAlerts(ctx context.Context, exchanger *models.HeatExchanger, created []models.Alert) {
	urgent := make([]models.Alert, 0, len(created))
	for _, alert := range created {
		if alert.Severity == models.SeverityCritical {
			urgent = append(urgent, alert)
		}
	}
	if len(urgent) == 0 {
		return
	}

	cfg := &models.SystemSettings{}
	if notifier.settings != nil {
		loaded, err := notifier.settings.Get(ctx)
		if err != nil {
			slog.Error("Failed to load notification settings", "component", "Notifier", "error", err)
		} else {
			cfg = loaded
		}
	}

	for _, alert := range urgent {
		if notifier.hub != nil {
			notifier.hub.Broadcast(AlertEvent{
				Type:              "new_alert",
				AlertID:           alert.ID,
				HeatExchangerID:   exchanger.ID,
				HeatExchangerName: exchanger.Name,
				Severity:          alert.Severity,
				Title:             alert.Title,
				PumpName:          alert.PumpName,
				FlowRate:          alert.FlowRate,
				Threshold:         alert.Threshold,
			})
		}

		for _, sink := range notifier.sinks {
			if err := sink.Send(ctx, cfg, exchanger.Name, alert); err != nil {
				slog.Error("Notification sink failed", "component", "Notifier",
					"sink", sink.Name(), "alert_id", alert.ID, "error", err)
			}
		}
	}
}
