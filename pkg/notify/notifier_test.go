package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"coolmon/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu     sync.Mutex
	events []any
}

func (hub *recordingHub) Broadcast(event any) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.events = append(hub.events, event)
}

type recordingSink struct {
	mu     sync.Mutex
	name   string
	err    error
	alerts []models.Alert
}

func (sink *recordingSink) Name() string { return sink.name }

func (sink *recordingSink) Send(ctx context.Context, cfg *models.SystemSettings, exchangerName string, alert models.Alert) error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.alerts = append(sink.alerts, alert)
	return sink.err
}

func floatPtr(v float64) *float64 { return &v }

func criticalAlert(id int64) models.Alert {
	return models.Alert{
		ID:              id,
		HeatExchangerID: 7,
		Type:            models.AlertTypeLowFlow,
		Severity:        models.SeverityCritical,
		Title:           "Critical Low Flow - Pump 1",
		PumpName:        "Pump 1",
		FlowRate:        floatPtr(5.2),
		Threshold:       floatPtr(10.0),
	}
}

func TestNotifyNewAlertsBroadcastsAndSends(t *testing.T) {
	hub := &recordingHub{}
	sink := &recordingSink{name: "test"}
	notifier := NewNotifier(hub, nil, sink)

	exchanger := &models.HeatExchanger{ID: 7, Name: "HX-01"}
	notifier.NotifyNewAlerts(context.Background(), exchanger, []models.Alert{criticalAlert(42)})

	require.Len(t, hub.events, 1)
	event, ok := hub.events[0].(AlertEvent)
	require.True(t, ok)
	assert.Equal(t, "new_alert", event.Type)
	assert.Equal(t, int64(42), event.AlertID)
	assert.Equal(t, int64(7), event.HeatExchangerID)
	assert.Equal(t, "HX-01", event.HeatExchangerName)
	assert.Equal(t, models.SeverityCritical, event.Severity)
	assert.Equal(t, "Pump 1", event.PumpName)
	require.NotNil(t, event.FlowRate)
	assert.Equal(t, 5.2, *event.FlowRate)

	require.Len(t, sink.alerts, 1)
	assert.Equal(t, int64(42), sink.alerts[0].ID)
}

func TestNotifyNewAlertsFiltersWarnings(t *testing.T) {
	hub := &recordingHub{}
	sink := &recordingSink{name: "test"}
	notifier := NewNotifier(hub, nil, sink)

	warning := models.Alert{
		ID:       43,
		Type:     models.AlertTypeFan,
		Severity: models.SeverityWarning,
		Title:    "Fan Alarm - Fan1Fault",
	}

	exchanger := &models.HeatExchanger{ID: 7, Name: "HX-01"}
	notifier.NotifyNewAlerts(context.Background(), exchanger, []models.Alert{warning})

	assert.Empty(t, hub.events)
	assert.Empty(t, sink.alerts)
}

func TestNotifyNewAlertsMixedSeverities(t *testing.T) {
	hub := &recordingHub{}
	sink := &recordingSink{name: "test"}
	notifier := NewNotifier(hub, nil, sink)

	warning := models.Alert{ID: 43, Severity: models.SeverityWarning}
	exchanger := &models.HeatExchanger{ID: 7, Name: "HX-01"}
	notifier.NotifyNewAlerts(context.Background(), exchanger, []models.Alert{warning, criticalAlert(42)})

	require.Len(t, hub.events, 1)
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, int64(42), sink.alerts[0].ID)
}

func TestSinkFailureIsIsolated(t *testing.T) {
	hub := &recordingHub{}
	failing := &recordingSink{name: "failing", err: errors.New("smtp down")}
	working := &recordingSink{name: "working"}
	notifier := NewNotifier(hub, nil, failing, working)

	exchanger := &models.HeatExchanger{ID: 7, Name: "HX-01"}
	notifier.NotifyNewAlerts(context.Background(), exchanger, []models.Alert{criticalAlert(42)})

	// The failing sink never blocks the broadcast or its sibling.
	assert.Len(t, hub.events, 1)
	assert.Len(t, failing.alerts, 1)
	assert.Len(t, working.alerts, 1)
}

func TestNotifyNewAlertsNoAlertsIsNoOp(t *testing.T) {
	hub := &recordingHub{}
	sink := &recordingSink{name: "test"}
	notifier := NewNotifier(hub, nil, sink)

	notifier.NotifyNewAlerts(context.Background(), &models.HeatExchanger{ID: 7}, nil)

	assert.Empty(t, hub.events)
	assert.Empty(t, sink.alerts)
}
