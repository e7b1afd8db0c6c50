// Package monitor drives one device's poll pipeline: fetch the status
// snapshot, extract alarm facts, record alerts, notify, and persist the
// reading plus the exchanger's snapshot in one commit scope. All
// failures stay local to the device being polled.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"coolmon/pkg/alarms"
	"coolmon/pkg/database"
	"coolmon/pkg/models"
	"coolmon/pkg/redfish"
	"coolmon/pkg/settings"

	"gorm.io/gorm"
)

// DeviceClient is the read contract against one device's management API.
type DeviceClient interface {
	TestConnection(ctx context.Context) bool
	GetManagerInfo(ctx context.Context) (*redfish.ManagerInfo, error)
	GetCDUStatus(ctx context.Context) (*redfish.CDUStatus, error)
	GetFanStatus(ctx context.Context) ([]redfish.FanStatus, error)
	GetPumpStatus(ctx context.Context) ([]redfish.PumpStatus, error)
}

// ClientFactory builds a client for one device address.
type ClientFactory func(ip, username, password string) DeviceClient

// Notifier fans newly created alerts out to subscribers and sinks.
type Notifier interface {
	NotifyNewAlerts(ctx context.Context, exchanger *models.HeatExchanger, created []models.Alert)
}

// UrgentAlarm is the dashboard-facing low-flow snapshot persisted on the
// exchanger's urgent_alarms column.
type UrgentAlarm struct {
	Type      string    `json:"type"`
	PumpID    string    `json:"pump_id"`
	PumpName  string    `json:"pump_name"`
	FlowRate  float64   `json:"flow_rate"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Service owns the poll pipeline for all exchangers.
type Service struct {
	db        *gorm.DB
	exchRepo  database.Repository[models.HeatExchanger]
	alertRepo *database.AlertRepository
	settings  *settings.Service
	notifier  Notifier
	newClient ClientFactory
}

func NewService(
	db *gorm.DB,
	settingsService *settings.Service,
	alertRepo *database.AlertRepository,
	notifier Notifier,
	newClient ClientFactory,
) *Service {
	return &Service{
		db:        db,
		exchRepo:  database.NewGormRepository[models.HeatExchanger](db),
		alertRepo: alertRepo,
		settings:  settingsService,
		notifier:  notifier,
		newClient: newClient,
	}
}

// ListActive returns the exchangers eligible for polling.
func (service *Service) ListActive(ctx context.Context) ([]*models.HeatExchanger, error) {
	return service.exchRepo.ListByField(ctx, "is_active", true)
}

// TestConnection checks reachability of a device address with the
// current credentials.
func (service *Service) TestConnection(ctx context.Context, ip string) bool {
	username, password := service.settings.DeviceCredentials(ctx)
	return service.newClient(ip, username, password).TestConnection(ctx)
}

// PollExchanger runs one device's full poll cycle. The returned error is
// informational; callers log it and move on, it never aborts a cycle.
func (service *Service) PollExchanger(ctx context.Context, exchangerID int64, ip string) error {
	if !service.settings.MonitoringEnabled(ctx) {
		return nil
	}

	username, password := service.settings.DeviceCredentials(ctx)
	client := service.newClient(ip, username, password)

	manager, err := client.GetManagerInfo(ctx)
	if err != nil {
		slog.Warn("No manager info retrieved, skipping poll", "component", "Monitor",
			"exchanger_id", exchangerID, "error", err)
		return fmt.Errorf("exchanger %d unreachable: %w", exchangerID, err)
	}

	// Sub-resource failures degrade to "no data" for that resource.
	cdu, err := client.GetCDUStatus(ctx)
	if err != nil {
		slog.Warn("CDU status unavailable", "component", "Monitor", "exchanger_id", exchangerID, "error", err)
	}
	fans, err := client.GetFanStatus(ctx)
	if err != nil {
		slog.Warn("Fan status unavailable", "component", "Monitor", "exchanger_id", exchangerID, "error", err)
	}
	pumps, err := client.GetPumpStatus(ctx)
	if err != nil {
		slog.Warn("Pump status unavailable", "component", "Monitor", "exchanger_id", exchangerID, "error", err)
	}

	threshold := service.settings.LowFlowThreshold(ctx)
	facts := alarms.Extract(cdu, pumps, threshold)

	var exchanger models.HeatExchanger
	var created []models.Alert

	err = service.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&exchanger, exchangerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				slog.Warn("Exchanger vanished during poll", "component", "Monitor", "exchanger_id", exchangerID)
				return nil
			}
			return err
		}

		updates := snapshotUpdates(manager, cdu, fans, pumps, facts)

		created = service.alertRepo.WithTx(tx).RecordAlarms(ctx, exchangerID, facts)

		if cdu != nil {
			reading := buildReading(&exchanger, manager, cdu, fans, pumps)
			if err := tx.Create(reading).Error; err != nil {
				return fmt.Errorf("failed to persist reading: %w", err)
			}
		}

		return tx.Model(&exchanger).Updates(updates).Error
	})
	if err != nil {
		slog.Error("Poll commit failed", "component", "Monitor", "exchanger_id", exchangerID, "error", err)
		return err
	}

	if len(created) > 0 && service.notifier != nil {
		service.notifier.NotifyNewAlerts(ctx, &exchanger, created)
	}

	slog.Info("Polled exchanger", "component", "Monitor",
		"exchanger_id", exchangerID, "alarm_facts", len(facts), "new_alerts", len(created))
	return nil
}

// snapshotUpdates assembles the exchanger writeback for one poll.
func snapshotUpdates(
	manager *redfish.ManagerInfo,
	cdu *redfish.CDUStatus,
	fans []redfish.FanStatus,
	pumps []redfish.PumpStatus,
	facts []alarms.Fact,
) map[string]any {
	updates := map[string]any{
		"manager_type":     manager.ManagerType,
		"model":            manager.Model,
		"firmware_version": manager.FirmwareVersion,
		"status_state":     manager.StatusState,
		"status_health":    manager.StatusHealth,
		"hostname":         manager.Hostname,
		"unique_id":        manager.UniqueID,
		"time_since_boot":  manager.TimeSinceBoot,
		"updated_at":       time.Now().UTC(),
	}

	if cdu != nil {
		updates["cdu_chassis_status"] = redfish.Encode(cdu.ChassisStatus)
		updates["cdu_controller_status"] = redfish.Encode(cdu.ControllerStatus)
		updates["cdu_alarms"] = redfish.Encode(redfish.AlarmSnapshot{
			FanAlarms:    cdu.FanAlarms,
			PumpAlarms:   cdu.PumpAlarms,
			SensorAlarms: cdu.SensorAlarms,
			LeakAlarms:   cdu.LeakAlarms,
		})
	}
	if len(fans) > 0 {
		updates["fan_status"] = redfish.Encode(fans)
	}
	if len(pumps) > 0 {
		updates["pump_status"] = redfish.Encode(pumps)
		updates["urgent_alarms"] = encodeUrgentAlarms(facts)
	}

	return updates
}

// encodeUrgentAlarms keeps the dashboard snapshot in sync: set while
// low-flow conditions exist, cleared as soon as a clean poll sees none.
func encodeUrgentAlarms(facts []alarms.Fact) any {
	var urgent []UrgentAlarm
	now := time.Now().UTC()
	for _, fact := range facts {
		if fact.Type != models.AlertTypeLowFlow {
			continue
		}
		alarm := UrgentAlarm{
			Type:      fact.Type,
			PumpID:    fact.PumpID,
			PumpName:  fact.PumpName,
			Timestamp: now,
		}
		if fact.FlowRate != nil {
			alarm.FlowRate = *fact.FlowRate
		}
		if fact.Threshold != nil {
			alarm.Threshold = *fact.Threshold
		}
		urgent = append(urgent, alarm)
	}
	if len(urgent) == 0 {
		return nil
	}
	return redfish.Encode(urgent)
}

func buildReading(
	exchanger *models.HeatExchanger,
	manager *redfish.ManagerInfo,
	cdu *redfish.CDUStatus,
	fans []redfish.FanStatus,
	pumps []redfish.PumpStatus,
) *models.Reading {
	status := manager.StatusState
	if status == "" {
		status = "normal"
	}

	reading := &models.Reading{
		HeatExchangerID:    exchanger.ID,
		Timestamp:          time.Now().UTC(),
		Status:             status,
		AmbientTemperature: cdu.ControllerStatus.AmbientTemperature,
		AmbientHumidity:    cdu.ControllerStatus.AmbientHumidity,
		Humidity:           cdu.ControllerStatus.AmbientHumidity,
		RawData: redfish.Encode(redfish.CombinedPayload{
			CDUStatus:  cdu,
			FanStatus:  fans,
			PumpStatus: pumps,
		}),
	}
	if cdu.ControllerStatus.AmbientTemperature != nil {
		reading.Temperature = *cdu.ControllerStatus.AmbientTemperature
	}
	return reading
}
