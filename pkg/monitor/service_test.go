package monitor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"coolmon/pkg/alarms"
	"coolmon/pkg/config"
	"coolmon/pkg/database"
	"coolmon/pkg/models"
	"coolmon/pkg/redfish"
	"coolmon/pkg/settings"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func floatPtr(v float64) *float64 { return &v }

type fakeClient struct {
	manager    *redfish.ManagerInfo
	managerErr error
	calls      int
}

func (client *fakeClient) TestConnection(ctx context.Context) bool { return client.managerErr == nil }

func (client *fakeClient) GetManagerInfo(ctx context.Context) (*redfish.ManagerInfo, error) {
	client.calls++
	return client.manager, client.managerErr
}

func (client *fakeClient) GetCDUStatus(ctx context.Context) (*redfish.CDUStatus, error) {
	return nil, redfish.ErrNotAvailable
}

func (client *fakeClient) GetFanStatus(ctx context.Context) ([]redfish.FanStatus, error) {
	return nil, redfish.ErrNotAvailable
}

func (client *fakeClient) GetPumpStatus(ctx context.Context) ([]redfish.PumpStatus, error) {
	return nil, redfish.ErrNotAvailable
}

func setupService(t *testing.T, client *fakeClient) (sqlmock.Sqlmock, *Service) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cfg := &config.Config{
		RedfishUsername:     "admin",
		RedfishPassword:     "admin",
		PollIntervalSeconds: 30,
	}
	settingsService := settings.NewService(db, cfg)
	alertRepo := database.NewAlertRepository(db)
	factory := func(ip, username, password string) DeviceClient { return client }

	return mock, NewService(db, settingsService, alertRepo, nil, factory)
}

func settingsRow(enabled bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "redfish_username", "redfish_password",
		"pump_flow_critical_threshold", "monitoring_enabled", "polling_interval_seconds",
	}).AddRow(int64(1), "admin", "admin", 10.0, enabled, 30)
}

func TestPollSkipsWhenMonitoringDisabled(t *testing.T) {
	client := &fakeClient{}
	mock, service := setupService(t, client)

	mock.ExpectQuery(`SELECT .* FROM "system_settings"`).
		WillReturnRows(settingsRow(false))

	err := service.PollExchanger(context.Background(), 7, "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, client.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPollUnreachableDeviceReturnsError(t *testing.T) {
	client := &fakeClient{managerErr: redfish.ErrNotAvailable}
	mock, service := setupService(t, client)

	// Monitoring toggle, then credentials; nothing touches the tables
	// once the device turns out to be unreachable.
	mock.ExpectQuery(`SELECT .* FROM "system_settings"`).
		WillReturnRows(settingsRow(true))
	mock.ExpectQuery(`SELECT .* FROM "system_settings"`).
		WillReturnRows(settingsRow(true))

	err := service.PollExchanger(context.Background(), 7, "10.0.0.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, redfish.ErrNotAvailable)
	assert.Equal(t, 1, client.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeUrgentAlarms(t *testing.T) {
	facts := []alarms.Fact{
		{
			Type:      models.AlertTypeLowFlow,
			DedupKey:  "1",
			PumpID:    "1",
			PumpName:  "Pump 1",
			FlowRate:  floatPtr(5.2),
			Threshold: floatPtr(10.0),
		},
		{Type: models.AlertTypeFan, DedupKey: "Fan1Fault"},
	}

	encoded := encodeUrgentAlarms(facts)
	raw, ok := encoded.(json.RawMessage)
	require.True(t, ok)

	var urgent []UrgentAlarm
	require.NoError(t, json.Unmarshal(raw, &urgent))
	require.Len(t, urgent, 1)
	assert.Equal(t, models.AlertTypeLowFlow, urgent[0].Type)
	assert.Equal(t, "Pump 1", urgent[0].PumpName)
	assert.Equal(t, 5.2, urgent[0].FlowRate)
	assert.Equal(t, 10.0, urgent[0].Threshold)
}

func TestEncodeUrgentAlarmsClearsWhenNoneActive(t *testing.T) {
	facts := []alarms.Fact{
		{Type: models.AlertTypeFan, DedupKey: "Fan1Fault"},
	}
	assert.Nil(t, encodeUrgentAlarms(facts))
	assert.Nil(t, encodeUrgentAlarms(nil))
}

func TestSnapshotUpdates(t *testing.T) {
	manager := &redfish.ManagerInfo{
		ManagerType:     "RackManager",
		Model:           "CDU-1",
		FirmwareVersion: "2.1.0",
		StatusState:     "Enabled",
		StatusHealth:    "OK",
		Hostname:        "rscm-01",
	}
	cdu := &redfish.CDUStatus{
		ChassisStatus: redfish.ChassisStatus{State: "Enabled", Health: "OK"},
		FanAlarms:     &redfish.FlagAlarms{Alarms: map[string]bool{"Fan1Fault": true}},
	}
	pumps := []redfish.PumpStatus{{ID: "1", Name: "Pump 1", FlowLiquid: floatPtr(14.0)}}

	updates := snapshotUpdates(manager, cdu, nil, pumps, nil)

	assert.Equal(t, "RackManager", updates["manager_type"])
	assert.Equal(t, "rscm-01", updates["hostname"])
	assert.NotNil(t, updates["cdu_chassis_status"])
	assert.NotNil(t, updates["cdu_alarms"])
	assert.NotNil(t, updates["pump_status"])
	// A clean poll over fetched pumps clears the urgent snapshot.
	assert.Nil(t, updates["urgent_alarms"])
	// No fans fetched, so the stale fan blob is left untouched.
	_, hasFans := updates["fan_status"]
	assert.False(t, hasFans)
}

func TestBuildReading(t *testing.T) {
	exchanger := &models.HeatExchanger{ID: 7}
	manager := &redfish.ManagerInfo{StatusState: "Enabled"}
	cdu := &redfish.CDUStatus{
		ControllerStatus: redfish.ControllerStatus{
			AmbientTemperature: floatPtr(24.5),
			AmbientHumidity:    floatPtr(41.0),
		},
	}

	reading := buildReading(exchanger, manager, cdu, nil, nil)

	assert.Equal(t, int64(7), reading.HeatExchangerID)
	assert.Equal(t, "Enabled", reading.Status)
	assert.Equal(t, 24.5, reading.Temperature)
	require.NotNil(t, reading.AmbientHumidity)
	assert.Equal(t, 41.0, *reading.AmbientHumidity)
	assert.WithinDuration(t, time.Now().UTC(), reading.Timestamp, time.Second)
	assert.NotEmpty(t, reading.RawData)
}

func TestBuildReadingDefaultsStatus(t *testing.T) {
	reading := buildReading(&models.HeatExchanger{ID: 7}, &redfish.ManagerInfo{}, &redfish.CDUStatus{}, nil, nil)
	assert.Equal(t, "normal", reading.Status)
	assert.Zero(t, reading.Temperature)
}

func TestListActive(t *testing.T) {
	client := &fakeClient{}
	mock, service := setupService(t, client)

	mock.ExpectQuery(`SELECT .* FROM "heat_exchangers" WHERE is_active`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "rscm_ip", "is_active"}).
			AddRow(int64(1), "HX-01", "10.0.0.1", true))

	active, err := service.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "10.0.0.1", active[0].RscmIP)
	require.NoError(t, mock.ExpectationsWereMet())
}
