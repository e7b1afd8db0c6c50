package redfish

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient points a client at a local httptest server with fast retries.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("127.0.0.1", "admin", "admin", Options{
		Retries: 3,
		Backoff: time.Millisecond,
		Timeout: 2 * time.Second,
	})
	client.BaseURL = server.URL
	return client
}

func TestGetManagerInfo(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redfish/v1/Managers/RackManager", r.URL.Path)

		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", username)
		assert.Equal(t, "admin", password)

		w.Write([]byte(`{
			"ManagerType": "RackManager",
			"Model": "CDU-1",
			"FirmwareVersion": "2.1.0",
			"Status": {"State": "Enabled", "Health": "OK"},
			"Oem": {"Microsoft": {
				"HostName": "rscm-01",
				"UniqueId": "ABC123",
				"TimeSinceLastBoot": "10:04:00"
			}}
		}`))
	}))

	info, err := client.GetManagerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RackManager", info.ManagerType)
	assert.Equal(t, "CDU-1", info.Model)
	assert.Equal(t, "2.1.0", info.FirmwareVersion)
	assert.Equal(t, "Enabled", info.StatusState)
	assert.Equal(t, "OK", info.StatusHealth)
	assert.Equal(t, "rscm-01", info.Hostname)
	assert.Equal(t, "ABC123", info.UniqueID)
	assert.Equal(t, "10:04:00", info.TimeSinceBoot)
}

func TestGetCDUStatus(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redfish/v1/Chassis/CDU", r.URL.Path)
		w.Write([]byte(`{
			"Status": {"State": "Enabled", "Health": "Warning"},
			"Oem": {"Microsoft": {
				"ControllerStatus": [{"AmbientTemperature": 24.5, "AmbientHumidity": 41.0}],
				"FanAlarms": {"Alarms": {"Fan1Fault": true}},
				"LeakAlarms": {"Alarms": ["LeakSensor1"]}
			}}
		}`))
	}))

	status, err := client.GetCDUStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Enabled", status.ChassisStatus.State)
	assert.Equal(t, "Warning", status.ChassisStatus.Health)
	require.NotNil(t, status.ControllerStatus.AmbientTemperature)
	assert.Equal(t, 24.5, *status.ControllerStatus.AmbientTemperature)
	require.NotNil(t, status.FanAlarms)
	assert.True(t, status.FanAlarms.Alarms["Fan1Fault"])
	require.NotNil(t, status.LeakAlarms)
	assert.Equal(t, []string{"LeakSensor1"}, status.LeakAlarms.Alarms)
	assert.Nil(t, status.PumpAlarms)
}

func TestRetryExhaustionReturnsNotAvailable(t *testing.T) {
	var requests atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetManagerInfo(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAvailable)
	assert.Equal(t, int32(3), requests.Load())
}

func TestRetryRecoversOnSecondAttempt(t *testing.T) {
	var requests atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ManagerType": "RackManager", "Status": {}, "Oem": {"Microsoft": {}}}`))
	}))

	info, err := client.GetManagerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RackManager", info.ManagerType)
	assert.Equal(t, int32(2), requests.Load())
}

func TestGetPumpStatusSkipsFailedMember(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/redfish/v1/ThermalEquipment/CDUs/1/Pumps":
			w.Write([]byte(`{"Members": [
				{"@odata.id": "/redfish/v1/ThermalEquipment/CDUs/1/Pumps/1"},
				{"@odata.id": "/redfish/v1/ThermalEquipment/CDUs/1/Pumps/2"}
			]}`))
		case "/redfish/v1/ThermalEquipment/CDUs/1/Pumps/1/Oem/Microsoft/DeviceStatus":
			w.Write([]byte(`{"PumpStatus": "Running", "FlowLiquid": 14.2, "Speed": 80}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	pumps, err := client.GetPumpStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, pumps, 1)
	assert.Equal(t, "1", pumps[0].ID)
	assert.Equal(t, "Pump 1", pumps[0].Name)
	assert.Equal(t, "Running", pumps[0].Status)
	require.NotNil(t, pumps[0].FlowLiquid)
	assert.Equal(t, 14.2, *pumps[0].FlowLiquid)
}

func TestGetFanStatus(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/redfish/v1/Chassis/CDU/ThermalSubsystem/Fans":
			w.Write([]byte(`{"Members": [
				{"@odata.id": "/redfish/v1/Chassis/CDU/ThermalSubsystem/Fans/Fan1"}
			]}`))
		case "/redfish/v1/Chassis/CDU/ThermalSubsystem/Fans/Fan1":
			w.Write([]byte(`{"Name": "Fan 1", "Status": {"State": "Enabled", "Health": "OK"}, "SpeedPercent": {"Reading": 62.5}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	fans, err := client.GetFanStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, fans, 1)
	assert.Equal(t, "Fan1", fans[0].ID)
	assert.Equal(t, "Fan 1", fans[0].Name)
	assert.Equal(t, "OK", fans[0].Health)
	require.NotNil(t, fans[0].SpeedPercent)
	assert.Equal(t, 62.5, *fans[0].SpeedPercent)
}

func TestTestConnection(t *testing.T) {
	okClient := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/redfish/v1", r.URL.Path)
		w.Write([]byte(`{"RedfishVersion": "1.6.0"}`))
	}))
	assert.True(t, okClient.TestConnection(context.Background()))

	downClient := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	assert.False(t, downClient.TestConnection(context.Background()))
}

func TestLastPathSegment(t *testing.T) {
	assert.Equal(t, "2", lastPathSegment("/redfish/v1/ThermalEquipment/CDUs/1/Pumps/2"))
	assert.Equal(t, "Fan1", lastPathSegment("/redfish/v1/Chassis/CDU/ThermalSubsystem/Fans/Fan1/"))
}
