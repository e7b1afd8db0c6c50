package redfish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrNotAvailable is returned once every retry attempt for a request has
// been exhausted. Callers degrade to "no data" instead of failing a cycle.
var ErrNotAvailable = errors.New("device not available")

// Options configures a Client. Zero values fall back to the defaults
// matching the device firmware's expectations.
type Options struct {
	Port      int
	VerifySSL bool
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
}

// Client issues authenticated read requests against one device's
// management endpoint. It holds no persisted state; every method is pure
// network I/O.
type Client struct {
	// BaseURL is exported so tests can point the client at a local server.
	BaseURL string

	username string
	password string
	http     *http.Client
	retries  int
	backoff  time.Duration
}

// NewClient creates a client for the device at the given address.
func NewClient(ip, username, password string, opts Options) *Client {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries == 0 {
		opts.Retries = 3
	}
	if opts.Backoff == 0 {
		opts.Backoff = 500 * time.Millisecond
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !opts.VerifySSL},
	}

	return &Client{
		BaseURL:  fmt.Sprintf("https://%s:%d", ip, opts.Port),
		username: username,
		password: password,
		http:     &http.Client{Timeout: opts.Timeout, Transport: transport},
		retries:  opts.Retries,
		backoff:  opts.Backoff,
	}
}

// getJSON performs a GET with retry and exponential backoff, decoding the
// response body into out. Transport errors and non-2xx statuses both count
// as failed attempts.
func (client *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	var lastErr error

	for attempt := 0; attempt < client.retries; attempt++ {
		if attempt > 0 {
			wait := client.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			slog.Debug("Retrying request", "component", "RedfishClient", "endpoint", endpoint, "attempt", attempt)
		}

		lastErr = client.doGet(ctx, endpoint, out)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
	}

	slog.Warn("Request failed after retries", "component", "RedfishClient", "endpoint", endpoint, "retries", client.retries, "error", lastErr)
	return fmt.Errorf("%w: GET %s: %v", ErrNotAvailable, endpoint, lastErr)
}

func (client *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.BaseURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(client.username, client.password)

	resp, err := client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// TestConnection checks whether the service root responds.
func (client *Client) TestConnection(ctx context.Context) bool {
	var root map[string]any
	return client.getJSON(ctx, "/redfish/v1", &root) == nil
}

// GetManagerInfo fetches the rack manager document.
func (client *Client) GetManagerInfo(ctx context.Context) (*ManagerInfo, error) {
	var doc managerDoc
	if err := client.getJSON(ctx, "/redfish/v1/Managers/RackManager", &doc); err != nil {
		return nil, err
	}

	return &ManagerInfo{
		ManagerType:     doc.ManagerType,
		Model:           doc.Model,
		FirmwareVersion: doc.FirmwareVersion,
		StatusState:     doc.Status.State,
		StatusHealth:    doc.Status.Health,
		Hostname:        doc.Oem.Microsoft.HostName,
		UniqueID:        doc.Oem.Microsoft.UniqueID,
		TimeSinceBoot:   doc.Oem.Microsoft.TimeSinceLastBoot,
	}, nil
}

// GetCDUStatus fetches the CDU chassis document with controller status
// and the four alarm sub-payloads.
func (client *Client) GetCDUStatus(ctx context.Context) (*CDUStatus, error) {
	var doc cduDoc
	if err := client.getJSON(ctx, "/redfish/v1/Chassis/CDU", &doc); err != nil {
		return nil, err
	}

	status := &CDUStatus{
		ChassisStatus: ChassisStatus{State: doc.Status.State, Health: doc.Status.Health},
		FanAlarms:     doc.Oem.Microsoft.FanAlarms,
		PumpAlarms:    doc.Oem.Microsoft.PumpAlarms,
		SensorAlarms:  doc.Oem.Microsoft.SensorAlarms,
		LeakAlarms:    doc.Oem.Microsoft.LeakAlarms,
	}
	if len(doc.Oem.Microsoft.ControllerStatus) > 0 {
		status.ControllerStatus = doc.Oem.Microsoft.ControllerStatus[0]
	}
	return status, nil
}

// GetFanStatus fetches every fan member concurrently. A member that fails
// is absent from the result, not an error for the whole array.
func (client *Client) GetFanStatus(ctx context.Context) ([]FanStatus, error) {
	var collection collectionDoc
	if err := client.getJSON(ctx, "/redfish/v1/Chassis/CDU/ThermalSubsystem/Fans", &collection); err != nil {
		return nil, err
	}

	results := make([]*FanStatus, len(collection.Members))
	var wg sync.WaitGroup
	for i, member := range collection.Members {
		wg.Add(1)
		go func(i int, ref memberRef) {
			defer wg.Done()
			id := lastPathSegment(ref.ODataID)

			var doc fanDoc
			if err := client.getJSON(ctx, ref.ODataID, &doc); err != nil {
				slog.Warn("Fan member unavailable", "component", "RedfishClient", "fan_id", id, "error", err)
				return
			}

			name := doc.Name
			if name == "" {
				name = id
			}
			results[i] = &FanStatus{
				ID:           id,
				Name:         name,
				State:        doc.Status.State,
				Health:       doc.Status.Health,
				SpeedPercent: doc.SpeedPercent.Reading,
			}
		}(i, member)
	}
	wg.Wait()

	fans := make([]FanStatus, 0, len(results))
	for _, fan := range results {
		if fan != nil {
			fans = append(fans, *fan)
		}
	}
	return fans, nil
}

// GetPumpStatus fetches every pump member's device status concurrently.
func (client *Client) GetPumpStatus(ctx context.Context) ([]PumpStatus, error) {
	var collection collectionDoc
	if err := client.getJSON(ctx, "/redfish/v1/ThermalEquipment/CDUs/1/Pumps", &collection); err != nil {
		return nil, err
	}

	results := make([]*PumpStatus, len(collection.Members))
	var wg sync.WaitGroup
	for i, member := range collection.Members {
		wg.Add(1)
		go func(i int, ref memberRef) {
			defer wg.Done()
			id := lastPathSegment(ref.ODataID)

			var doc pumpDeviceStatusDoc
			if err := client.getJSON(ctx, ref.ODataID+"/Oem/Microsoft/DeviceStatus", &doc); err != nil {
				slog.Warn("Pump member unavailable", "component", "RedfishClient", "pump_id", id, "error", err)
				return
			}

			results[i] = &PumpStatus{
				ID:             id,
				Name:           "Pump " + id,
				Status:         doc.PumpStatus,
				Speed:          doc.Speed,
				RequestedSpeed: doc.RequestedPumpSpeed,
				FlowLiquid:     doc.FlowLiquid,
				PressureSupply: doc.PressureLiquidSupply,
				PressureReturn: doc.PressureLiquidReturn,
				PressureDiff:   doc.PressureDiffLiquidSupplyReturn,
				ErrorCode:      doc.ErrorCode,
				LiquidPH:       doc.LiquidPHValue,
			}
		}(i, member)
	}
	wg.Wait()

	pumps := make([]PumpStatus, 0, len(results))
	for _, pump := range results {
		if pump != nil {
			pumps = append(pumps, *pump)
		}
	}
	return pumps, nil
}

func lastPathSegment(path string) string {
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	return parts[len(parts)-1]
}
