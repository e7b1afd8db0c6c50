// Package redfish implements the read-only client for the management API
// exposed by heat-exchanger controllers (R-SCM), plus the typed payloads
// the rest of the engine consumes. The typed structs are the decode
// contract for the status blobs persisted on heat_exchangers.
package redfish

import "encoding/json"

// ManagerInfo is the normalized manager document.
type ManagerInfo struct {
	ManagerType     string `json:"manager_type"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	StatusState     string `json:"status_state"`
	StatusHealth    string `json:"status_health"`
	Hostname        string `json:"hostname"`
	UniqueID        string `json:"unique_id"`
	TimeSinceBoot   string `json:"time_since_boot"`
}

// ChassisStatus is the CDU chassis health summary.
type ChassisStatus struct {
	State  string `json:"state"`
	Health string `json:"health"`
}

// ControllerStatus carries the CDU controller readings. Absent fields
// stay nil rather than defaulting to zero.
type ControllerStatus struct {
	AmbientTemperature *float64 `json:"AmbientTemperature,omitempty"`
	AmbientHumidity    *float64 `json:"AmbientHumidity,omitempty"`
	ReturnTemperature  *float64 `json:"ReturnTemperature,omitempty"`
	SupplyTemperature  *float64 `json:"SupplyTemperature,omitempty"`
}

// FlagAlarms is a named-flag alarm map (fan and pump subsystems).
type FlagAlarms struct {
	Alarms map[string]bool `json:"Alarms"`
}

// ListAlarms is a named-entry alarm list (sensor and leak subsystems).
type ListAlarms struct {
	Alarms []string `json:"Alarms"`
}

// CDUStatus is the normalized /Chassis/CDU document.
type CDUStatus struct {
	ChassisStatus    ChassisStatus    `json:"chassis_status"`
	ControllerStatus ControllerStatus `json:"controller_status"`
	FanAlarms        *FlagAlarms      `json:"fan_alarms,omitempty"`
	PumpAlarms       *FlagAlarms      `json:"pump_alarms,omitempty"`
	SensorAlarms     *ListAlarms      `json:"sensor_alarms,omitempty"`
	LeakAlarms       *ListAlarms      `json:"leak_alarms,omitempty"`
}

// FanStatus is one fan member's normalized status.
type FanStatus struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	State        string   `json:"state"`
	Health       string   `json:"health"`
	SpeedPercent *float64 `json:"speed_percent,omitempty"`
}

// PumpStatus is one pump member's normalized device status.
type PumpStatus struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	Speed          *float64 `json:"speed,omitempty"`
	RequestedSpeed *float64 `json:"requested_speed,omitempty"`
	FlowLiquid     *float64 `json:"flow_liquid,omitempty"`
	PressureSupply *float64 `json:"pressure_supply,omitempty"`
	PressureReturn *float64 `json:"pressure_return,omitempty"`
	PressureDiff   *float64 `json:"pressure_diff,omitempty"`
	ErrorCode      *int     `json:"error_code,omitempty"`
	LiquidPH       *float64 `json:"liquid_ph,omitempty"`
}

// AlarmSnapshot groups the four alarm sub-payloads as persisted on the
// exchanger's cdu_alarms column.
type AlarmSnapshot struct {
	FanAlarms    *FlagAlarms `json:"fan_alarms,omitempty"`
	PumpAlarms   *FlagAlarms `json:"pump_alarms,omitempty"`
	SensorAlarms *ListAlarms `json:"sensor_alarms,omitempty"`
	LeakAlarms   *ListAlarms `json:"leak_alarms,omitempty"`
}

// CombinedPayload is the raw_data blob stored with each Reading.
type CombinedPayload struct {
	CDUStatus  *CDUStatus   `json:"cdu_status,omitempty"`
	FanStatus  []FanStatus  `json:"fan_status,omitempty"`
	PumpStatus []PumpStatus `json:"pump_status,omitempty"`
}

// Wire shapes of the raw Redfish documents. Only the fields the engine
// reads are declared; everything else is ignored on decode.

type statusDoc struct {
	State  string `json:"State"`
	Health string `json:"Health"`
}

type managerDoc struct {
	ManagerType     string    `json:"ManagerType"`
	Model           string    `json:"Model"`
	FirmwareVersion string    `json:"FirmwareVersion"`
	Status          statusDoc `json:"Status"`
	Oem             struct {
		Microsoft struct {
			HostName          string `json:"HostName"`
			UniqueID          string `json:"UniqueId"`
			TimeSinceLastBoot string `json:"TimeSinceLastBoot"`
		} `json:"Microsoft"`
	} `json:"Oem"`
}

type cduDoc struct {
	Status statusDoc `json:"Status"`
	Oem    struct {
		Microsoft struct {
			ControllerStatus []ControllerStatus `json:"ControllerStatus"`
			FanAlarms        *FlagAlarms        `json:"FanAlarms"`
			PumpAlarms       *FlagAlarms        `json:"PumpAlarms"`
			SensorAlarms     *ListAlarms        `json:"SensorAlarms"`
			LeakAlarms       *ListAlarms        `json:"LeakAlarms"`
		} `json:"Microsoft"`
	} `json:"Oem"`
}

type memberRef struct {
	ODataID string `json:"@odata.id"`
}

type collectionDoc struct {
	Members []memberRef `json:"Members"`
}

type fanDoc struct {
	Name         string    `json:"Name"`
	Status       statusDoc `json:"Status"`
	SpeedPercent struct {
		Reading *float64 `json:"Reading"`
	} `json:"SpeedPercent"`
}

type pumpDeviceStatusDoc struct {
	PumpStatus                     string   `json:"PumpStatus"`
	Speed                          *float64 `json:"Speed"`
	RequestedPumpSpeed             *float64 `json:"RequestedPumpSpeed"`
	FlowLiquid                     *float64 `json:"FlowLiquid"`
	PressureLiquidSupply           *float64 `json:"PressureLiquidSupply"`
	PressureLiquidReturn           *float64 `json:"PressureLiquidReturn"`
	PressureDiffLiquidSupplyReturn *float64 `json:"PressureDiffLiquidSupplyReturn"`
	ErrorCode                      *int     `json:"ErrorCode"`
	LiquidPHValue                  *float64 `json:"LiquidPHValue"`
}

// Encode marshals a payload for storage in a jsonb column.
func Encode(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
