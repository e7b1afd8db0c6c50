package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Alert types derived from device alarm payloads.
const (
	AlertTypeLowFlow = "LOW_FLOW"
	AlertTypeLeak    = "LEAK"
	AlertTypeFan     = "FAN"
	AlertTypePump    = "PUMP"
	AlertTypeSensor  = "SENSOR"
)

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// HeatExchanger represents the heat_exchangers table.
// Inventory fields are owned by the API surface; the snapshot fields are
// written back by the monitoring engine after each successful poll.
type HeatExchanger struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name" binding:"required"`
	Type      string    `json:"type"`
	RscmIP    string    `gorm:"uniqueIndex;not null" json:"rscm_ip" binding:"required,ip"`
	City      string    `gorm:"not null" json:"city" binding:"required"`
	Building  string    `gorm:"not null" json:"building" binding:"required"`
	Room      string    `gorm:"not null" json:"room" binding:"required"`
	Tile      string    `gorm:"not null" json:"tile" binding:"required"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Manager snapshot from the last successful poll
	ManagerType     string `json:"manager_type"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	StatusState     string `json:"status_state"`
	StatusHealth    string `json:"status_health"`
	Hostname        string `json:"hostname"`
	UniqueID        string `json:"unique_id"`
	TimeSinceBoot   string `json:"time_since_boot"`

	// Structured status blobs; the decode contract lives in pkg/redfish
	CDUChassisStatus    json.RawMessage `gorm:"type:jsonb" json:"cdu_chassis_status,omitempty"`
	CDUControllerStatus json.RawMessage `gorm:"type:jsonb" json:"cdu_controller_status,omitempty"`
	CDUAlarms           json.RawMessage `gorm:"type:jsonb" json:"cdu_alarms,omitempty"`
	FanStatus           json.RawMessage `gorm:"type:jsonb" json:"fan_status,omitempty"`
	PumpStatus          json.RawMessage `gorm:"type:jsonb" json:"pump_status,omitempty"`
	UrgentAlarms        json.RawMessage `gorm:"type:jsonb" json:"urgent_alarms,omitempty"`
}

// Reading is an immutable time-series record, one per successful poll.
type Reading struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	HeatExchangerID    int64           `gorm:"not null;index" json:"heat_exchanger_id"`
	Timestamp          time.Time       `gorm:"not null;index" json:"timestamp"`
	Temperature        float64         `gorm:"not null" json:"temperature"`
	Humidity           *float64        `json:"humidity"`
	AmbientTemperature *float64        `json:"ambient_temperature"`
	AmbientHumidity    *float64        `json:"ambient_humidity"`
	Status             string          `gorm:"default:'normal'" json:"status"`
	RawData            json.RawMessage `gorm:"type:jsonb" json:"raw_data,omitempty"`
}

// Alert is a lifecycle-tracked record derived from alarm observations.
// At most one unresolved alert may exist per (exchanger, type, dedup key);
// the partial unique index below is what makes concurrent creation safe.
type Alert struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	HeatExchangerID int64  `gorm:"not null;index;uniqueIndex:idx_open_alert,where:resolved = false" json:"heat_exchanger_id"`
	Type            string `gorm:"not null;uniqueIndex:idx_open_alert,where:resolved = false" json:"type"`
	DedupKey        string `gorm:"not null;uniqueIndex:idx_open_alert,where:resolved = false" json:"dedup_key"`

	Severity    string `gorm:"not null;default:'critical'" json:"severity"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	// Pump specific (LOW_FLOW alerts)
	PumpID    string   `json:"pump_id,omitempty"`
	PumpName  string   `json:"pump_name,omitempty"`
	FlowRate  *float64 `json:"flow_rate,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`

	// Lifecycle
	Acknowledged   bool       `gorm:"default:false" json:"acknowledged"`
	Resolved       bool       `gorm:"default:false" json:"resolved"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	// Append-only comment log
	Comments string `gorm:"type:text" json:"comments,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// SystemSettings is the single-row settings table shared with the
// administrative surface. Secret columns carry gocrypt tags and are
// stored encrypted.
type SystemSettings struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	RedfishUsername string `gorm:"not null;default:'admin'" json:"redfish_username"`
	RedfishPassword string `gorm:"not null;default:'admin'" json:"-" gocrypt:"aes"`

	SMTPEnabled   bool   `gorm:"default:false" json:"smtp_enabled"`
	SMTPServer    string `gorm:"default:'smtp.office365.com'" json:"smtp_server"`
	SMTPPort      int    `gorm:"default:587" json:"smtp_port"`
	SMTPUsername  string `json:"smtp_username"`
	SMTPPassword  string `json:"-" gocrypt:"aes"`
	SMTPFromEmail string `json:"smtp_from_email"`
	SMTPToEmails  string `json:"smtp_to_emails"` // JSON array as string
	SMTPUseTLS    bool   `gorm:"default:true" json:"smtp_use_tls"`

	TeamsEnabled    bool   `gorm:"default:false" json:"teams_enabled"`
	TeamsWebhookURL string `json:"teams_webhook_url"`

	PumpFlowCriticalThreshold float64 `gorm:"default:10.0" json:"pump_flow_critical_threshold"`

	MonitoringEnabled      bool `gorm:"default:true" json:"monitoring_enabled"`
	PollingIntervalSeconds int  `gorm:"default:30" json:"polling_interval_seconds" binding:"omitempty,min=1"`

	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName overrides the default table name logic
func (HeatExchanger) TableName() string  { return "heat_exchangers" }
func (Reading) TableName() string        { return "readings" }
func (Alert) TableName() string          { return "alerts" }
func (SystemSettings) TableName() string { return "system_settings" }

// GetID methods to satisfy Identifiable interface
func (h HeatExchanger) GetID() int64  { return h.ID }
func (r Reading) GetID() int64        { return r.ID }
func (a Alert) GetID() int64          { return a.ID }
func (s SystemSettings) GetID() int64 { return s.ID }

// Recipients parses the SMTP recipient list column.
func (s *SystemSettings) Recipients() []string {
	if s.SMTPToEmails == "" {
		return nil
	}
	var emails []string
	if err := json.Unmarshal([]byte(s.SMTPToEmails), &emails); err != nil {
		return nil
	}
	return emails
}

// AppendComment appends a timestamped, actor-tagged entry to an alert's
// comment log. The log is append-only; entries are separated by blank lines.
func AppendComment(log, actor, text string, at time.Time) string {
	entry := fmt.Sprintf("[%s] %s: %s", at.UTC().Format("2006-01-02 15:04:05"), actor, text)
	if log == "" {
		return entry
	}
	return log + "\n\n" + entry
}
