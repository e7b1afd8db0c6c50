// Package alarms turns a device's fetched status snapshot into typed
// alarm facts. Extraction is pure: it never touches the network or the
// database, and absent payload fields simply produce no facts.
package alarms

import (
	"fmt"
	"sort"

	"coolmon/pkg/models"
	"coolmon/pkg/redfish"
)

// Fact is a transient alarm observation from one poll cycle. DedupKey is
// the alarm name for subsystem alarms and the pump id for low-flow; the
// alert ledger uses it to keep at most one open alert per fact.
type Fact struct {
	Type        string
	Severity    string
	DedupKey    string
	Title       string
	Description string

	// Low-flow only
	PumpID    string
	PumpName  string
	FlowRate  *float64
	Threshold *float64
}

// Extract evaluates one device's snapshot against the configured low-flow
// threshold and returns the ordered fact sequence: leak, fan, pump,
// sensor, then low-flow.
func Extract(cdu *redfish.CDUStatus, pumps []redfish.PumpStatus, flowThreshold float64) []Fact {
	var facts []Fact

	if cdu != nil {
		if cdu.LeakAlarms != nil {
			for _, name := range cdu.LeakAlarms.Alarms {
				facts = append(facts, Fact{
					Type:        models.AlertTypeLeak,
					Severity:    models.SeverityWarning,
					DedupKey:    name,
					Title:       "Leak Detection - " + name,
					Description: "Leak sensor alarm detected: " + name,
				})
			}
		}
		facts = append(facts, flagFacts(cdu.FanAlarms, models.AlertTypeFan, "Fan Alarm", "Fan system alarm detected")...)
		facts = append(facts, flagFacts(cdu.PumpAlarms, models.AlertTypePump, "Pump Alarm", "Pump system alarm detected")...)
		if cdu.SensorAlarms != nil {
			for _, name := range cdu.SensorAlarms.Alarms {
				facts = append(facts, Fact{
					Type:        models.AlertTypeSensor,
					Severity:    models.SeverityWarning,
					DedupKey:    name,
					Title:       "Sensor Alarm - " + name,
					Description: "Sensor alarm detected: " + name,
				})
			}
		}
	}

	for _, pump := range pumps {
		if pump.FlowLiquid == nil || *pump.FlowLiquid >= flowThreshold {
			continue
		}
		flow := *pump.FlowLiquid
		threshold := flowThreshold
		name := pump.Name
		if name == "" {
			name = pump.ID
		}
		facts = append(facts, Fact{
			Type:     models.AlertTypeLowFlow,
			Severity: models.SeverityCritical,
			DedupKey: pump.ID,
			Title:    "Critical Low Flow - " + name,
			Description: fmt.Sprintf("Pump flow rate (%g L/min) dropped below critical threshold (%g L/min)",
				flow, threshold),
			PumpID:    pump.ID,
			PumpName:  name,
			FlowRate:  &flow,
			Threshold: &threshold,
		})
	}

	return facts
}

// flagFacts expands a named-flag alarm map into one fact per active flag.
// Keys are sorted so the fact sequence is stable across cycles.
func flagFacts(alarms *redfish.FlagAlarms, alertType, titlePrefix, descPrefix string) []Fact {
	if alarms == nil || len(alarms.Alarms) == 0 {
		return nil
	}

	names := make([]string, 0, len(alarms.Alarms))
	for name, active := range alarms.Alarms {
		if active {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	facts := make([]Fact, 0, len(names))
	for _, name := range names {
		facts = append(facts, Fact{
			Type:        alertType,
			Severity:    models.SeverityWarning,
			DedupKey:    name,
			Title:       titlePrefix + " - " + name,
			Description: descPrefix + ": " + name,
		})
	}
	return facts
}
