package alarms

import (
	"testing"

	"coolmon/pkg/models"
	"coolmon/pkg/redfish"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestExtractLowFlow(t *testing.T) {
	tests := []struct {
		name      string
		pumps     []redfish.PumpStatus
		threshold float64
		wantFacts int
	}{
		{
			name: "flow below threshold raises critical fact",
			pumps: []redfish.PumpStatus{
				{ID: "1", Name: "Pump 1", FlowLiquid: floatPtr(5.2)},
			},
			threshold: 10.0,
			wantFacts: 1,
		},
		{
			name: "flow at threshold is clean",
			pumps: []redfish.PumpStatus{
				{ID: "1", Name: "Pump 1", FlowLiquid: floatPtr(10.0)},
			},
			threshold: 10.0,
			wantFacts: 0,
		},
		{
			name: "flow above threshold is clean",
			pumps: []redfish.PumpStatus{
				{ID: "1", Name: "Pump 1", FlowLiquid: floatPtr(15.0)},
			},
			threshold: 10.0,
			wantFacts: 0,
		},
		{
			name: "missing flow reading is clean",
			pumps: []redfish.PumpStatus{
				{ID: "1", Name: "Pump 1"},
			},
			threshold: 10.0,
			wantFacts: 0,
		},
		{
			name: "each degraded pump raises its own fact",
			pumps: []redfish.PumpStatus{
				{ID: "1", Name: "Pump 1", FlowLiquid: floatPtr(3.0)},
				{ID: "2", Name: "Pump 2", FlowLiquid: floatPtr(12.0)},
				{ID: "3", Name: "Pump 3", FlowLiquid: floatPtr(7.5)},
			},
			threshold: 10.0,
			wantFacts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := Extract(nil, tt.pumps, tt.threshold)
			assert.Len(t, facts, tt.wantFacts)
			for _, fact := range facts {
				assert.Equal(t, models.AlertTypeLowFlow, fact.Type)
				assert.Equal(t, models.SeverityCritical, fact.Severity)
			}
		})
	}
}

func TestExtractLowFlowFactFields(t *testing.T) {
	pumps := []redfish.PumpStatus{
		{ID: "1", Name: "Pump 1", FlowLiquid: floatPtr(5.2)},
	}

	facts := Extract(nil, pumps, 10.0)
	require.Len(t, facts, 1)

	fact := facts[0]
	assert.Equal(t, "1", fact.DedupKey)
	assert.Equal(t, "1", fact.PumpID)
	assert.Equal(t, "Pump 1", fact.PumpName)
	assert.Equal(t, "Critical Low Flow - Pump 1", fact.Title)
	assert.Equal(t, "Pump flow rate (5.2 L/min) dropped below critical threshold (10 L/min)", fact.Description)
	require.NotNil(t, fact.FlowRate)
	require.NotNil(t, fact.Threshold)
	assert.Equal(t, 5.2, *fact.FlowRate)
	assert.Equal(t, 10.0, *fact.Threshold)
}

func TestExtractPumpNameFallsBackToID(t *testing.T) {
	pumps := []redfish.PumpStatus{
		{ID: "2", FlowLiquid: floatPtr(1.0)},
	}

	facts := Extract(nil, pumps, 10.0)
	require.Len(t, facts, 1)
	assert.Equal(t, "2", facts[0].PumpName)
	assert.Equal(t, "Critical Low Flow - 2", facts[0].Title)
}

func TestExtractSubsystemAlarms(t *testing.T) {
	cdu := &redfish.CDUStatus{
		LeakAlarms:   &redfish.ListAlarms{Alarms: []string{"LeakSensor1"}},
		FanAlarms:    &redfish.FlagAlarms{Alarms: map[string]bool{"Fan2Fault": true, "Fan1Fault": true, "Fan3Fault": false}},
		PumpAlarms:   &redfish.FlagAlarms{Alarms: map[string]bool{"PumpCommLoss": true}},
		SensorAlarms: &redfish.ListAlarms{Alarms: []string{"SupplyTempHigh"}},
	}

	facts := Extract(cdu, nil, 10.0)
	require.Len(t, facts, 5)

	// Ordered: leak, fan (sorted), pump, sensor.
	assert.Equal(t, models.AlertTypeLeak, facts[0].Type)
	assert.Equal(t, "LeakSensor1", facts[0].DedupKey)
	assert.Equal(t, "Leak Detection - LeakSensor1", facts[0].Title)

	assert.Equal(t, models.AlertTypeFan, facts[1].Type)
	assert.Equal(t, "Fan1Fault", facts[1].DedupKey)
	assert.Equal(t, models.AlertTypeFan, facts[2].Type)
	assert.Equal(t, "Fan2Fault", facts[2].DedupKey)

	assert.Equal(t, models.AlertTypePump, facts[3].Type)
	assert.Equal(t, "PumpCommLoss", facts[3].DedupKey)

	assert.Equal(t, models.AlertTypeSensor, facts[4].Type)
	assert.Equal(t, "Sensor Alarm - SupplyTempHigh", facts[4].Title)

	for _, fact := range facts {
		assert.Equal(t, models.SeverityWarning, fact.Severity)
	}
}

func TestExtractInactiveFlagsProduceNoFacts(t *testing.T) {
	cdu := &redfish.CDUStatus{
		FanAlarms:  &redfish.FlagAlarms{Alarms: map[string]bool{"Fan1Fault": false}},
		PumpAlarms: &redfish.FlagAlarms{Alarms: map[string]bool{}},
	}

	facts := Extract(cdu, nil, 10.0)
	assert.Empty(t, facts)
}

func TestExtractNilSnapshot(t *testing.T) {
	assert.Empty(t, Extract(nil, nil, 10.0))
}

func TestExtractCombinedOrdering(t *testing.T) {
	cdu := &redfish.CDUStatus{
		LeakAlarms: &redfish.ListAlarms{Alarms: []string{"LeakSensor1"}},
	}
	pumps := []redfish.PumpStatus{
		{ID: "1", Name: "Pump 1", FlowLiquid: floatPtr(2.0)},
	}

	facts := Extract(cdu, pumps, 10.0)
	require.Len(t, facts, 2)
	assert.Equal(t, models.AlertTypeLeak, facts[0].Type)
	assert.Equal(t, models.AlertTypeLowFlow, facts[1].Type)
}
