package events

import (
	"testing"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatEvents(t *testing.T, evs []any) map[string]float64 {
	t.Helper()
	values := map[string]float64{}
	for _, e := range evs {
		f, ok := e.(domain.FloatSensorUpdateEvent)
		require.True(t, ok, "unexpected event %T", e)
		values[f.SensorId()] = f.Value
	}
	return values
}

func TestSnapshotToUpdateEvents(t *testing.T) {

	snap := domain.ChargerSnapshot{
		Measurement: domain.Measurement{
			SolarMilliVolts:   18000,
			SolarMilliAmps:    2500,
			BatteryMilliVolts: 12000,
		},
		Duty: 140,
		Mode: domain.ModeMPPT,
	}

	values := floatEvents(t, SnapshotToUpdateEvents(snap))
	assert.InDelta(t, 18.0, values[SENSOR_ID_SOLAR_VOLTAGE], 1e-9)
	assert.InDelta(t, 2.5, values[SENSOR_ID_SOLAR_CURRENT], 1e-9)
	assert.InDelta(t, 45.0, values[SENSOR_ID_SOLAR_POWER], 1e-9)
	assert.InDelta(t, 12.0, values[SENSOR_ID_BATTERY_VOLTAGE], 1e-9)
	assert.InDelta(t, 3.75, values[SENSOR_ID_BATTERY_CURRENT], 1e-9)
	assert.InDelta(t, 140, values[SENSOR_ID_DUTY], 1e-9)
}

func TestSnapshotWithoutBatteryVoltage(t *testing.T) {

	snap := domain.ChargerSnapshot{
		Measurement: domain.Measurement{SolarMilliVolts: 18000, SolarMilliAmps: 100},
	}
	values := floatEvents(t, SnapshotToUpdateEvents(snap))
	_, ok := values[SENSOR_ID_BATTERY_CURRENT]
	assert.False(t, ok, "battery current is omitted when it cannot be estimated")
	assert.Len(t, values, 5)
}

func TestModeAndTargetEvents(t *testing.T) {

	ev := ChargerModeUpdateEvent(domain.ModeConstantVoltage).(domain.SelectSensorUpdateEvent)
	assert.Equal(t, SELECT_ID_CHARGER_MODE, ev.SensorId())
	assert.Equal(t, "cv", ev.Value)

	evs := ControlTargetsUpdateEvents(domain.ControlTargets{
		VoltageMilliVolts:   13800,
		CCVoltageMilliVolts: 14400,
		CCCurrentMilliAmps:  2500,
	})
	require.Len(t, evs, 3)
	assert.InDelta(t, 13.8, evs[0].(domain.InputNumberSensorUpdateEvent).Value, 1e-9)
	assert.InDelta(t, 2.5, evs[2].(domain.InputNumberSensorUpdateEvent).Value, 1e-9)
	assert.EqualValues(t, 2, evs[0].(domain.InputNumberSensorUpdateEvent).Decimals)
	assert.EqualValues(t, 3, evs[2].(domain.InputNumberSensorUpdateEvent).Decimals, "current targets keep milliamp resolution")

	bridge := BridgeOnlineUpdateEvent(true).(domain.BridgeStateUpdateEvent)
	assert.True(t, bridge.Value)
}

func TestDiscoveryEntities(t *testing.T) {

	dev := ChargerDevice("mppt", "sim")
	assert.NotEqual(t, dev.Id, ChargerDevice("mppt", "modbus").Id, "device id depends on the driver")

	sensors := ChargerSensors(dev)
	ids := map[string]bool{}
	for _, s := range sensors {
		assert.NotEmpty(t, s.UniqueId)
		ids[s.Id] = true
	}
	for _, id := range []string{SENSOR_ID_SOLAR_VOLTAGE, SENSOR_ID_SOLAR_CURRENT, SENSOR_ID_SOLAR_POWER,
		SENSOR_ID_BATTERY_VOLTAGE, SENSOR_ID_BATTERY_CURRENT, SENSOR_ID_DUTY} {
		assert.True(t, ids[id], "missing sensor %s", id)
	}

	selects := ChargerSelects(dev)
	require.Len(t, selects, 1)
	assert.Equal(t, []string{"off", "mppt", "cv", "cc"}, selects[0].Options)

	numbers := ChargerInputNumbers(dev, domain.ControlTargets{VoltageMilliVolts: 13800})
	require.Len(t, numbers, 3)
	assert.InDelta(t, 13.8, numbers[0].InitialValue, 1e-9)
}
