package events

import (
	. "github.com/berfenger/mppt2mqtt/internal/core/domain"
)

func SnapshotToUpdateEvents(s ChargerSnapshot) []any {
	var events []any

	// Solar side
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_VOLTAGE,
		},
		Value:    milliToUnit(s.SolarMilliVolts),
		Decimals: 2,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_CURRENT,
		},
		Value:    milliToUnit(s.SolarMilliAmps),
		Decimals: 3,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_POWER,
		},
		Value:    float64(s.SolarPowerMilliWatt()) / 1000,
		Decimals: 2,
	})
	// Battery side
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_VOLTAGE,
		},
		Value:    milliToUnit(s.BatteryMilliVolts),
		Decimals: 2,
	})
	// no estimate without battery voltage
	if amps, ok := s.BatteryMilliAmps(); ok {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_CURRENT,
			},
			Value:    float64(amps) / 1000,
			Decimals: 3,
		})
	}
	// Control
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DUTY,
		},
		Value:    float64(s.Duty),
		Decimals: 0,
	})

	return events
}

func ChargerModeUpdateEvent(mode Mode) any {
	return SelectSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SELECT_ID_CHARGER_MODE,
		},
		Value: mode.String(),
	}
}

func ControlTargetsUpdateEvents(t ControlTargets) []any {
	var events []any
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_CV_TARGET_VOLTAGE,
		},
		Value:    milliToUnit(t.VoltageMilliVolts),
		Decimals: 2,
	})
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_CC_TARGET_VOLTAGE,
		},
		Value:    milliToUnit(t.CCVoltageMilliVolts),
		Decimals: 2,
	})
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_CC_TARGET_CURRENT,
		},
		Value:    milliToUnit(t.CCCurrentMilliAmps),
		Decimals: 3,
	})
	return events
}

func BridgeOnlineUpdateEvent(online bool) any {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}
