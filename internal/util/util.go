package util

import (
	"github.com/berfenger/mppt2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Charger: config.ChargerConfig{
			SolarVolts:     config.DividerConfig{Pin: 0, Rhi: 390, Rlo: 10},
			SolarCurrent:   config.CurrentSenseConfig{Pin: 1, Rhi: 100, Rlo: 3.3, Rshunt: 0.004, Offset: 80},
			BatteryVolts:   config.DividerConfig{Pin: 2, Rhi: 150, Rlo: 10},
			ControlPin:     9,
			Polarity:       "active_low",
			ADCReferenceMV: 1000,
			ADCMaxCode:     1023,
		},
		Control: config.ControlConfig{
			Mode:                  "mppt",
			CVTargetMV:            13800,
			CCVoltageTargetMV:     14400,
			CCCurrentTargetMA:     2000,
			PollIntervalMillis:    10,
			ControlPeriodMillis:   100,
			OffPeriodMillis:       500,
			PublishIntervalMillis: 1000,
		},
		IO: config.IOConfig{
			Driver: config.IO_DRIVER_SIM,
			Sim: config.SimIOConfig{
				PanelVocMV:          21600,
				PanelIscMA:          5000,
				BatteryMV:           12600,
				BatteryInternalMOhm: 100,
			},
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "mppt",
			HADiscoveryTopic: "homeassistant",
		},
		Port: 8080,
	}
}
