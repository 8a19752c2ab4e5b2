package config_test

import (
	"testing"

	"github.com/berfenger/mppt2mqtt/internal/config"
	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTestConfig(t *testing.T) {
	cfg := util.LoadTestConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejects(t *testing.T) {

	cases := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"poll slower than control", func(c *config.Config) { c.Control.PollIntervalMillis = 100 }, "poll_interval_millis"},
		{"zero poll", func(c *config.Config) { c.Control.PollIntervalMillis = 0 }, "poll_interval_millis"},
		{"fast control", func(c *config.Config) { c.Control.ControlPeriodMillis = 5 }, "control_period_millis"},
		{"off faster than control", func(c *config.Config) { c.Control.OffPeriodMillis = 50 }, "off_period_millis"},
		{"unknown mode", func(c *config.Config) { c.Control.Mode = "turbo" }, "control.mode"},
		{"bad schedule mode", func(c *config.Config) {
			c.Control.Schedule = []config.ModeScheduleEntry{{Cron: "0 0 6 * * *", Mode: "boost"}}
		}, "schedule[0]"},
		{"bad cron", func(c *config.Config) {
			c.Control.Schedule = []config.ModeScheduleEntry{{Cron: "every morning", Mode: "mppt"}}
		}, "schedule[0]"},
		{"open divider", func(c *config.Config) { c.Charger.BatteryVolts.Rlo = 0 }, "rlo"},
		{"no shunt", func(c *config.Config) { c.Charger.SolarCurrent.Rshunt = 0 }, "rshunt"},
		{"polarity", func(c *config.Config) { c.Charger.Polarity = "sideways" }, "polarity"},
		{"driver", func(c *config.Config) { c.IO.Driver = "gpio" }, "unknown driver"},
		{"modbus url", func(c *config.Config) { c.IO.Driver = config.IO_DRIVER_MODBUS }, "io.modbus.url"},
		{"serial port", func(c *config.Config) { c.IO.Driver = config.IO_DRIVER_SERIAL }, "io.serial.port"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := util.LoadTestConfig()
			c.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.errMsg)
		})
	}
}

func TestValidateUsesDomainParsers(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.Control.Mode = "CVCC"
	cfg.Charger.Polarity = ""
	assert.NoError(t, cfg.Validate(), "aliases and the default polarity are accepted")

	cfg.Control.Mode = "turbo"
	assert.ErrorIs(t, cfg.Validate(), domain.ErrUnknownMode)

	cfg = util.LoadTestConfig()
	cfg.Charger.Polarity = "sideways"
	assert.ErrorIs(t, cfg.Validate(), domain.ErrUnknownPolarity)
}

func TestValidateAcceptsSchedule(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.Control.Schedule = []config.ModeScheduleEntry{
		{Cron: "0 0 7 * * *", Mode: "mppt"},
		{Cron: "0 30 19 * * *", Mode: "off"},
	}
	assert.NoError(t, cfg.Validate())
}

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := config.CheckMQTTTopic("MPPT_Garage")
	require.NoError(t, err)
	assert.Equal(t, "mppt_garage", topic)

	_, err = config.CheckMQTTTopic("mppt/garage")
	assert.Error(t, err)
}
