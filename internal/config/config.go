package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"

	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap/zapcore"
)

const (
	IO_DRIVER_SIM    = "sim"
	IO_DRIVER_MODBUS = "modbus"
	IO_DRIVER_SERIAL = "serial"
)

type Config struct {
	LogLevel zapcore.Level
	Charger  ChargerConfig `mapstructure:"charger"`
	Control  ControlConfig `mapstructure:"control"`
	IO       IOConfig      `mapstructure:"io"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
	Port     uint          `mapstructure:"port"`
	HttpLog  bool          `mapstructure:"http_log"`
}

type DividerConfig struct {
	Pin uint8
	Rhi uint32
	Rlo uint32
}

type CurrentSenseConfig struct {
	Pin    uint8
	Rhi    float64
	Rlo    float64
	Rshunt float64
	Offset uint16
}

type ChargerConfig struct {
	SolarVolts     DividerConfig      `mapstructure:"solar_volts"`
	SolarCurrent   CurrentSenseConfig `mapstructure:"solar_current"`
	BatteryVolts   DividerConfig      `mapstructure:"battery_volts"`
	ControlPin     uint8              `mapstructure:"control_pin"`
	Polarity       string             `mapstructure:"polarity"`
	ADCReferenceMV uint32             `mapstructure:"adc_reference_mv"`
	ADCMaxCode     uint32             `mapstructure:"adc_max_code"`
}

type ModeScheduleEntry struct {
	Cron string
	Mode string
}

type ControlConfig struct {
	Mode                  string              `mapstructure:"mode"`
	CVTargetMV            uint32              `mapstructure:"cv_target_mv"`
	CCVoltageTargetMV     uint32              `mapstructure:"cc_voltage_target_mv"`
	CCCurrentTargetMA     uint32              `mapstructure:"cc_current_target_ma"`
	PollIntervalMillis    uint32              `mapstructure:"poll_interval_millis"`
	ControlPeriodMillis   uint32              `mapstructure:"control_period_millis"`
	OffPeriodMillis       uint32              `mapstructure:"off_period_millis"`
	PublishIntervalMillis uint32              `mapstructure:"publish_interval_millis"`
	Schedule              []ModeScheduleEntry `mapstructure:"schedule"`
}

type ModbusIOConfig struct {
	URL             string
	UnitId          uint8  `mapstructure:"unit_id"`
	TimeoutMillis   uint32 `mapstructure:"timeout_millis"`
	AdcBaseRegister uint16 `mapstructure:"adc_base_register"`
	PwmBaseRegister uint16 `mapstructure:"pwm_base_register"`
}

type SerialIOConfig struct {
	Port          string
	BaudRate      int    `mapstructure:"baud_rate"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type SimIOConfig struct {
	PanelVocMV          uint32 `mapstructure:"panel_voc_mv"`
	PanelIscMA          uint32 `mapstructure:"panel_isc_ma"`
	BatteryMV           uint32 `mapstructure:"battery_mv"`
	BatteryInternalMOhm uint32 `mapstructure:"battery_internal_mohm"`
}

type IOConfig struct {
	Driver string
	Modbus ModbusIOConfig `mapstructure:"modbus"`
	Serial SerialIOConfig `mapstructure:"serial"`
	Sim    SimIOConfig    `mapstructure:"sim"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// Validate checks bounds that viper cannot express. It returns the first
// violation found.
func (c *Config) Validate() error {
	ctl := c.Control
	if ctl.ControlPeriodMillis < 10 {
		return fmt.Errorf("control.control_period_millis must be >= 10 (got %d)", ctl.ControlPeriodMillis)
	}
	if ctl.OffPeriodMillis < ctl.ControlPeriodMillis {
		return fmt.Errorf("control.off_period_millis must be >= control_period_millis (got %d)", ctl.OffPeriodMillis)
	}
	if ctl.PollIntervalMillis < 1 || ctl.PollIntervalMillis >= ctl.ControlPeriodMillis {
		return fmt.Errorf("control.poll_interval_millis must be in [1, control_period_millis) (got %d)", ctl.PollIntervalMillis)
	}
	if ctl.PublishIntervalMillis < 100 {
		return fmt.Errorf("control.publish_interval_millis must be >= 100 (got %d)", ctl.PublishIntervalMillis)
	}
	if _, err := domain.ParseMode(ctl.Mode); err != nil {
		return fmt.Errorf("control.mode: %w", err)
	}
	for i, e := range ctl.Schedule {
		if _, err := domain.ParseMode(e.Mode); err != nil {
			return fmt.Errorf("control.schedule[%d]: %w", i, err)
		}
		if err := quartz.ValidateCronExpression(e.Cron); err != nil {
			return fmt.Errorf("control.schedule[%d]: %w", i, err)
		}
	}

	ch := c.Charger
	if ch.SolarVolts.Rlo == 0 || ch.BatteryVolts.Rlo == 0 {
		return errors.New("charger: divider rlo must be > 0")
	}
	if ch.SolarCurrent.Rhi <= 0 || ch.SolarCurrent.Rlo <= 0 || ch.SolarCurrent.Rshunt <= 0 {
		return errors.New("charger.solar_current: rhi, rlo and rshunt must be > 0")
	}
	if ch.ADCMaxCode == 0 || ch.ADCReferenceMV == 0 {
		return errors.New("charger: adc_reference_mv and adc_max_code must be > 0")
	}
	if _, err := domain.ParsePolarity(ch.Polarity); err != nil {
		return fmt.Errorf("charger.polarity: %w", err)
	}

	switch c.IO.Driver {
	case IO_DRIVER_SIM:
	case IO_DRIVER_MODBUS:
		if c.IO.Modbus.URL == "" {
			return errors.New("io.modbus.url is required for the modbus driver")
		}
	case IO_DRIVER_SERIAL:
		if c.IO.Serial.Port == "" {
			return errors.New("io.serial.port is required for the serial driver")
		}
	default:
		return fmt.Errorf("io.driver: unknown driver %q", c.IO.Driver)
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
