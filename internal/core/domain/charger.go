package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DUTY_MIN          = 0
	DUTY_MAX          = 255
	DUTY_DEFAULT      = 128
	DUTY_STEP_DEFAULT = 1

	// zero-current calibration code of the current sense amplifier
	CURRENT_OFFSET_DEFAULT = 80

	DEFAULT_SOLAR_VOLTS_PIN   = 0 // A0
	DEFAULT_SOLAR_CURRENT_PIN = 1 // A1
	DEFAULT_BATTERY_VOLTS_PIN = 2 // A2
	DEFAULT_CONTROL_PIN       = 9 // D9
)

var (
	ErrInvalidDivider  = errors.New("invalid voltage divider")
	ErrInvalidShunt    = errors.New("invalid current sense network")
	ErrUnknownMode     = errors.New("unknown charger mode")
	ErrUnknownPolarity = errors.New("unknown pwm polarity")
)

// Mode is the operating objective of the charger. Exactly one mode is active per tick.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeMPPT
	ModeConstantVoltage
	ModeConstantCurrent
)

var modeNames = [...]string{"off", "mppt", "cv", "cc"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func (m Mode) Valid() bool {
	return int(m) < len(modeNames)
}

// Modes returns every mode name, in enum order.
func Modes() []string {
	return modeNames[:]
}

func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "cvcc" {
		return ModeConstantCurrent, nil
	}
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return ModeOff, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Polarity describes how the PWM duty maps onto converter output.
//
// The reference power stage is active-low: a higher duty value lowers the
// converter output voltage, so duty 255 means minimum output.
type Polarity uint8

const (
	PolarityActiveLow Polarity = iota
	PolarityActiveHigh
)

func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active_low", "low", "inverted":
		return PolarityActiveLow, nil
	case "active_high", "high", "normal":
		return PolarityActiveHigh, nil
	}
	return PolarityActiveLow, fmt.Errorf("%w: %q", ErrUnknownPolarity, s)
}

func (p Polarity) String() string {
	if p == PolarityActiveHigh {
		return "active_high"
	}
	return "active_low"
}

// OffDuty is the duty command that yields minimum converter output.
func (p Polarity) OffDuty() uint8 {
	if p == PolarityActiveHigh {
		return DUTY_MIN
	}
	return DUTY_MAX
}

// ThrottleStep returns the signed step that reduces converter output.
func (p Polarity) ThrottleStep(step int8) int8 {
	mag := absStep(step)
	if p == PolarityActiveHigh {
		return -mag
	}
	return mag
}

// BoostStep returns the signed step that raises converter output.
func (p Polarity) BoostStep(step int8) int8 {
	return -p.ThrottleStep(step)
}

func absStep(step int8) int8 {
	if step < 0 {
		return -step
	}
	return step
}

// Measurement is the latest physical-unit triple. It is always replaced as a whole.
type Measurement struct {
	SolarMilliVolts   uint32 `json:"solar_mV"`
	SolarMilliAmps    uint32 `json:"solar_mA"`
	BatteryMilliVolts uint32 `json:"battery_mV"`
}

// SolarPowerMilliWatt is the panel power, truncated to whole milliwatts.
func (m Measurement) SolarPowerMilliWatt() uint64 {
	return uint64(m.SolarMilliVolts) * uint64(m.SolarMilliAmps) / 1000
}

// BatteryMilliAmps estimates the current delivered at battery voltage assuming
// power conservation through the converter. ok is false when the battery
// voltage reads zero and no estimate exists.
func (m Measurement) BatteryMilliAmps() (current uint64, ok bool) {
	if m.BatteryMilliVolts == 0 {
		return 0, false
	}
	return uint64(m.SolarMilliAmps) * uint64(m.SolarMilliVolts) / uint64(m.BatteryMilliVolts), true
}

type ControllerState struct {
	Mode               Mode
	Duty               int
	DutyStep           int8
	LastPowerMilliWatt uint64
}

func DefaultControllerState() ControllerState {
	return ControllerState{
		Mode:     ModeOff,
		Duty:     DUTY_DEFAULT,
		DutyStep: DUTY_STEP_DEFAULT,
	}
}

// ChargerSnapshot is a read-only copy of the latest measurement and duty command.
type ChargerSnapshot struct {
	Measurement
	Duty uint8 `json:"duty"`
	Mode Mode  `json:"-"`
}

func (s ChargerSnapshot) ModeName() string {
	return s.Mode.String()
}

// ControlTargets holds the regulation set points for the CV and CC modes.
type ControlTargets struct {
	VoltageMilliVolts   uint32 `json:"cv_target_mV"`
	CCVoltageMilliVolts uint32 `json:"cc_voltage_target_mV"`
	CCCurrentMilliAmps  uint32 `json:"cc_current_target_mA"`
}

// ChannelConfig is the scaling of one measurement channel.
// Scale is expressed in hundredths of a physical unit (mV or mA) per ADC code.
type ChannelConfig struct {
	Pin    uint8
	Scale  uint32
	Offset uint16
}

type ChargerConfig struct {
	SolarVolts   ChannelConfig
	SolarAmps    ChannelConfig
	BatteryVolts ChannelConfig
	ControlPin   uint8
	Polarity     Polarity
}
