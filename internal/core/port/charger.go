package port

import (
	"github.com/berfenger/mppt2mqtt/internal/core/domain"
)

// Clock is a monotonically increasing millisecond counter that wraps at 2^32.
type Clock interface {
	Millis() uint32
}

// ADC samples one analog channel and returns its raw code.
type ADC interface {
	Read(channel uint8) (uint16, error)
}

// PWM drives the converter duty command. Higher duty means lower converter
// output on the reference active-low power stage.
type PWM interface {
	Write(channel uint8, duty uint8) error
}

// ChargerControl is the public contract of the charger core.
type ChargerControl interface {
	RunOff(mode domain.Mode)
	RunMPPT(mode domain.Mode)
	RunConstantVoltage(mode domain.Mode, targetMilliVolts uint32)
	RunConstantCurrent(mode domain.Mode, voltageMilliVolts, currentMilliAmps uint32)
	Run(mode domain.Mode, targets domain.ControlTargets)
	Halt() error

	ConfigureSolarVolts(pin uint8, rhi, rlo uint32) error
	ConfigureBatteryVolts(pin uint8, rhi, rlo uint32) error
	ConfigureSolarCurrent(pin uint8, rhi, rlo, rshunt float64) error
	SetCurrentOffset(code uint16)
	SetControlPin(pin uint8)

	Snapshot() domain.ChargerSnapshot
	State() domain.ControllerState
}
