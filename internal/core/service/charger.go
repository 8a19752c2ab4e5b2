package service

import (
	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const (
	DEFAULT_SOLAR_RHI   = 390
	DEFAULT_SOLAR_RLO   = 10
	DEFAULT_BATTERY_RHI = 150
	DEFAULT_BATTERY_RLO = 10
	DEFAULT_CURRENT_RHI = 100.0
	DEFAULT_CURRENT_RLO = 3.3
	DEFAULT_SHUNT_OHMS  = 0.004
)

// DefaultChargerConfig returns the channel layout and scaling of the
// reference board (A0/A1/A2 inputs, D9 control, 40 V / 16 V dividers).
func DefaultChargerConfig(adc ADCModel) domain.ChargerConfig {
	solar, _ := VoltageScale(adc, DEFAULT_SOLAR_RHI, DEFAULT_SOLAR_RLO)
	battery, _ := VoltageScale(adc, DEFAULT_BATTERY_RHI, DEFAULT_BATTERY_RLO)
	current, _ := CurrentScale(adc, DEFAULT_CURRENT_RHI, DEFAULT_CURRENT_RLO, DEFAULT_SHUNT_OHMS)
	return domain.ChargerConfig{
		SolarVolts: domain.ChannelConfig{
			Pin:   domain.DEFAULT_SOLAR_VOLTS_PIN,
			Scale: solar,
		},
		SolarAmps: domain.ChannelConfig{
			Pin:    domain.DEFAULT_SOLAR_CURRENT_PIN,
			Scale:  current,
			Offset: domain.CURRENT_OFFSET_DEFAULT,
		},
		BatteryVolts: domain.ChannelConfig{
			Pin:   domain.DEFAULT_BATTERY_VOLTS_PIN,
			Scale: battery,
		},
		ControlPin: domain.DEFAULT_CONTROL_PIN,
		Polarity:   domain.PolarityActiveLow,
	}
}

// Charger is the control core. It is not safe for concurrent use; a single
// owner must serialise every call.
type Charger struct {
	cfg      domain.ChargerConfig
	adcModel ADCModel
	adc      port.ADC
	pwm      port.PWM
	clock    port.Clock
	logger   *zap.Logger

	measurer    *Measurer
	schedules   [4]*Schedule
	state       domain.ControllerState
	measurement domain.Measurement
}

type ChargerOption func(*Charger)

func WithADCModel(m ADCModel) ChargerOption {
	return func(c *Charger) {
		c.adcModel = m.orDefault()
	}
}

// WithPeriods overrides the Off and active-mode tick periods.
func WithPeriods(offMillis, controlMillis uint32) ChargerOption {
	return func(c *Charger) {
		if offMillis > 0 {
			c.schedules[domain.ModeOff] = NewSchedule(offMillis)
		}
		if controlMillis > 0 {
			c.schedules[domain.ModeMPPT] = NewSchedule(controlMillis)
			c.schedules[domain.ModeConstantVoltage] = NewSchedule(controlMillis)
			c.schedules[domain.ModeConstantCurrent] = NewSchedule(controlMillis)
		}
	}
}

func WithInitialState(s domain.ControllerState) ChargerOption {
	return func(c *Charger) {
		s.Duty = ClampDuty(s.Duty)
		if s.DutyStep == 0 {
			s.DutyStep = domain.DUTY_STEP_DEFAULT
		}
		c.state = s
	}
}

func NewCharger(cfg domain.ChargerConfig, adc port.ADC, pwm port.PWM, clock port.Clock, logger *zap.Logger, opts ...ChargerOption) *Charger {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Charger{
		cfg:      cfg,
		adcModel: DefaultADCModel(),
		adc:      adc,
		pwm:      pwm,
		clock:    clock,
		logger:   logger,
		state:    domain.DefaultControllerState(),
		schedules: [4]*Schedule{
			NewSchedule(OffPeriodMillis),
			NewSchedule(ControlPeriodMillis),
			NewSchedule(ControlPeriodMillis),
			NewSchedule(ControlPeriodMillis),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.measurer = NewMeasurer(adc, c.cfg)
	return c
}

// tick measures when the schedule of the given mode is due. ok is false when
// the mode is not the active one, the schedule is not due, or measurement failed.
func (c *Charger) tick(active, own domain.Mode) bool {
	if active != own {
		return false
	}
	if !c.schedules[own].Due(c.clock.Millis()) {
		return false
	}
	m, err := c.measurer.Measure()
	if err != nil {
		c.logger.Warn("charger: measurement failed, skipping tick", zap.String("mode", own.String()), zap.Error(err))
		return false
	}
	c.measurement = m
	c.state.Mode = own
	return true
}

func (c *Charger) emit(duty uint8) {
	if err := c.pwm.Write(c.cfg.ControlPin, duty); err != nil {
		c.logger.Error("charger: failed to write duty", zap.Uint8("pin", c.cfg.ControlPin), zap.Uint8("duty", duty), zap.Error(err))
	}
}

func (c *Charger) RunOff(mode domain.Mode) {
	if !c.tick(mode, domain.ModeOff) {
		return
	}
	c.emit(c.cfg.Polarity.OffDuty())
}

func (c *Charger) RunMPPT(mode domain.Mode) {
	if !c.tick(mode, domain.ModeMPPT) {
		return
	}
	c.state = PerturbAndObserve(c.state, c.measurement.SolarPowerMilliWatt())
	c.emit(uint8(c.state.Duty))
}

func (c *Charger) RunConstantVoltage(mode domain.Mode, targetMilliVolts uint32) {
	if !c.tick(mode, domain.ModeConstantVoltage) {
		return
	}
	c.state = RegulateStep(c.state, c.cfg.Polarity, c.measurement.BatteryMilliVolts > targetMilliVolts)
	c.emit(uint8(c.state.Duty))
}

// RunConstantCurrent holds battery current and voltage at or below their
// targets, tracking maximum power while both are under. A zero battery
// voltage gives no current estimate and throttles.
func (c *Charger) RunConstantCurrent(mode domain.Mode, voltageMilliVolts, currentMilliAmps uint32) {
	if !c.tick(mode, domain.ModeConstantCurrent) {
		return
	}
	batteryAmps, ok := c.measurement.BatteryMilliAmps()
	if !ok || batteryAmps > uint64(currentMilliAmps) || c.measurement.BatteryMilliVolts > voltageMilliVolts {
		c.state = RegulateStep(c.state, c.cfg.Polarity, true)
	} else {
		c.state = PerturbAndObserve(c.state, c.measurement.SolarPowerMilliWatt())
	}
	c.emit(uint8(c.state.Duty))
}

// Run calls every entry point with the active mode. At most one of them acts.
func (c *Charger) Run(mode domain.Mode, targets domain.ControlTargets) {
	c.RunOff(mode)
	c.RunMPPT(mode)
	c.RunConstantVoltage(mode, targets.VoltageMilliVolts)
	c.RunConstantCurrent(mode, targets.CCVoltageMilliVolts, targets.CCCurrentMilliAmps)
}

// Halt writes the minimum-output duty right away, outside any schedule. The
// controller state is left untouched.
func (c *Charger) Halt() error {
	return c.pwm.Write(c.cfg.ControlPin, c.cfg.Polarity.OffDuty())
}

func (c *Charger) Snapshot() domain.ChargerSnapshot {
	return domain.ChargerSnapshot{
		Measurement: c.measurement,
		Duty:        uint8(ClampDuty(c.state.Duty)),
		Mode:        c.state.Mode,
	}
}

func (c *Charger) State() domain.ControllerState {
	return c.state
}

func (c *Charger) Config() domain.ChargerConfig {
	return c.cfg
}

func (c *Charger) ConfigureSolarVolts(pin uint8, rhi, rlo uint32) error {
	scale, err := VoltageScale(c.adcModel, rhi, rlo)
	if err != nil {
		return err
	}
	c.cfg.SolarVolts.Pin = pin
	c.cfg.SolarVolts.Scale = scale
	c.measurer = NewMeasurer(c.adc, c.cfg)
	return nil
}

func (c *Charger) ConfigureBatteryVolts(pin uint8, rhi, rlo uint32) error {
	scale, err := VoltageScale(c.adcModel, rhi, rlo)
	if err != nil {
		return err
	}
	c.cfg.BatteryVolts.Pin = pin
	c.cfg.BatteryVolts.Scale = scale
	c.measurer = NewMeasurer(c.adc, c.cfg)
	return nil
}

func (c *Charger) ConfigureSolarCurrent(pin uint8, rhi, rlo, rshunt float64) error {
	scale, err := CurrentScale(c.adcModel, rhi, rlo, rshunt)
	if err != nil {
		return err
	}
	c.cfg.SolarAmps.Pin = pin
	c.cfg.SolarAmps.Scale = scale
	c.measurer = NewMeasurer(c.adc, c.cfg)
	return nil
}

func (c *Charger) SetCurrentOffset(code uint16) {
	c.cfg.SolarAmps.Offset = code
	c.measurer = NewMeasurer(c.adc, c.cfg)
}

func (c *Charger) SetControlPin(pin uint8) {
	c.cfg.ControlPin = pin
}

// PerturbAndObserve reverses the step direction when power dropped since the
// previous observation, then applies the step.
func PerturbAndObserve(s domain.ControllerState, powerMilliWatt uint64) domain.ControllerState {
	if powerMilliWatt < s.LastPowerMilliWatt {
		s.DutyStep = -s.DutyStep
	}
	s.LastPowerMilliWatt = powerMilliWatt
	s.Duty = ClampDuty(s.Duty + int(s.DutyStep))
	return s
}

// RegulateStep moves the duty one step toward less output when throttle is
// set, toward more output otherwise. The last observed power is kept.
func RegulateStep(s domain.ControllerState, polarity domain.Polarity, throttle bool) domain.ControllerState {
	if throttle {
		s.DutyStep = polarity.ThrottleStep(s.DutyStep)
	} else {
		s.DutyStep = polarity.BoostStep(s.DutyStep)
	}
	s.Duty = ClampDuty(s.Duty + int(s.DutyStep))
	return s
}

func ClampDuty(duty int) int {
	if duty < domain.DUTY_MIN {
		return domain.DUTY_MIN
	}
	if duty > domain.DUTY_MAX {
		return domain.DUTY_MAX
	}
	return duty
}

// ensure interface compliance
var _ port.ChargerControl = (*Charger)(nil)
