package chargerio

import (
	"fmt"

	"github.com/chewxy/math32"
)

const (
	// fraction of the conversion ratio swept by the full duty range
	simDutySpan = 0.6

	simBisectSteps = 48
)

// SimConfig describes a simulated PV panel, buck stage and battery together
// with the analog front end that digitises them.
type SimConfig struct {
	PanelVocMilliVolts       uint32
	PanelIscMilliAmps        uint32
	PanelThermalMilliVolts   uint32 // cells * ideality * kT/q
	BatteryMilliVolts        uint32 // open circuit
	BatteryInternalMilliOhms uint32

	SolarVoltsPin   uint8
	SolarAmpsPin    uint8
	BatteryVoltsPin uint8
	ControlPin      uint8

	// hundredths of mV or mA per code, as in the charger configuration
	SolarVoltsScale   uint32
	SolarAmpsScale    uint32
	BatteryVoltsScale uint32
	CurrentOffset     uint16
	MaxCode           uint16

	ActiveHigh  bool
	InitialDuty uint8
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		PanelVocMilliVolts:       21600,
		PanelIscMilliAmps:        5000,
		PanelThermalMilliVolts:   1200,
		BatteryMilliVolts:        12600,
		BatteryInternalMilliOhms: 100,
		SolarVoltsPin:            0,
		SolarAmpsPin:             1,
		BatteryVoltsPin:          2,
		ControlPin:               9,
		SolarVoltsScale:          3910,
		SolarAmpsScale:           806,
		BatteryVoltsScale:        1564,
		CurrentOffset:            80,
		MaxCode:                  1023,
		InitialDuty:              128,
	}
}

// SimState is the electrical operating point of the simulation.
type SimState struct {
	Duty              uint8
	PanelMilliVolts   float32
	PanelMilliAmps    float32
	BatteryMilliVolts float32
	BatteryMilliAmps  float32
}

func (s SimState) PanelMilliWatts() float32 {
	return s.PanelMilliVolts * s.PanelMilliAmps / 1000
}

// SimulatedStage is an in-memory charger: duty writes move the operating
// point, ADC reads return the codes the front end would produce.
type SimulatedStage struct {
	cfg   SimConfig
	state SimState
	io0   float32
}

func NewSimulatedStage(cfg SimConfig) *SimulatedStage {
	if cfg.MaxCode == 0 {
		cfg.MaxCode = 1023
	}
	if cfg.PanelThermalMilliVolts == 0 {
		cfg.PanelThermalMilliVolts = 1200
	}
	s := &SimulatedStage{cfg: cfg}
	vt := float32(cfg.PanelThermalMilliVolts) / 1000
	voc := float32(cfg.PanelVocMilliVolts) / 1000
	s.io0 = float32(cfg.PanelIscMilliAmps) / 1000 / (math32.Exp(voc/vt) - 1)
	s.state = s.solve(cfg.InitialDuty)
	return s
}

func (s *SimulatedStage) Open() error  { return nil }
func (s *SimulatedStage) Close() error { return nil }

func (s *SimulatedStage) State() SimState {
	return s.state
}

// SetBatteryMilliVolts changes the open circuit battery voltage, e.g. to
// emulate charging over time.
func (s *SimulatedStage) SetBatteryMilliVolts(mv uint32) {
	s.cfg.BatteryMilliVolts = mv
	s.state = s.solve(s.state.Duty)
}

// PowerAt reports the panel power the stage would settle at for a duty.
func (s *SimulatedStage) PowerAt(duty uint8) float32 {
	return s.solve(duty).PanelMilliWatts()
}

func (s *SimulatedStage) Read(channel uint8) (uint16, error) {
	switch channel {
	case s.cfg.SolarVoltsPin:
		return s.code(s.state.PanelMilliVolts, s.cfg.SolarVoltsScale, 0), nil
	case s.cfg.SolarAmpsPin:
		return s.code(s.state.PanelMilliAmps, s.cfg.SolarAmpsScale, s.cfg.CurrentOffset), nil
	case s.cfg.BatteryVoltsPin:
		return s.code(s.state.BatteryMilliVolts, s.cfg.BatteryVoltsScale, 0), nil
	}
	return 0, fmt.Errorf("sim: no analog channel %d", channel)
}

func (s *SimulatedStage) Write(channel uint8, duty uint8) error {
	if channel != s.cfg.ControlPin {
		return fmt.Errorf("sim: no pwm channel %d", channel)
	}
	s.state = s.solve(duty)
	return nil
}

func (s *SimulatedStage) code(value float32, scale uint32, offset uint16) uint16 {
	if scale == 0 {
		return 0
	}
	c := math32.Round(value*100/float32(scale)) + float32(offset)
	c = math32.Min(math32.Max(c, 0), float32(s.cfg.MaxCode))
	return uint16(c)
}

// panelAmps is the single diode model without series resistance.
func (s *SimulatedStage) panelAmps(volts float32) float32 {
	vt := float32(s.cfg.PanelThermalMilliVolts) / 1000
	isc := float32(s.cfg.PanelIscMilliAmps) / 1000
	return math32.Max(0, isc-s.io0*(math32.Exp(volts/vt)-1))
}

// ratio maps duty to the buck conversion ratio. Higher output for lower duty
// unless the stage is active-high.
func (s *SimulatedStage) ratio(duty uint8) float32 {
	d := float32(duty) / 255
	if !s.cfg.ActiveHigh {
		d = 1 - d
	}
	return 1 - simDutySpan + simDutySpan*d
}

func (s *SimulatedStage) solve(duty uint8) SimState {
	ratio := s.ratio(duty)
	voc := float32(s.cfg.PanelVocMilliVolts) / 1000
	isc := float32(s.cfg.PanelIscMilliAmps) / 1000
	vocv := float32(s.cfg.BatteryMilliVolts) / 1000
	r := float32(s.cfg.BatteryInternalMilliOhms) / 1000

	st := SimState{Duty: duty, PanelMilliVolts: voc * 1000, BatteryMilliVolts: vocv * 1000}
	if ratio <= 0 || vocv/ratio >= voc {
		return st
	}

	// battery terminal voltage rises with the current the panel can push;
	// the residual is monotonic so bisection converges
	lo, hi := vocv, vocv+r*isc
	for i := 0; i < simBisectSteps; i++ {
		mid := (lo + hi) / 2
		if mid-vocv-r*ratio*s.panelAmps(mid/ratio) > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	vb := (lo + hi) / 2
	vp := math32.Min(vb/ratio, voc)
	ip := s.panelAmps(vp)

	st.PanelMilliVolts = vp * 1000
	st.PanelMilliAmps = ip * 1000
	st.BatteryMilliVolts = vb * 1000
	st.BatteryMilliAmps = ip * ratio * 1000
	return st
}

// ensure interface compliance
var _ IO = (*SimulatedStage)(nil)
