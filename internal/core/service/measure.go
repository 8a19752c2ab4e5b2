package service

import (
	"fmt"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/port"
)

// Measurer samples the three charger channels and converts them to mV / mA.
type Measurer struct {
	adc          port.ADC
	solarVolts   domain.ChannelConfig
	solarAmps    domain.ChannelConfig
	batteryVolts domain.ChannelConfig
}

func NewMeasurer(adc port.ADC, cfg domain.ChargerConfig) *Measurer {
	return &Measurer{
		adc:          adc,
		solarVolts:   cfg.SolarVolts,
		solarAmps:    cfg.SolarAmps,
		batteryVolts: cfg.BatteryVolts,
	}
}

// Measure returns a complete triple or an error. Partial results are never returned.
func (m *Measurer) Measure() (domain.Measurement, error) {
	sv, err := m.adc.Read(m.solarVolts.Pin)
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("measure solar volts: %w", err)
	}
	si, err := m.adc.Read(m.solarAmps.Pin)
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("measure solar current: %w", err)
	}
	bv, err := m.adc.Read(m.batteryVolts.Pin)
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("measure battery volts: %w", err)
	}
	return domain.Measurement{
		SolarMilliVolts:   ConvertVoltage(sv, m.solarVolts.Scale),
		SolarMilliAmps:    ConvertCurrent(si, m.solarAmps.Offset, m.solarAmps.Scale),
		BatteryMilliVolts: ConvertVoltage(bv, m.batteryVolts.Scale),
	}, nil
}
