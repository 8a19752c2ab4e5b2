package service

import (
	"fmt"

	"github.com/berfenger/mppt2mqtt/internal/config"
	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/port"

	"go.uber.org/zap"
)

// ChargerConfigFromSettings derives channel scales from the divider and shunt
// values of the configuration file.
func ChargerConfigFromSettings(cfg config.ChargerConfig) (domain.ChargerConfig, ADCModel, error) {
	adc := ADCModel{
		ReferenceMilliVolts: cfg.ADCReferenceMV,
		MaxCode:             cfg.ADCMaxCode,
	}.orDefault()

	solar, err := VoltageScale(adc, cfg.SolarVolts.Rhi, cfg.SolarVolts.Rlo)
	if err != nil {
		return domain.ChargerConfig{}, adc, fmt.Errorf("solar_volts: %w", err)
	}
	battery, err := VoltageScale(adc, cfg.BatteryVolts.Rhi, cfg.BatteryVolts.Rlo)
	if err != nil {
		return domain.ChargerConfig{}, adc, fmt.Errorf("battery_volts: %w", err)
	}
	current, err := CurrentScale(adc, cfg.SolarCurrent.Rhi, cfg.SolarCurrent.Rlo, cfg.SolarCurrent.Rshunt)
	if err != nil {
		return domain.ChargerConfig{}, adc, fmt.Errorf("solar_current: %w", err)
	}
	polarity, err := domain.ParsePolarity(cfg.Polarity)
	if err != nil {
		return domain.ChargerConfig{}, adc, err
	}

	return domain.ChargerConfig{
		SolarVolts:   domain.ChannelConfig{Pin: cfg.SolarVolts.Pin, Scale: solar},
		SolarAmps:    domain.ChannelConfig{Pin: cfg.SolarCurrent.Pin, Scale: current, Offset: cfg.SolarCurrent.Offset},
		BatteryVolts: domain.ChannelConfig{Pin: cfg.BatteryVolts.Pin, Scale: battery},
		ControlPin:   cfg.ControlPin,
		Polarity:     polarity,
	}, adc, nil
}

func NewChargerFromSettings(cfg *config.Config, adc port.ADC, pwm port.PWM, clock port.Clock, logger *zap.Logger) (*Charger, error) {
	chargerCfg, adcModel, err := ChargerConfigFromSettings(cfg.Charger)
	if err != nil {
		return nil, err
	}
	return NewCharger(chargerCfg, adc, pwm, clock, logger.With(zap.String("component", "charger")),
		WithADCModel(adcModel),
		WithPeriods(cfg.Control.OffPeriodMillis, cfg.Control.ControlPeriodMillis),
	), nil
}
