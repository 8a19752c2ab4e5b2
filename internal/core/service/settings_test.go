package service

import (
	"testing"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargerConfigFromSettings(t *testing.T) {

	cfg := util.LoadTestConfig()

	chargerCfg, adc, err := ChargerConfigFromSettings(cfg.Charger)
	require.NoError(t, err)
	assert.Equal(t, DefaultADCModel(), adc)
	assert.Equal(t, DefaultChargerConfig(adc), chargerCfg, "test settings describe the reference board")

	cfg.Charger.Polarity = "active_high"
	chargerCfg, _, err = ChargerConfigFromSettings(cfg.Charger)
	require.NoError(t, err)
	assert.Equal(t, domain.PolarityActiveHigh, chargerCfg.Polarity)

	cfg.Charger.BatteryVolts.Rlo = 0
	_, _, err = ChargerConfigFromSettings(cfg.Charger)
	assert.ErrorIs(t, err, domain.ErrInvalidDivider)

	cfg = util.LoadTestConfig()
	cfg.Charger.SolarCurrent.Rshunt = 0
	_, _, err = ChargerConfigFromSettings(cfg.Charger)
	assert.ErrorIs(t, err, domain.ErrInvalidShunt)
}
