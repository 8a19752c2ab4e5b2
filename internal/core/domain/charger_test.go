package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {

	for _, name := range Modes() {
		m, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.String())
	}

	m, err := ParseMode(" CVCC ")
	require.NoError(t, err)
	assert.Equal(t, ModeConstantCurrent, m)

	_, err = ParseMode("boost")
	assert.ErrorIs(t, err, ErrUnknownMode)

	assert.False(t, Mode(7).Valid())
	assert.Equal(t, "mode(7)", Mode(7).String())
}

func TestPolarity(t *testing.T) {

	assert := assert.New(t)

	assert.EqualValues(255, PolarityActiveLow.OffDuty(), "active-low off command is full duty")
	assert.EqualValues(1, PolarityActiveLow.ThrottleStep(-1), "active-low throttles by raising duty")
	assert.EqualValues(-1, PolarityActiveLow.BoostStep(1))

	assert.EqualValues(0, PolarityActiveHigh.OffDuty())
	assert.EqualValues(-1, PolarityActiveHigh.ThrottleStep(1))
	assert.EqualValues(1, PolarityActiveHigh.BoostStep(-1))

	p, err := ParsePolarity("inverted")
	require.NoError(t, err)
	assert.Equal(PolarityActiveLow, p)
	p, err = ParsePolarity("active_high")
	require.NoError(t, err)
	assert.Equal(PolarityActiveHigh, p)
	_, err = ParsePolarity("sideways")
	assert.ErrorIs(err, ErrUnknownPolarity)
}

func TestMeasurementDerivedValues(t *testing.T) {

	m := Measurement{
		SolarMilliVolts:   18000,
		SolarMilliAmps:    2500,
		BatteryMilliVolts: 12000,
	}
	assert.EqualValues(t, 45000, m.SolarPowerMilliWatt())

	amps, ok := m.BatteryMilliAmps()
	assert.True(t, ok)
	assert.EqualValues(t, 3750, amps)

	m.BatteryMilliVolts = 0
	amps, ok = m.BatteryMilliAmps()
	assert.False(t, ok, "no estimate without battery voltage")
	assert.Zero(t, amps)
}

func TestDefaultControllerState(t *testing.T) {
	s := DefaultControllerState()
	assert.Equal(t, DUTY_DEFAULT, s.Duty)
	assert.EqualValues(t, 1, s.DutyStep)
	assert.Zero(t, s.LastPowerMilliWatt)
	assert.Equal(t, ModeOff, s.Mode)
}
