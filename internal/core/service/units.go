package service

import (
	"fmt"
	"math"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"
)

const (
	// scales are expressed in hundredths of a unit per ADC code
	SCALE_NORMALIZATION = 100

	ADC_REFERENCE_MV_DEFAULT = 1000
	ADC_MAX_CODE_DEFAULT     = 1023
)

// ADCModel describes the analog front end. The defaults reproduce a 10-bit
// converter with a 1.0 V reference.
type ADCModel struct {
	ReferenceMilliVolts uint32
	MaxCode             uint32
}

func DefaultADCModel() ADCModel {
	return ADCModel{
		ReferenceMilliVolts: ADC_REFERENCE_MV_DEFAULT,
		MaxCode:             ADC_MAX_CODE_DEFAULT,
	}
}

func (a ADCModel) orDefault() ADCModel {
	if a.ReferenceMilliVolts == 0 {
		a.ReferenceMilliVolts = ADC_REFERENCE_MV_DEFAULT
	}
	if a.MaxCode == 0 {
		a.MaxCode = ADC_MAX_CODE_DEFAULT
	}
	return a
}

// VoltageScale computes the channel scale for a resistive divider with rhi on
// the high side and rlo to ground.
func VoltageScale(adc ADCModel, rhi, rlo uint32) (uint32, error) {
	if rlo == 0 {
		return 0, fmt.Errorf("%w: rlo must be positive (rhi=%d rlo=%d)", domain.ErrInvalidDivider, rhi, rlo)
	}
	adc = adc.orDefault()
	scale := uint64(adc.ReferenceMilliVolts) * SCALE_NORMALIZATION * (uint64(rhi) + uint64(rlo))
	scale = scale / uint64(rlo) / uint64(adc.MaxCode)
	if scale > math.MaxUint32 {
		return 0, fmt.Errorf("%w: scale overflow (rhi=%d rlo=%d)", domain.ErrInvalidDivider, rhi, rlo)
	}
	return uint32(scale), nil
}

// CurrentScale computes the channel scale for a shunt amplified by a rhi/rlo
// gain network. Resistances may be fractional.
func CurrentScale(adc ADCModel, rhi, rlo, rshunt float64) (uint32, error) {
	if !(rhi > 0) || !(rlo > 0) || !(rshunt > 0) {
		return 0, fmt.Errorf("%w: rhi=%g rlo=%g rshunt=%g", domain.ErrInvalidShunt, rhi, rlo, rshunt)
	}
	adc = adc.orDefault()
	scale := float64(adc.ReferenceMilliVolts) * SCALE_NORMALIZATION * rlo / rhi / rshunt / float64(adc.MaxCode)
	if scale >= math.MaxUint32 {
		return 0, fmt.Errorf("%w: scale overflow", domain.ErrInvalidShunt)
	}
	return uint32(math.Trunc(scale)), nil
}

func ConvertVoltage(raw uint16, scale uint32) uint32 {
	return uint32(uint64(raw) * uint64(scale) / SCALE_NORMALIZATION)
}

// ConvertCurrent subtracts the zero-current offset. Codes at or below the
// offset read as zero current.
func ConvertCurrent(raw, offset uint16, scale uint32) uint32 {
	if raw <= offset {
		return 0
	}
	return uint32(uint64(raw-offset) * uint64(scale) / SCALE_NORMALIZATION)
}
