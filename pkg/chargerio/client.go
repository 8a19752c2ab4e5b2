package chargerio

import (
	"time"

	"go.uber.org/zap"
)

// IO is a charger I/O bridge: analog inputs, a PWM output and a lifecycle.
type IO interface {
	Open() error
	Close() error
	Read(channel uint8) (uint16, error)
	Write(channel uint8, duty uint8) error
}

type Instrument struct {
	RecordTime func(fnName string, callTime time.Duration)
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *Instrument {
	if logger == nil || !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &Instrument{
		RecordTime: func(fnName string, callTime time.Duration) {
			logger.Debug("chargerio: call", zap.String("fn", fnName), zap.Duration("took", callTime))
		},
	}
}

func instruments(logger *zap.Logger, extra *Instrument) []Instrument {
	var inst []Instrument
	if logInst := traceLoggerInstrumentation(logger); logInst != nil {
		inst = append(inst, *logInst)
	}
	if extra != nil {
		inst = append(inst, *extra)
	}
	return inst
}
