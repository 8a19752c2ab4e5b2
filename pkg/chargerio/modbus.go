package chargerio

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// ModbusIO talks to a Modbus I/O module. Each ADC channel is an input
// register at AdcBase+channel, each PWM channel a holding register at
// PwmBase+channel.
type ModbusIO struct {
	client     *modbus.ModbusClient
	adcBase    uint16
	pwmBase    uint16
	instrument []Instrument
}

type ModbusConfig struct {
	URL     string // tcp://host:502 or rtu:///dev/ttyUSB0
	UnitId  uint8
	Timeout time.Duration
	AdcBase uint16
	PwmBase uint16
}

func CreateModbusIO(cfg ModbusConfig, logger *zap.Logger, instrumentation *Instrument) (*ModbusIO, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     cfg.URL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("modbus client %s: %w", cfg.URL, err)
	}

	if cfg.UnitId > 0 {
		if err = client.SetUnitId(cfg.UnitId); err != nil {
			return nil, err
		}
	}

	var log *zap.Logger
	if logger != nil {
		log = logger.With(zap.String("target", "modbus"), zap.String("url", cfg.URL))
	}

	return &ModbusIO{
		client:     client,
		adcBase:    cfg.AdcBase,
		pwmBase:    cfg.PwmBase,
		instrument: instruments(log, instrumentation),
	}, nil
}

func (m *ModbusIO) Open() error {
	return m.client.Open()
}

func (m *ModbusIO) Close() error {
	return m.client.Close()
}

func (m *ModbusIO) Read(channel uint8) (uint16, error) {
	defer RecordTimer("ReadRegister", m.instrument)()
	v, err := m.client.ReadRegister(m.adcBase+uint16(channel), modbus.INPUT_REGISTER)
	if err != nil {
		return 0, fmt.Errorf("read adc channel %d: %w", channel, err)
	}
	return v, nil
}

func (m *ModbusIO) Write(channel uint8, duty uint8) error {
	defer RecordTimer("WriteRegister", m.instrument)()
	if err := m.client.WriteRegister(m.pwmBase+uint16(channel), uint16(duty)); err != nil {
		return fmt.Errorf("write pwm channel %d: %w", channel, err)
	}
	return nil
}

// ensure interface compliance
var _ IO = (*ModbusIO)(nil)
