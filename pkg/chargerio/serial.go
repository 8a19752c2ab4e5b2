package chargerio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

var ErrSerialTimeout = errors.New("serial response timeout")

// SerialIO drives a microcontroller bridge over a line protocol. Replies
// echo the channel so a late answer to a timed out request is never taken
// for the answer of the next one:
//
//	R<ch>\n         -> <ch>,<code>\n
//	W<ch>,<duty>\n  -> <ch>,OK\n
//
// Lines tagged with another channel are dropped. Any other reply is reported
// as an error.
type SerialIO struct {
	mu         sync.Mutex
	open       func() (io.ReadWriteCloser, error)
	port       io.ReadWriteCloser
	timeout    time.Duration
	pending    []byte
	instrument []Instrument
	logger     *zap.Logger
}

type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

func CreateSerialIO(cfg SerialConfig, logger *zap.Logger, instrumentation *Instrument) *SerialIO {
	log := zap.NewNop()
	if logger != nil {
		log = logger.With(zap.String("target", "serial"), zap.String("port", cfg.Port))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &SerialIO{
		open: func() (io.ReadWriteCloser, error) {
			port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
			if err != nil {
				return nil, err
			}
			// short reads let readLine honour the overall timeout
			if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
				port.Close()
				return nil, err
			}
			return port, nil
		},
		timeout:    timeout,
		instrument: instruments(log, instrumentation),
		logger:     log,
	}
}

// NewSerialIOWithConn builds a bridge on an already open stream.
func NewSerialIOWithConn(conn io.ReadWriteCloser, timeout time.Duration) *SerialIO {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &SerialIO{
		open:    func() (io.ReadWriteCloser, error) { return conn, nil },
		timeout: timeout,
		logger:  zap.NewNop(),
	}
}

// Open is idempotent. Opening holds the lock, so an Open abandoned by a
// timed out caller completes before any later Open or Close runs.
func (s *SerialIO) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}
	port, err := s.open()
	if err != nil {
		return fmt.Errorf("open serial bridge: %w", err)
	}
	s.port = port
	s.pending = s.pending[:0]
	return nil
}

func (s *SerialIO) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.pending = s.pending[:0]
	return err
}

func (s *SerialIO) Read(channel uint8) (uint16, error) {
	defer RecordTimer("SerialRead", s.instrument)()
	value, err := s.roundTrip(fmt.Sprintf("R%d\n", channel), channel)
	if err != nil {
		return 0, fmt.Errorf("read adc channel %d: %w", channel, err)
	}
	code, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("read adc channel %d: bad reply %q", channel, value)
	}
	return uint16(code), nil
}

func (s *SerialIO) Write(channel uint8, duty uint8) error {
	defer RecordTimer("SerialWrite", s.instrument)()
	value, err := s.roundTrip(fmt.Sprintf("W%d,%d\n", channel, duty), channel)
	if err != nil {
		return fmt.Errorf("write pwm channel %d: %w", channel, err)
	}
	if value != "OK" {
		return fmt.Errorf("write pwm channel %d: bad reply %q", channel, value)
	}
	return nil
}

// roundTrip sends cmd and returns the payload of the first reply tagged with
// channel.
func (s *SerialIO) roundTrip(cmd string, channel uint8) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return "", errors.New("serial bridge not open")
	}
	// whatever is buffered answers an earlier request
	s.pending = s.pending[:0]
	if _, err := io.WriteString(s.port, cmd); err != nil {
		return "", err
	}
	tag := strconv.Itoa(int(channel)) + ","
	deadline := time.Now().Add(s.timeout)
	for {
		line, err := s.readLine(deadline)
		if err != nil {
			return "", err
		}
		if value, ok := strings.CutPrefix(line, tag); ok {
			return value, nil
		}
		if !strings.Contains(line, ",") {
			return line, nil
		}
		s.logger.Debug("serial: dropping stale reply", zap.String("line", line), zap.String("cmd", strings.TrimSpace(cmd)))
	}
}

func (s *SerialIO) readLine(deadline time.Time) (string, error) {
	buf := make([]byte, 64)
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := strings.TrimSpace(string(s.pending[:i]))
			s.pending = append(s.pending[:0], s.pending[i+1:]...)
			return line, nil
		}
		if time.Now().After(deadline) {
			return "", ErrSerialTimeout
		}
		n, err := s.port.Read(buf)
		if n > 0 {
			s.pending = append(s.pending, buf[:n]...)
		}
		if err != nil {
			return "", err
		}
	}
}

// ensure interface compliance
var _ IO = (*SerialIO)(nil)
