package chargerio

import "fmt"

type DutyWrite struct {
	Channel uint8
	Duty    uint8
}

// TestIO returns fixed ADC codes and records every PWM write.
type TestIO struct {
	Codes     map[uint8]uint16
	ReadErrs  map[uint8]error
	WriteErr  error
	Writes    []DutyWrite
	ReadCount int
}

func CreateTestIO(codes map[uint8]uint16) *TestIO {
	if codes == nil {
		codes = map[uint8]uint16{}
	}
	return &TestIO{Codes: codes, ReadErrs: map[uint8]error{}}
}

func (t *TestIO) Open() error  { return nil }
func (t *TestIO) Close() error { return nil }

func (t *TestIO) Read(channel uint8) (uint16, error) {
	t.ReadCount++
	if err := t.ReadErrs[channel]; err != nil {
		return 0, err
	}
	code, ok := t.Codes[channel]
	if !ok {
		return 0, fmt.Errorf("test io: no analog channel %d", channel)
	}
	return code, nil
}

func (t *TestIO) Write(channel uint8, duty uint8) error {
	if t.WriteErr != nil {
		return t.WriteErr
	}
	t.Writes = append(t.Writes, DutyWrite{Channel: channel, Duty: duty})
	return nil
}

// LastDuty returns the most recent duty written, ok is false before any write.
func (t *TestIO) LastDuty() (duty uint8, ok bool) {
	if len(t.Writes) == 0 {
		return 0, false
	}
	return t.Writes[len(t.Writes)-1].Duty, true
}

// ensure interface compliance
var _ IO = (*TestIO)(nil)
