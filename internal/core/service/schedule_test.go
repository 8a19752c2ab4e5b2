package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleAnchorsOnFirstPoll(t *testing.T) {

	assert := assert.New(t)
	s := NewSchedule(100)

	assert.False(s.Due(1000), "first poll only anchors")
	assert.False(s.Due(1099))
	assert.True(s.Due(1100))
	assert.False(s.Due(1150))
	assert.True(s.Due(1200))
}

func TestScheduleDoesNotDrift(t *testing.T) {

	s := NewSchedule(100)
	dues := 0
	var now uint32
	for ; now <= 10000; now += 7 {
		if s.Due(now) {
			dues++
			// every due event lands within one poll interval of a period boundary
			assert.Less(t, now%100, uint32(7), "late due event at %d", now)
		}
	}
	assert.Equal(t, 99, dues)
}

func TestScheduleCatchUpFiresOnce(t *testing.T) {

	assert := assert.New(t)
	s := NewSchedule(100)

	s.Due(0)
	assert.True(s.Due(1050), "missed intervals collapse into one event")
	assert.False(s.Due(1099))
	assert.True(s.Due(1100), "schedule stays on its original grid")
}

func TestScheduleWraparound(t *testing.T) {

	assert := assert.New(t)
	s := NewSchedule(100)

	start := uint32(math.MaxUint32 - 50)
	s.Due(start)
	assert.False(s.Due(math.MaxUint32 - 10))
	assert.False(s.Due(48))
	assert.True(s.Due(49), "due across the counter wrap")
	assert.False(s.Due(100))
	assert.True(s.Due(149))
}

func TestScheduleReset(t *testing.T) {

	s := NewSchedule(500)
	s.Due(0)
	s.Reset()
	assert.False(t, s.Due(600), "reset re-anchors instead of firing")
	assert.True(t, s.Due(1100))
	assert.EqualValues(t, 500, s.Period())
}
