package service

const (
	OffPeriodMillis     = 500
	ControlPeriodMillis = 100
)

// Schedule decides when a periodic task is due on a wrapping 32-bit
// millisecond clock. Due instants are multiples of the period from the first
// poll, so lateness never accumulates.
type Schedule struct {
	period uint32
	next   uint32
	armed  bool
}

func NewSchedule(periodMillis uint32) *Schedule {
	if periodMillis == 0 {
		periodMillis = 1
	}
	return &Schedule{period: periodMillis}
}

func (s *Schedule) Period() uint32 {
	return s.period
}

// Due reports whether the task should run at now. The first poll only
// anchors the schedule. Missed intervals collapse into a single due event.
func (s *Schedule) Due(now uint32) bool {
	if !s.armed {
		s.next = now + s.period
		s.armed = true
		return false
	}
	if int32(now-s.next) < 0 {
		return false
	}
	for int32(now-s.next) >= 0 {
		s.next += s.period
	}
	return true
}

// Reset drops the anchor. The next poll re-anchors.
func (s *Schedule) Reset() {
	s.armed = false
}
