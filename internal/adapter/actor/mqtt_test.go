package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/events"
	"github.com/berfenger/mppt2mqtt/internal/util"
	"github.com/berfenger/mppt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	payload string
	retain  bool
}

type recorder struct {
	mu   sync.Mutex
	msgs map[string]published
}

func (r *recorder) sink(topic, payload string, retain bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[topic] = published{payload: payload, retain: retain}
}

func (r *recorder) get(topic string) (published, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.msgs[topic]
	return p, ok
}

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}
	rec := &recorder{msgs: map[string]published{}}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, rec.sink, logger) })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	snap := domain.ChargerSnapshot{
		Measurement: domain.Measurement{SolarMilliVolts: 18250, SolarMilliAmps: 1500, BatteryMilliVolts: 12600},
		Duty:        131,
		Mode:        domain.ModeMPPT,
	}
	for _, ev := range events.SnapshotToUpdateEvents(snap) {
		es.Publish(ev)
	}
	es.Publish(events.ChargerModeUpdateEvent(domain.ModeConstantCurrent))
	for _, ev := range events.ControlTargetsUpdateEvents(domain.ControlTargets{VoltageMilliVolts: 13800, CCCurrentMilliAmps: 1234}) {
		es.Publish(ev)
	}
	// not a sensor event: ignored
	es.Publish("noise")

	assert.Eventually(t, func() bool {
		_, ok := rec.get("mppt/number/cc_target_current/state")
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	p, ok := rec.get("mppt/sensor/solar_voltage/state")
	require.True(t, ok)
	assert.Equal(t, "18.25", p.payload)
	assert.False(t, p.retain)

	p, ok = rec.get("mppt/sensor/duty/state")
	require.True(t, ok)
	assert.Equal(t, "131", p.payload)

	p, ok = rec.get("mppt/select/charger_mode/state")
	require.True(t, ok)
	assert.Equal(t, "cc", p.payload)
	assert.True(t, p.retain)

	p, ok = rec.get("mppt/number/cv_target_voltage/state")
	require.True(t, ok)
	assert.Equal(t, "13.80", p.payload)
	assert.True(t, p.retain)

	p, ok = rec.get("mppt/number/cc_target_current/state")
	require.True(t, ok)
	assert.Equal(t, "1.234", p.payload)

	context.Stop(pid)

	as.Shutdown()
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "12.50", formatFloat(12.5, 2))
	assert.Equal(t, "13", formatFloat(12.6, 0))
	assert.Equal(t, "0.806", formatFloat(0.806, 3))
}
