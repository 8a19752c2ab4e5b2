package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/mppt2mqtt/internal/config"
	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/events"
	"github.com/berfenger/mppt2mqtt/internal/core/service"
	"github.com/berfenger/mppt2mqtt/internal/util"
	"github.com/berfenger/mppt2mqtt/internal/util/actorutil"
	"github.com/berfenger/mppt2mqtt/pkg/chargerio"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// lockedStage serialises access to the simulation, which is also inspected
// from the test goroutine.
type lockedStage struct {
	mu    sync.Mutex
	stage *chargerio.SimulatedStage
	open  bool
}

func (s *lockedStage) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *lockedStage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *lockedStage) Read(channel uint8) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage.Read(channel)
}

func (s *lockedStage) Write(channel, duty uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage.Write(channel, duty)
}

func (s *lockedStage) State() (chargerio.SimState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage.State(), s.open
}

type failingIO struct{}

func (failingIO) Open() error  { return errors.New("bridge unreachable") }
func (failingIO) Close() error { return nil }

type eventLog struct {
	mu     sync.Mutex
	latest map[string]any
}

func newEventLog(es *eventstream.EventStream) *eventLog {
	l := &eventLog{latest: map[string]any{}}
	es.Subscribe(func(evt any) {
		if ev, ok := evt.(domain.SensorUpdateEvent); ok {
			l.mu.Lock()
			l.latest[ev.SensorId()] = evt
			l.mu.Unlock()
		}
	})
	return l
}

func (l *eventLog) get(id string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, ok := l.latest[id]
	return ev, ok
}

func testChargerConfig() config.Config {
	cfg := util.LoadTestConfig()
	cfg.Control.ControlPeriodMillis = 20
	cfg.Control.OffPeriodMillis = 50
	cfg.Control.PollIntervalMillis = 5
	cfg.Control.PublishIntervalMillis = 100
	return cfg
}

func spawnCharger(t *testing.T, as *actor.ActorSystem, cfg *config.Config, es *eventstream.EventStream, logger *zap.Logger) (*actor.PID, *lockedStage) {
	t.Helper()
	stage := &lockedStage{stage: chargerio.NewSimulatedStage(chargerio.DefaultSimConfig())}
	charger, err := service.NewChargerFromSettings(cfg, stage, stage, chargerio.NewSystemClock(), logger)
	require.NoError(t, err)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewChargerActor(cfg, stage, charger, es, logger)
	})
	return as.Root.Spawn(props), stage
}

func request[T any](t *testing.T, as *actor.ActorSystem, pid *actor.PID, msg any) T {
	t.Helper()
	res, err := as.Root.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(T)
	require.True(t, ok, "unexpected response %T", res)
	return resp
}

func TestChargerActorTracksMaximumPower(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	cfg := testChargerConfig()
	es := &eventstream.EventStream{}
	evs := newEventLog(es)
	pid, stage := spawnCharger(t, as, &cfg, es, logger)

	health := request[domain.ActorHealthResponse](t, as, pid, domain.ActorHealthRequest{})
	assert.True(t, health.Healthy)
	assert.Equal(t, "mppt", health.State)

	reference := chargerio.NewSimulatedStage(chargerio.DefaultSimConfig())
	best := float32(0)
	for d := 0; d <= 255; d++ {
		best = max(best, reference.PowerAt(uint8(d)))
	}
	assert.Eventually(t, func() bool {
		s, _ := stage.State()
		return s.PanelMilliWatts() > best*0.9
	}, 10*time.Second, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok := evs.get(events.SENSOR_ID_SOLAR_POWER)
		return ok
	}, 2*time.Second, 20*time.Millisecond, "snapshots are published")

	snap := request[domain.ChargerGetSnapshotResponse](t, as, pid, domain.ChargerGetSnapshotRequest{})
	assert.Equal(t, domain.ModeMPPT, snap.Snapshot.Mode)
	assert.Greater(t, snap.Snapshot.SolarMilliVolts, uint32(10000))
	assert.EqualValues(t, 13800, snap.Targets.VoltageMilliVolts)

	as.Root.StopFuture(pid).Wait()
	s, open := stage.State()
	assert.False(t, open, "io is closed on stop")
	assert.Equal(t, uint8(domain.DUTY_MAX), s.Duty, "stage is left at minimum output")
}

func TestChargerActorCommands(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	cfg := testChargerConfig()
	cfg.Control.Mode = "off"
	es := &eventstream.EventStream{}
	evs := newEventLog(es)
	pid, stage := spawnCharger(t, as, &cfg, es, logger)

	assert.Eventually(t, func() bool {
		s, _ := stage.State()
		return s.Duty == domain.DUTY_MAX
	}, 2*time.Second, 20*time.Millisecond, "off mode drives minimum output")

	modeResp := request[domain.ChargerSetModeResponse](t, as, pid, domain.ChargerSetModeRequest{Mode: domain.ModeConstantVoltage})
	assert.NoError(t, modeResp.GetResponseError())
	assert.True(t, modeResp.Changed)
	assert.Equal(t, domain.ModeConstantVoltage, modeResp.Mode)

	modeResp = request[domain.ChargerSetModeResponse](t, as, pid, domain.ChargerSetModeRequest{Mode: domain.ModeConstantVoltage})
	assert.False(t, modeResp.Changed)

	modeResp = request[domain.ChargerSetModeResponse](t, as, pid, domain.ChargerSetModeRequest{Mode: domain.Mode(42)})
	assert.ErrorIs(t, modeResp.GetResponseError(), domain.ErrUnknownMode)
	assert.Equal(t, domain.ModeConstantVoltage, modeResp.Mode)

	ev, ok := evs.get(events.SELECT_ID_CHARGER_MODE)
	require.True(t, ok)
	assert.Equal(t, "cv", ev.(domain.SelectSensorUpdateEvent).Value)

	target := uint32(12900)
	targetsResp := request[domain.ChargerSetTargetsResponse](t, as, pid, domain.ChargerSetTargetsRequest{VoltageMilliVolts: &target})
	assert.EqualValues(t, 12900, targetsResp.Targets.VoltageMilliVolts)
	assert.EqualValues(t, 14400, targetsResp.Targets.CCVoltageMilliVolts, "unset targets are kept")
	assert.EqualValues(t, 2000, targetsResp.Targets.CCCurrentMilliAmps)

	// the battery settles around the new target
	assert.Eventually(t, func() bool {
		s, _ := stage.State()
		return s.BatteryMilliVolts > 12700 && s.BatteryMilliVolts < 13100
	}, 10*time.Second, 50*time.Millisecond)

	ev, ok = evs.get(events.INPUT_NUMBER_ID_CV_TARGET_VOLTAGE)
	require.True(t, ok)
	assert.InDelta(t, 12.9, ev.(domain.InputNumberSensorUpdateEvent).Value, 1e-9)
}

func TestChargerActorIOFailure(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	cfg := testChargerConfig()
	tio := chargerio.CreateTestIO(nil)
	charger, err := service.NewChargerFromSettings(&cfg, tio, tio, chargerio.NewSystemClock(), logger)
	require.NoError(t, err)

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewChargerActor(&cfg, failingIO{}, charger, &eventstream.EventStream{}, logger)
	}))

	// requests stay stashed while the io cannot be opened
	_, err = as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond).Result()
	assert.Error(t, err)
}
