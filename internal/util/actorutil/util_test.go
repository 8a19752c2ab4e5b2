package actorutil

import (
	"testing"
	"time"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/events"
	"github.com/berfenger/mppt2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParsedMQTTCommandToCommand(t *testing.T) {

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: events.SELECT_ID_CHARGER_MODE,
		Command:  mqtt.COMMAND_SELECT,
		Payload:  "cv",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChargerSetModeRequest{Mode: domain.ModeConstantVoltage}, cmd)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: events.SELECT_ID_CHARGER_MODE,
		Command:  mqtt.COMMAND_SELECT,
		Payload:  "boost",
	})
	assert.ErrorIs(t, err, domain.ErrUnknownMode)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: events.INPUT_NUMBER_ID_CV_TARGET_VOLTAGE,
		Command:  mqtt.COMMAND_NUMBER,
		Payload:  "13.85",
	})
	require.NoError(t, err)
	req, ok := cmd.(domain.ChargerSetTargetsRequest)
	require.True(t, ok)
	require.NotNil(t, req.VoltageMilliVolts)
	assert.Equal(t, uint32(13850), *req.VoltageMilliVolts)
	assert.Nil(t, req.CCVoltageMilliVolts)
	assert.Nil(t, req.CCCurrentMilliAmps)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: events.INPUT_NUMBER_ID_CC_TARGET_CURRENT,
		Command:  mqtt.COMMAND_NUMBER,
		Payload:  "2.5",
	})
	require.NoError(t, err)
	req = cmd.(domain.ChargerSetTargetsRequest)
	require.NotNil(t, req.CCCurrentMilliAmps)
	assert.Equal(t, uint32(2500), *req.CCCurrentMilliAmps)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: events.INPUT_NUMBER_ID_CC_TARGET_VOLTAGE,
		Command:  mqtt.COMMAND_NUMBER,
		Payload:  "-1",
	})
	assert.Error(t, err)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{
		DeviceId: "unknown",
		Command:  mqtt.COMMAND_NUMBER,
		Payload:  "1",
	})
	assert.NoError(t, err)
	assert.Nil(t, cmd)
}

type echoActor struct{}

func (echoActor) Receive(ctx actor.Context) {
	if msg, ok := ctx.Message().(string); ok {
		ctx.Respond(msg + "!")
	}
}

type pipeActor struct {
	target *actor.PID
	got    chan any
}

func (a *pipeActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(a.target, "ping", time.Second), func(err error) any {
			return err
		})
	case string:
		a.got <- msg
	case error:
		a.got <- msg
	}
}

func TestPipeToSelfWithRecover(t *testing.T) {

	as := NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	target := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return echoActor{} }))
	got := make(chan any, 1)
	as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return &pipeActor{target: target, got: got} }))

	select {
	case v := <-got:
		assert.Equal(t, "ping!", v)
	case <-time.After(2 * time.Second):
		t.Fatal("no response piped to self")
	}
}

type taskActor struct {
	fn  func() (*int, error)
	got chan any
}

func (a *taskActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		NewBackgroundTask(ctx, a.fn).
			WithTimeout(500 * time.Millisecond).
			Recover(func(err error) int { return -1 }).
			PipeTo(ctx.Self())
	case int:
		a.got <- msg
	}
}

func TestBackgroundTask(t *testing.T) {

	as := NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	run := func(fn func() (*int, error)) any {
		got := make(chan any, 1)
		as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return &taskActor{fn: fn, got: got} }))
		select {
		case v := <-got:
			return v
		case <-time.After(2 * time.Second):
			return nil
		}
	}

	assert.Equal(t, 42, run(func() (*int, error) {
		v := 42
		return &v, nil
	}))
	assert.Equal(t, -1, run(func() (*int, error) {
		return nil, assert.AnError
	}), "errors are recovered")
}
