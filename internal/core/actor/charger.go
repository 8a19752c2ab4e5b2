package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/mppt2mqtt/internal/config"
	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/events"
	"github.com/berfenger/mppt2mqtt/internal/core/port"
	. "github.com/berfenger/mppt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	IO_OPEN_TIMEOUT = 5 * time.Second
)

// ChargerIO is the hardware side of the charger actor. It owns the lifecycle
// of the bridge that the core reads and writes through.
type ChargerIO interface {
	Open() error
	Close() error
}

type ChargerActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	stash       *Stash
	config      *config.Config
	io          ChargerIO
	charger     port.ChargerControl
	eventStream *eventstream.EventStream
	mode        domain.Mode
	targets     domain.ControlTargets
	cancelPoll  scheduler.CancelFunc
	cancelPub   scheduler.CancelFunc

	logger *zap.Logger
}

type chargerPollTick struct {
}

type chargerPublishTick struct {
}

type ioOpenResult struct {
	Error error
}

func NewChargerActor(config *config.Config, io ChargerIO, charger port.ChargerControl, eventStream *eventstream.EventStream, logger *zap.Logger) *ChargerActor {
	mode, err := domain.ParseMode(config.Control.Mode)
	if err != nil {
		mode = domain.ModeOff
	}
	act := &ChargerActor{
		config:      config,
		io:          io,
		charger:     charger,
		eventStream: eventStream,
		stash:       &Stash{},
		mode:        mode,
		targets: domain.ControlTargets{
			VoltageMilliVolts:   config.Control.CVTargetMV,
			CCVoltageMilliVolts: config.Control.CCVoltageTargetMV,
			CCCurrentMilliAmps:  config.Control.CCCurrentTargetMA,
		},
		logger: ActorLogger(domain.ACTOR_ID_CHARGER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(ChargerStartingState{
		actor: act,
	})
	return act
}

func (state *ChargerActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type ChargerStartingState struct {
	ActorState
	actor *ChargerActor
}

func (state ChargerStartingState) Name() string {
	return "starting"
}

func (state ChargerStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("charger@starting started")

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)

		chargerIO := state.actor.io
		NewBackgroundTask(ctx, func() (*ioOpenResult, error) {
			if err := chargerIO.Open(); err != nil {
				return nil, err
			}
			return &ioOpenResult{}, nil
		}).WithTimeout(IO_OPEN_TIMEOUT).Recover(func(err error) ioOpenResult {
			return ioOpenResult{Error: err}
		}).PipeTo(ctx.Self())
	case ioOpenResult:
		if msg.Error != nil {
			state.actor.logger.Error("charger@starting could not open charger io", zap.Error(msg.Error))
			panic(msg.Error)
		}
		state.actor.logger.Info("charger@starting io ready",
			zap.String("mode", state.actor.mode.String()), zap.Int("stashed", state.actor.stash.Len()))
		state.actor.Become(ChargerRunningState{
			actor: state.actor,
		}.OnEnter(ctx))
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("charger@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type ChargerRunningState struct {
	ActorState
	actor *ChargerActor
}

func (state ChargerRunningState) Name() string {
	return "running"
}

func (state ChargerRunningState) OnEnter(ctx actor.Context) ChargerRunningState {
	cfg := state.actor.config.Control
	poll := time.Duration(cfg.PollIntervalMillis) * time.Millisecond
	state.actor.cancelPoll = state.actor.scheduler.RequestRepeatedly(poll, poll, ctx.Self(), chargerPollTick{})
	state.actor.cancelPub = state.actor.scheduler.RequestRepeatedly(
		time.Duration(cfg.PublishIntervalMillis)*time.Millisecond,
		time.Duration(cfg.PublishIntervalMillis)*time.Millisecond, ctx.Self(), chargerPublishTick{})
	state.actor.publishMode()
	state.actor.publishTargets()
	return state
}

func (state ChargerRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case chargerPollTick:
		state.actor.charger.Run(state.actor.mode, state.actor.targets)
	case chargerPublishTick:
		for _, ev := range events.SnapshotToUpdateEvents(state.actor.charger.Snapshot()) {
			state.actor.eventStream.Publish(ev)
		}
		// subscribers may have joined after the last change
		state.actor.publishMode()
		state.actor.publishTargets()
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("charger@running: ActorHealthRequest")
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CHARGER,
			Healthy: true,
			State:   state.actor.mode.String(),
		})
	case domain.ChargerSetModeRequest:
		if !msg.Mode.Valid() {
			ForRequest(msg).Respond(ctx, domain.ChargerSetModeResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: fmt.Errorf("%w: %s", domain.ErrUnknownMode, msg.Mode),
				},
				Mode: state.actor.mode,
			})
			return
		}
		changed := msg.Mode != state.actor.mode
		if changed {
			state.actor.logger.Info("charger@running: mode change",
				zap.String("from", state.actor.mode.String()), zap.String("to", msg.Mode.String()))
			state.actor.mode = msg.Mode
		}
		state.actor.publishMode()
		ForRequest(msg).Respond(ctx, domain.ChargerSetModeResponse{
			Changed: changed,
			Mode:    state.actor.mode,
		})
	case domain.ChargerSetTargetsRequest:
		state.actor.applyTargets(msg)
		state.actor.logger.Debug("charger@running: targets", zap.Any("targets", state.actor.targets))
		state.actor.publishTargets()
		ForRequest(msg).Respond(ctx, domain.ChargerSetTargetsResponse{
			Targets: state.actor.targets,
		})
	case domain.ChargerGetSnapshotRequest:
		snapshot := state.actor.charger.Snapshot()
		// the core reports the mode it last ran; callers want the selected one
		snapshot.Mode = state.actor.mode
		ForRequest(msg).Respond(ctx, domain.ChargerGetSnapshotResponse{
			Snapshot: snapshot,
			Targets:  state.actor.targets,
		})
	case *actor.Restarting:
		state.actor.stop()
	case *actor.Stopping:
		state.actor.stop()
	default:
		state.actor.logger.Debug("charger@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Other actor function helpers

func (state *ChargerActor) applyTargets(req domain.ChargerSetTargetsRequest) {
	if req.VoltageMilliVolts != nil {
		state.targets.VoltageMilliVolts = *req.VoltageMilliVolts
	}
	if req.CCVoltageMilliVolts != nil {
		state.targets.CCVoltageMilliVolts = *req.CCVoltageMilliVolts
	}
	if req.CCCurrentMilliAmps != nil {
		state.targets.CCCurrentMilliAmps = *req.CCCurrentMilliAmps
	}
}

func (state *ChargerActor) publishMode() {
	state.eventStream.Publish(events.ChargerModeUpdateEvent(state.mode))
}

func (state *ChargerActor) publishTargets() {
	for _, ev := range events.ControlTargetsUpdateEvents(state.targets) {
		state.eventStream.Publish(ev)
	}
}

func (state *ChargerActor) stop() {
	state.logger.Info("charger: stopping", zap.String("state", state.StateName()))
	if state.cancelPoll != nil {
		state.cancelPoll()
		state.cancelPoll = nil
	}
	if state.cancelPub != nil {
		state.cancelPub()
		state.cancelPub = nil
	}
	// leave the stage at minimum output before releasing the bridge
	if err := state.charger.Halt(); err != nil {
		state.logger.Error("charger: could not halt", zap.Error(err))
	}
	if err := state.io.Close(); err != nil {
		state.logger.Error("charger: could not close io", zap.Error(err))
	}
}
