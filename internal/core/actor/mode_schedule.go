package actor

import (
	"context"
	"fmt"

	"github.com/berfenger/mppt2mqtt/internal/config"
	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// ModeScheduleActor switches the charger mode on cron triggers, e.g. Off at
// dusk and MPPT at dawn.
type ModeScheduleActor struct {
	entries      []config.ModeScheduleEntry
	chargerActor *actor.PID
	scheduler    quartz.Scheduler
	cancel       context.CancelFunc

	logger *zap.Logger
}

func NewModeScheduleActor(entries []config.ModeScheduleEntry, chargerActor *actor.PID, logger *zap.Logger) *ModeScheduleActor {
	return &ModeScheduleActor{
		entries:      entries,
		chargerActor: chargerActor,
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_MODE_SCHEDULE, logger),
	}
}

func (state *ModeScheduleActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mode_schedule@started", zap.Int("entries", len(state.entries)))
		if err := state.start(ctx); err != nil {
			state.logger.Error("mode_schedule@started could not schedule", zap.Error(err))
			panic(err)
		}
	case domain.ActorHealthRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODE_SCHEDULE,
			Healthy: state.scheduler != nil && state.scheduler.IsStarted(),
			State:   fmt.Sprintf("%d jobs", len(state.entries)),
		})
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	}
}

func (state *ModeScheduleActor) start(ctx actor.Context) error {
	sched := quartz.NewStdScheduler()
	root := ctx.ActorSystem().Root
	target := state.chargerActor
	logger := state.logger

	for i, entry := range state.entries {
		mode, err := domain.ParseMode(entry.Mode)
		if err != nil {
			return fmt.Errorf("schedule[%d]: %w", i, err)
		}
		trigger, err := quartz.NewCronTrigger(entry.Cron)
		if err != nil {
			return fmt.Errorf("schedule[%d]: %w", i, err)
		}
		// quartz runs jobs on its own goroutines, so go through the root context
		modeJob := job.NewFunctionJob(func(_ context.Context) (domain.Mode, error) {
			logger.Info("mode_schedule: trigger", zap.String("mode", mode.String()))
			root.Send(target, domain.ChargerSetModeRequest{Mode: mode})
			return mode, nil
		})
		key := quartz.NewJobKey(fmt.Sprintf("mode_%d_%s", i, mode))
		if err := sched.ScheduleJob(quartz.NewJobDetail(modeJob, key), trigger); err != nil {
			return fmt.Errorf("schedule[%d]: %w", i, err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sched.Start(runCtx)
	state.scheduler = sched
	state.cancel = cancel
	return nil
}

func (state *ModeScheduleActor) stop() {
	if state.scheduler != nil {
		state.scheduler.Stop()
		state.scheduler = nil
	}
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
}
