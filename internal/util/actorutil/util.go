package actorutil

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/events"
	"github.com/berfenger/mppt2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps a command received on a select or number
// topic to the charger request it stands for. Unknown entities yield nil.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch cmd.Command {
	case mqtt.COMMAND_SELECT:
		if cmd.DeviceId != events.SELECT_ID_CHARGER_MODE {
			return nil, nil
		}
		mode, err := domain.ParseMode(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return domain.ChargerSetModeRequest{Mode: mode}, nil
	case mqtt.COMMAND_NUMBER:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		milli, err := unitToMilli(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.DeviceId, err)
		}
		switch cmd.DeviceId {
		case events.INPUT_NUMBER_ID_CV_TARGET_VOLTAGE:
			return domain.ChargerSetTargetsRequest{VoltageMilliVolts: &milli}, nil
		case events.INPUT_NUMBER_ID_CC_TARGET_VOLTAGE:
			return domain.ChargerSetTargetsRequest{CCVoltageMilliVolts: &milli}, nil
		case events.INPUT_NUMBER_ID_CC_TARGET_CURRENT:
			return domain.ChargerSetTargetsRequest{CCCurrentMilliAmps: &milli}, nil
		}
	}
	return nil, nil
}

func unitToMilli(value float64) (uint32, error) {
	if math.IsNaN(value) || value < 0 || value*1000 > math.MaxUint32 {
		return 0, fmt.Errorf("value out of range: %v", value)
	}
	return uint32(math.Round(value * 1000)), nil
}
