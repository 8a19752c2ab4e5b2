package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/mppt2mqtt/internal/adapter/actor"
	"github.com/berfenger/mppt2mqtt/internal/config"
	"github.com/berfenger/mppt2mqtt/internal/core/actor"
	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/core/service"
	"github.com/berfenger/mppt2mqtt/internal/server"
	"github.com/berfenger/mppt2mqtt/internal/util/actorutil"
	"github.com/berfenger/mppt2mqtt/pkg/chargerio"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// the server has 5 seconds to finish in-flight requests
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("starting mppt2mqtt", zap.String("version", versioninfo.Short()), zap.String("io", cfg.IO.Driver))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	chargerProv, err := chargerActorProvider(cfg, logger)
	if err != nil {
		slog.Error("charger setup", "error", err)
		os.Exit(1)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, chargerProv, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	done := make(chan bool, 1)

	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")

	// stopping the master halts the stage and closes the bridge
	ctx.StopFuture(pid).Wait()
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => MPPT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("MPPT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("mppt")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// createIO builds the bridge selected by io.driver. The simulation uses the
// same scales as the charger so its codes decode to its own operating point.
func createIO(cfg *config.Config, logger *zap.Logger) (chargerio.IO, error) {
	switch cfg.IO.Driver {
	case config.IO_DRIVER_MODBUS:
		mb := cfg.IO.Modbus
		return chargerio.CreateModbusIO(chargerio.ModbusConfig{
			URL:     mb.URL,
			UnitId:  mb.UnitId,
			Timeout: time.Duration(mb.TimeoutMillis) * time.Millisecond,
			AdcBase: mb.AdcBaseRegister,
			PwmBase: mb.PwmBaseRegister,
		}, logger, nil)
	case config.IO_DRIVER_SERIAL:
		sr := cfg.IO.Serial
		return chargerio.CreateSerialIO(chargerio.SerialConfig{
			Port:     sr.Port,
			BaudRate: sr.BaudRate,
			Timeout:  time.Duration(sr.TimeoutMillis) * time.Millisecond,
		}, logger, nil), nil
	default:
		chargerCfg, adc, err := service.ChargerConfigFromSettings(cfg.Charger)
		if err != nil {
			return nil, err
		}
		sim := chargerio.DefaultSimConfig()
		sim.PanelVocMilliVolts = cfg.IO.Sim.PanelVocMV
		sim.PanelIscMilliAmps = cfg.IO.Sim.PanelIscMA
		sim.BatteryMilliVolts = cfg.IO.Sim.BatteryMV
		sim.BatteryInternalMilliOhms = cfg.IO.Sim.BatteryInternalMOhm
		sim.SolarVoltsPin = chargerCfg.SolarVolts.Pin
		sim.SolarAmpsPin = chargerCfg.SolarAmps.Pin
		sim.BatteryVoltsPin = chargerCfg.BatteryVolts.Pin
		sim.ControlPin = chargerCfg.ControlPin
		sim.SolarVoltsScale = chargerCfg.SolarVolts.Scale
		sim.SolarAmpsScale = chargerCfg.SolarAmps.Scale
		sim.BatteryVoltsScale = chargerCfg.BatteryVolts.Scale
		sim.CurrentOffset = chargerCfg.SolarAmps.Offset
		sim.MaxCode = uint16(adc.MaxCode)
		sim.ActiveHigh = chargerCfg.Polarity == domain.PolarityActiveHigh
		return chargerio.NewSimulatedStage(sim), nil
	}
}

func chargerActorProvider(cfg *config.Config, logger *zap.Logger) (actor.ChargerActorProvider, error) {
	io, err := createIO(cfg, logger)
	if err != nil {
		return nil, err
	}
	charger, err := service.NewChargerFromSettings(cfg, io, io, chargerio.NewSystemClock(), logger)
	if err != nil {
		return nil, err
	}
	return func(es *eventstream.EventStream) *actor.ChargerActor {
		return actor.NewChargerActor(cfg, io, charger, es, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)

	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "mppt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")

	viper.SetDefault("charger.solar_volts.pin", 0)
	viper.SetDefault("charger.solar_volts.rhi", 390)
	viper.SetDefault("charger.solar_volts.rlo", 10)
	viper.SetDefault("charger.solar_current.pin", 1)
	viper.SetDefault("charger.solar_current.rhi", 100)
	viper.SetDefault("charger.solar_current.rlo", 3.3)
	viper.SetDefault("charger.solar_current.rshunt", 0.004)
	viper.SetDefault("charger.solar_current.offset", 80)
	viper.SetDefault("charger.battery_volts.pin", 2)
	viper.SetDefault("charger.battery_volts.rhi", 150)
	viper.SetDefault("charger.battery_volts.rlo", 10)
	viper.SetDefault("charger.control_pin", 9)
	viper.SetDefault("charger.polarity", "active_low")
	viper.SetDefault("charger.adc_reference_mv", 1000)
	viper.SetDefault("charger.adc_max_code", 1023)

	viper.SetDefault("control.mode", "mppt")
	viper.SetDefault("control.cv_target_mv", 13800)
	viper.SetDefault("control.cc_voltage_target_mv", 14400)
	viper.SetDefault("control.cc_current_target_ma", 2000)
	viper.SetDefault("control.poll_interval_millis", 10)
	viper.SetDefault("control.control_period_millis", 100)
	viper.SetDefault("control.off_period_millis", 500)
	viper.SetDefault("control.publish_interval_millis", 1000)

	viper.SetDefault("io.driver", config.IO_DRIVER_SIM)
	viper.SetDefault("io.modbus.unit_id", 1)
	viper.SetDefault("io.modbus.timeout_millis", 1000)
	viper.SetDefault("io.modbus.adc_base_register", 0)
	viper.SetDefault("io.modbus.pwm_base_register", 0)
	viper.SetDefault("io.serial.baud_rate", 115200)
	viper.SetDefault("io.serial.timeout_millis", 500)
	viper.SetDefault("io.sim.panel_voc_mv", 21600)
	viper.SetDefault("io.sim.panel_isc_ma", 5000)
	viper.SetDefault("io.sim.battery_mv", 12600)
	viper.SetDefault("io.sim.battery_internal_mohm", 100)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
