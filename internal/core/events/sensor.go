package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/berfenger/mppt2mqtt/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE            = "bridge"
	SENSOR_ID_SOLAR_VOLTAGE           = "solar_voltage"
	SENSOR_ID_SOLAR_CURRENT           = "solar_current"
	SENSOR_ID_SOLAR_POWER             = "solar_power"
	SENSOR_ID_BATTERY_VOLTAGE         = "battery_voltage"
	SENSOR_ID_BATTERY_CURRENT         = "battery_current"
	SENSOR_ID_DUTY                    = "duty"
	SELECT_ID_CHARGER_MODE            = "charger_mode"
	INPUT_NUMBER_ID_CV_TARGET_VOLTAGE = "cv_target_voltage"
	INPUT_NUMBER_ID_CC_TARGET_VOLTAGE = "cc_target_voltage"
	INPUT_NUMBER_ID_CC_TARGET_CURRENT = "cc_target_current"
	STATE_CLASS_MEASUREMENT           = "measurement"
	DEVICE_CLASS_CURRENT              = "current"
	DEVICE_CLASS_POWER                = "power"
	DEVICE_CLASS_VOLTAGE              = "voltage"
	DEVICE_CLASS_CONNECTIVITY         = "connectivity"
	DEVICE_CLASS_ENUM                 = "enum"
	ENTITY_CLASS_DIAGNOSTIC           = "diagnostic"
	ENTITY_CLASS_CONFIG               = "config"
	SENSOR_TYPE_SENSOR                = "sensor"
	SENSOR_TYPE_BINARY                = "binary_sensor"
	INPUT_NUMBER_MODE_BOX             = "box"
	INPUT_NUMBER_MODE_SLIDER          = "slider"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("mppt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "mppt2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("MPPT bridge %s", md5HashShort(baseTopic)),
	}
}

// ChargerDevice describes the controlled power stage, identified by the
// I/O driver that reaches it.
func ChargerDevice(baseTopic, driver string) Device {
	return Device{
		Id:           fmt.Sprintf("mppt_charger_%s", md5HashShort(baseTopic+driver)),
		Manufacturer: "ACasal",
		Model:        fmt.Sprintf("Buck MPPT charger (%s)", driver),
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("MPPT charger %s", md5HashShort(baseTopic+driver)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func ChargerSensors(chargerDevice Device) []GenericSensor {

	var sensors []GenericSensor

	measurement := func(id, name, deviceClass, unit, icon string) GenericSensor {
		return GenericSensor{
			Device:            chargerDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       deviceClass,
			UnitOfMeasurement: unit,
			Icon:              icon,
			UniqueId:          uniqueId(chargerDevice.Id, id),
		}
	}

	sensors = append(sensors, measurement(SENSOR_ID_SOLAR_VOLTAGE, "Solar voltage", DEVICE_CLASS_VOLTAGE, "V", "mdi:solar-panel"))
	sensors = append(sensors, measurement(SENSOR_ID_SOLAR_CURRENT, "Solar current", DEVICE_CLASS_CURRENT, "A", "mdi:solar-panel"))
	sensors = append(sensors, measurement(SENSOR_ID_SOLAR_POWER, "Solar power", DEVICE_CLASS_POWER, "W", "mdi:solar-power"))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_VOLTAGE, "Battery voltage", DEVICE_CLASS_VOLTAGE, "V", "mdi:car-battery"))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_CURRENT, "Battery charge current", DEVICE_CLASS_CURRENT, "A", "mdi:battery-charging"))

	// PWM duty command
	sensors = append(sensors, GenericSensor{
		Device:         chargerDevice,
		Id:             SENSOR_ID_DUTY,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "PWM duty",
		StateClass:     STATE_CLASS_MEASUREMENT,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:sine-wave",
		UniqueId:       uniqueId(chargerDevice.Id, SENSOR_ID_DUTY),
	})

	return sensors
}

func ChargerSelects(chargerDevice Device) []GenericSelect {
	return []GenericSelect{
		{
			Device:   chargerDevice,
			Id:       SELECT_ID_CHARGER_MODE,
			Name:     "Charger mode",
			UniqueId: uniqueId(chargerDevice.Id, SELECT_ID_CHARGER_MODE),
			Icon:     "mdi:solar-power-variant",
			Options:  Modes(),
		},
	}
}

func ChargerInputNumbers(chargerDevice Device, targets ControlTargets) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            chargerDevice,
		Id:                INPUT_NUMBER_ID_CV_TARGET_VOLTAGE,
		Name:              "CV target voltage",
		UniqueId:          uniqueId(chargerDevice.Id, INPUT_NUMBER_ID_CV_TARGET_VOLTAGE),
		Icon:              "mdi:flash-triangle",
		UnitOfMeasurement: "V",
		Max:               40,
		Min:               0,
		Step:              0.05,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      milliToUnit(targets.VoltageMilliVolts),
	})
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            chargerDevice,
		Id:                INPUT_NUMBER_ID_CC_TARGET_VOLTAGE,
		Name:              "CC voltage ceiling",
		UniqueId:          uniqueId(chargerDevice.Id, INPUT_NUMBER_ID_CC_TARGET_VOLTAGE),
		Icon:              "mdi:flash-triangle-outline",
		UnitOfMeasurement: "V",
		Max:               40,
		Min:               0,
		Step:              0.05,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      milliToUnit(targets.CCVoltageMilliVolts),
	})
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            chargerDevice,
		Id:                INPUT_NUMBER_ID_CC_TARGET_CURRENT,
		Name:              "CC target current",
		UniqueId:          uniqueId(chargerDevice.Id, INPUT_NUMBER_ID_CC_TARGET_CURRENT),
		Icon:              "mdi:current-dc",
		UnitOfMeasurement: "A",
		Max:               10,
		Min:               0,
		Step:              0.001,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      milliToUnit(targets.CCCurrentMilliAmps),
	})

	return inputNumbers
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func milliToUnit(v uint32) float64 {
	return float64(v) / 1000
}
