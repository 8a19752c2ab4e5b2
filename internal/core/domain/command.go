package domain

import "fmt"

// ChargerControlRequest

type ChargerControlRequest interface {
	ActorRequest
	ChargerControlCommand() string
}

type ChargerControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ChargerControlRequestMixIn) ChargerControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// ChargerControl commands

type ChargerSetModeRequest struct {
	ChargerControlRequestMixIn
	Mode Mode
}

type ChargerSetModeResponse struct {
	ActorResponseMixIn
	Changed bool
	Mode    Mode
}

// ChargerSetTargetsRequest is a partial update. Nil means "leave as-is".
type ChargerSetTargetsRequest struct {
	ChargerControlRequestMixIn
	VoltageMilliVolts   *uint32
	CCVoltageMilliVolts *uint32
	CCCurrentMilliAmps  *uint32
}

type ChargerSetTargetsResponse struct {
	ActorResponseMixIn
	Targets ControlTargets
}

type ChargerGetSnapshotRequest struct {
	ChargerControlRequestMixIn
}

type ChargerGetSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot ChargerSnapshot
	Targets  ControlTargets
}

// ensure interface compliance
var _ ChargerControlRequest = (*ChargerSetModeRequest)(nil)
var _ ChargerControlRequest = (*ChargerSetTargetsRequest)(nil)
var _ ChargerControlRequest = (*ChargerGetSnapshotRequest)(nil)
