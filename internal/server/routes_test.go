package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"
	"github.com/berfenger/mppt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chargerStub answers the charger requests the way the master does after
// forwarding them.
type chargerStub struct {
	mode    domain.Mode
	targets domain.ControlTargets
	healthy bool
}

func (s *chargerStub) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: s.healthy, State: s.mode.String()})
	case domain.ChargerGetSnapshotRequest:
		ctx.Respond(domain.ChargerGetSnapshotResponse{
			Snapshot: domain.ChargerSnapshot{
				Measurement: domain.Measurement{SolarMilliVolts: 18000, SolarMilliAmps: 2500, BatteryMilliVolts: 12000},
				Duty:        140,
				Mode:        s.mode,
			},
			Targets: s.targets,
		})
	case domain.ChargerSetModeRequest:
		changed := s.mode != msg.Mode
		s.mode = msg.Mode
		ctx.Respond(domain.ChargerSetModeResponse{Changed: changed, Mode: s.mode})
	case domain.ChargerSetTargetsRequest:
		if msg.VoltageMilliVolts != nil {
			s.targets.VoltageMilliVolts = *msg.VoltageMilliVolts
		}
		if msg.CCVoltageMilliVolts != nil {
			s.targets.CCVoltageMilliVolts = *msg.CCVoltageMilliVolts
		}
		if msg.CCCurrentMilliAmps != nil {
			s.targets.CCCurrentMilliAmps = *msg.CCCurrentMilliAmps
		}
		ctx.Respond(domain.ChargerSetTargetsResponse{Targets: s.targets})
	}
}

func newTestServer(t *testing.T, healthy bool) (*Server, func()) {
	t.Helper()
	as := actorutil.NewActorSystemWithZapLogger(zap.NewNop())
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &chargerStub{
			mode:    domain.ModeMPPT,
			targets: domain.ControlTargets{VoltageMilliVolts: 13800, CCVoltageMilliVolts: 14400, CCCurrentMilliAmps: 2000},
			healthy: healthy,
		}
	}))
	s := &Server{rootContext: as.Root, masterActor: pid}
	return s, as.Shutdown
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheckHandler(t *testing.T) {
	s, stop := newTestServer(t, true)
	defer stop()
	rec := do(t, s.RegisterRoutes(), http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	s, stop2 := newTestServer(t, false)
	defer stop2()
	rec = do(t, s.RegisterRoutes(), http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSnapshotHandler(t *testing.T) {
	s, stop := newTestServer(t, true)
	defer stop()

	rec := do(t, s.RegisterRoutes(), http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "mppt", body["mode"])
	assert.EqualValues(t, 18000, body["solar_mV"])
	assert.EqualValues(t, 45000, body["solar_mW"])
	assert.EqualValues(t, 140, body["duty"])
	targets := body["targets"].(map[string]any)
	assert.EqualValues(t, 13800, targets["cv_target_mV"])
}

func TestSetModeHandler(t *testing.T) {
	s, stop := newTestServer(t, true)
	defer stop()
	h := s.RegisterRoutes()

	rec := do(t, h, http.MethodPut, "/api/mode", `{"mode":"cv"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mode":"cv","changed":true}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/mode", `{"mode":"cv"}`)
	assert.JSONEq(t, `{"mode":"cv","changed":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/mode", `{"mode":"boost"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetTargetsHandler(t *testing.T) {
	s, stop := newTestServer(t, true)
	defer stop()

	rec := do(t, s.RegisterRoutes(), http.MethodPut, "/api/targets", `{"cc_current_target_mA":1500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cv_target_mV":13800,"cc_voltage_target_mV":14400,"cc_current_target_mA":1500}`, rec.Body.String())
}
