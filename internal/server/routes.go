package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/mppt2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type SnapshotResponse struct {
	domain.ChargerSnapshot
	Mode    string                `json:"mode"`
	Power   uint64                `json:"solar_mW"`
	Targets domain.ControlTargets `json:"targets"`
}

type SetModeBody struct {
	Mode string `json:"mode"`
}

type SetModeResponse struct {
	Mode    string `json:"mode"`
	Changed bool   `json:"changed"`
}

type SetTargetsBody struct {
	VoltageMilliVolts   *uint32 `json:"cv_target_mV"`
	CCVoltageMilliVolts *uint32 `json:"cc_voltage_target_mV"`
	CCCurrentMilliAmps  *uint32 `json:"cc_current_target_mA"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/snapshot", s.SnapshotHandler)
	api.PUT("/mode", s.SetModeHandler)
	api.PUT("/targets", s.SetTargetsHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) SnapshotHandler(c echo.Context) error {
	resp, err := askCharger[domain.ChargerGetSnapshotResponse](s, domain.ChargerGetSnapshotRequest{})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, SnapshotResponse{
		ChargerSnapshot: resp.Snapshot,
		Mode:            resp.Snapshot.ModeName(),
		Power:           resp.Snapshot.SolarPowerMilliWatt(),
		Targets:         resp.Targets,
	})
}

func (s *Server) SetModeHandler(c echo.Context) error {
	var body SetModeBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	mode, err := domain.ParseMode(body.Mode)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	resp, err := askCharger[domain.ChargerSetModeResponse](s, domain.ChargerSetModeRequest{Mode: mode})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, SetModeResponse{Mode: resp.Mode.String(), Changed: resp.Changed})
}

func (s *Server) SetTargetsHandler(c echo.Context) error {
	var body SetTargetsBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	resp, err := askCharger[domain.ChargerSetTargetsResponse](s, domain.ChargerSetTargetsRequest{
		VoltageMilliVolts:   body.VoltageMilliVolts,
		CCVoltageMilliVolts: body.CCVoltageMilliVolts,
		CCCurrentMilliAmps:  body.CCCurrentMilliAmps,
	})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, resp.Targets)
}

// askCharger sends a charger request through the master actor and unwraps
// both transport and response errors.
func askCharger[T domain.ActorResponse](s *Server, req domain.ChargerControlRequest) (T, error) {
	var zero T
	res, err := s.rootContext.RequestFuture(s.masterActor, req, ACTOR_REQUEST_TIMEOUT).Result()
	if err != nil {
		return zero, err
	}
	resp, ok := res.(T)
	if !ok {
		return zero, errors.New("unexpected response")
	}
	if resp.HasResponseError() {
		return zero, resp.GetResponseError()
	}
	return resp, nil
}
