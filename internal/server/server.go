package server

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openscience/digest/internal/digest"
	"github.com/openscience/digest/internal/trigger"
)

// Server exposes the operational surface of the standing process: health,
// metrics, and a manual run endpoint that bypasses the schedule check.
type Server struct {
	echo    *echo.Echo
	runner  *digest.Runner
	trigger *trigger.Trigger
	logger  *log.Logger
}

// New builds the ops server. The trigger is shared with the scheduler loop so
// manual and scheduled runs can never overlap.
func New(runner *digest.Runner, trig *trigger.Trigger, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[SERVER] ", log.LstdFlags)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, runner: runner, trigger: trig, logger: logger}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/run", s.runNow)

	return s
}

// Start blocks serving on addr.
func (s *Server) Start(addr string) error {
	s.logger.Printf("ops server listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.echo.Close()
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// runNow triggers an immediate pipeline run. 409 when a run is in flight.
func (s *Server) runNow(c echo.Context) error {
	if !s.trigger.TryAcquire() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "a run is already in progress"})
	}
	defer s.trigger.Release()

	now := time.Now()
	artifact, err := s.runner.Run(c.Request().Context(), now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	s.trigger.MarkFired(now)
	return c.JSON(http.StatusCreated, map[string]string{
		"kind":     artifact.Kind,
		"location": artifact.Location,
	})
}
