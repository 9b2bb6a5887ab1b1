// Package httpapi provides the HTTP API for flowd: flow submission,
// record and status lookups, and an SSE stream of stage events.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/flowd/internal/controller"
	"github.com/fyrsmithlabs/flowd/internal/events"
	"github.com/fyrsmithlabs/flowd/internal/flow"
)

// Config holds HTTP server settings.
type Config struct {
	Host string
	Port int
}

// Server exposes the flow controller over HTTP.
type Server struct {
	echo       *echo.Echo
	controller *controller.Controller
	nats       *nats.Conn
	logger     *zap.Logger
	config     *Config
}

// NewServer creates the HTTP server. The NATS connection may be nil,
// in which case the SSE endpoint reports the stream as unavailable.
func NewServer(ctrl *controller.Controller, nc *nats.Conn, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9293}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:       e,
		controller: ctrl,
		nats:       nc,
		logger:     logger,
		config:     cfg,
	}
	s.registerRoutes()

	return s, nil
}

// Echo exposes the underlying router so the daemon can attach extra
// handlers (the prometheus metrics endpoint).
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/flows", s.handleSubmit)
	v1.GET("/flows/:id", s.handleGet)
	v1.GET("/flows/:id/status", s.handleStatus)
	v1.GET("/flows/:id/events", s.handleEvents)
}

// SubmitRequest is the body for POST /api/v1/flows.
type SubmitRequest struct {
	TaskType     string   `json:"task_type"`
	Requirements []string `json:"requirements"`
	Priority     string   `json:"priority"`
}

// SubmitResponse is the body returned on a successful submission.
type SubmitResponse struct {
	FlowID string `json:"flow_id"`
	Status string `json:"status"`
}

// StatusResponse is the body for GET /api/v1/flows/:id/status.
type StatusResponse struct {
	FlowID string `json:"flow_id"`
	Status string `json:"status"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid submit request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TaskType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "task_type field is required")
	}

	flowID, err := s.controller.Submit(c.Request().Context(), controller.SubmitRequest{
		TaskType:     req.TaskType,
		Requirements: req.Requirements,
		Priority:     flow.Priority(req.Priority),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusAccepted, SubmitResponse{
		FlowID: flowID,
		Status: string(flow.FlowRunning),
	})
}

func (s *Server) handleGet(c echo.Context) error {
	record, err := s.controller.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, flow.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "flow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "flow lookup failed")
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleStatus(c echo.Context) error {
	flowID := c.Param("id")
	status, err := s.controller.Status(c.Request().Context(), flowID)
	if err != nil {
		if errors.Is(err, flow.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "flow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "status lookup failed")
	}
	return c.JSON(http.StatusOK, StatusResponse{FlowID: flowID, Status: status})
}

// handleEvents streams a flow's stage events via Server-Sent Events.
//
// The handler subscribes to the flow's NATS subjects and relays each
// stage transition as an SSE event named after the stage status. The
// stream closes when the flow reaches a terminal stage event or the
// client disconnects.
func (s *Server) handleEvents(c echo.Context) error {
	flowID := c.Param("id")
	record, err := s.controller.Get(c.Request().Context(), flowID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "flow not found")
	}

	// A terminal flow will never publish again; replay its final state
	// and close instead of subscribing to a silent subject.
	if record.Terminal() {
		data, err := json.Marshal(map[string]string{
			"flow_id": record.FlowID,
			"status":  string(record.Status),
		})
		if err != nil {
			return err
		}
		writeSSEHeaders(c)
		fmt.Fprintf(c.Response(), "event: %s\n", record.Status)
		fmt.Fprintf(c.Response(), "data: %s\n\n", data)
		c.Response().Flush()
		return nil
	}

	if s.nats == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event stream not configured")
	}

	writeSSEHeaders(c)

	msgChan := make(chan *nats.Msg, 16)
	sub, err := s.nats.ChanSubscribe(events.FlowSubject(flowID), msgChan)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	// Heartbeats keep proxies from timing the stream out.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgChan:
			stage, status := subjectTokens(msg.Subject)

			fmt.Fprintf(c.Response(), "event: %s\n", status)
			fmt.Fprintf(c.Response(), "data: %s\n\n", string(msg.Data))
			c.Response().Flush()

			// The automation stage is last, so its terminal transition
			// ends the stream.
			if stage == string(flow.StageAutomation) && status != string(flow.StatusRunning) {
				return nil
			}

		case <-ticker.C:
			fmt.Fprintf(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func writeSSEHeaders(c echo.Context) {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
}

// subjectTokens extracts the stage and status tokens from a stage
// event subject of the form flows.<flow_id>.<stage>.<status>.
func subjectTokens(subject string) (stage, status string) {
	parts := strings.Split(subject, ".")
	if len(parts) < 4 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
