package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/teslashibe/go-assistant/pkg/camera"
	"github.com/teslashibe/go-assistant/pkg/export"
	"github.com/teslashibe/go-assistant/pkg/session"
	"github.com/teslashibe/go-assistant/pkg/tools"
	"github.com/teslashibe/go-assistant/pkg/turn"
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Session         session.Status `json:"session"`
	Camera          *camera.Status `json:"camera,omitempty"`
	GoogleConnected bool           `json:"google_connected"`
	Clients         map[string]int `json:"clients"`
}

func (s *Server) status() StatusResponse {
	resp := StatusResponse{
		Session: s.deps.Session.Status(),
		Clients: s.Clients(),
	}
	if s.deps.Preview != nil {
		st := s.deps.Preview.Status()
		resp.Camera = &st
	}
	if s.deps.Google != nil {
		resp.GoogleConnected = s.deps.Google.Connected()
	}
	return resp
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// HistoryResponse is returned by GET /api/history.
type HistoryResponse struct {
	SessionID string       `json:"session_id"`
	Active    bool         `json:"session_active"`
	Entries   []turn.Entry `json:"entries"`
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	entries := s.deps.Session.History()
	if entries == nil {
		entries = []turn.Entry{}
	}
	return c.JSON(HistoryResponse{
		SessionID: s.deps.Session.ID(),
		Active:    s.deps.Session.Active(),
		Entries:   entries,
	})
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	s.deps.Session.Clear()
	return c.JSON(s.deps.Session.Status())
}

func (s *Server) handleRestart(c *fiber.Ctx) error {
	s.deps.Session.Restart()
	return c.JSON(s.deps.Session.Status())
}

func (s *Server) handleToggleTools(c *fiber.Ctx) error {
	enabled := s.deps.Session.ToggleTools()
	return c.JSON(fiber.Map{"tools_enabled": enabled})
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	if s.deps.Tools == nil {
		return c.JSON([]tools.Tool{})
	}
	return c.JSON(s.deps.Tools.Descriptions())
}

// InvokeToolRequest is the body of POST /api/tools/:name.
type InvokeToolRequest struct {
	Args map[string]any `json:"args"`
}

func (s *Server) handleInvokeTool(c *fiber.Ctx) error {
	name := c.Params("name")

	var req InvokeToolRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid tool arguments")
		}
	}

	args := make(tools.Args, len(req.Args))
	for k, v := range req.Args {
		args[k] = fmt.Sprint(v)
	}

	result := s.deps.Session.InvokeTool(c.UserContext(), name, args)
	return c.JSON(fiber.Map{
		"tool":   name,
		"result": result,
	})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	loc, err := s.deps.Session.Export(c.UserContext())
	if err != nil {
		return fiber.NewError(exportStatus(err), err.Error())
	}
	return c.JSON(fiber.Map{"location": loc})
}

func exportStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNoExporter):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, export.ErrNotConnected):
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// MetricsResponse is returned by GET /api/metrics.
type MetricsResponse struct {
	Turns          int              `json:"turns"`
	Failures       int              `json:"failures"`
	Faults         int              `json:"faults"`
	AverageMs      map[string]int64 `json:"average_ms"`
	AverageTotalMs int64            `json:"average_total_ms"`
	Last           string           `json:"last,omitempty"`
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	if s.deps.Metrics == nil {
		return fiber.NewError(fiber.StatusNotFound, "metrics are not enabled")
	}
	sum := s.deps.Metrics.Summary()
	resp := MetricsResponse{
		Turns:          sum.Turns,
		Failures:       sum.Failures,
		Faults:         sum.Faults,
		AverageMs:      make(map[string]int64, len(sum.Average)),
		AverageTotalMs: sum.Total.Milliseconds(),
	}
	for stage, d := range sum.Average {
		resp.AverageMs[string(stage)] = d.Milliseconds()
	}
	if sum.Last != nil {
		resp.Last = sum.Last.FormatLatency()
	}
	return c.JSON(resp)
}

func (s *Server) handleGetCameraConfig(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return fiber.NewError(fiber.StatusNotFound, "camera is disabled")
	}
	return c.JSON(s.deps.Camera.GetConfig())
}

func (s *Server) handleSetCameraConfig(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return fiber.NewError(fiber.StatusNotFound, "camera is disabled")
	}
	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid camera config")
	}
	if err := s.deps.Camera.UpdateConfig(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.deps.Camera.GetConfig())
}

func (s *Server) handlePreviewStatus(c *fiber.Ctx) error {
	if s.deps.Preview == nil {
		return fiber.NewError(fiber.StatusNotFound, "camera is disabled")
	}
	return c.JSON(s.deps.Preview.Status())
}

func (s *Server) handlePreviewStart(c *fiber.Ctx) error {
	if s.deps.Preview == nil {
		return fiber.NewError(fiber.StatusNotFound, "camera is disabled")
	}
	if err := s.deps.Preview.Start(s.baseCtx); err != nil && !errors.Is(err, camera.ErrPreviewRunning) {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(s.deps.Preview.Status())
}

func (s *Server) handlePreviewStop(c *fiber.Ctx) error {
	if s.deps.Preview == nil {
		return fiber.NewError(fiber.StatusNotFound, "camera is disabled")
	}
	s.deps.Preview.Stop()
	return c.JSON(s.deps.Preview.Status())
}

func (s *Server) handleGoogleAuth(c *fiber.Ctx) error {
	if s.deps.Google == nil {
		return fiber.NewError(fiber.StatusNotFound, "Google Docs export is not configured")
	}
	state, err := gonanoid.New(24)
	if err != nil {
		return err
	}
	s.stateMu.Lock()
	s.oauthState = state
	s.stateMu.Unlock()
	return c.Redirect(s.deps.Google.AuthURL(state), fiber.StatusTemporaryRedirect)
}

func (s *Server) handleGoogleCallback(c *fiber.Ctx) error {
	if s.deps.Google == nil {
		return fiber.NewError(fiber.StatusNotFound, "Google Docs export is not configured")
	}
	if e := c.Query("error"); e != "" {
		return fiber.NewError(fiber.StatusBadRequest, "authorization denied: "+e)
	}

	s.stateMu.Lock()
	want := s.oauthState
	s.oauthState = ""
	s.stateMu.Unlock()
	if want == "" || c.Query("state") != want {
		return fiber.NewError(fiber.StatusBadRequest, "invalid OAuth state")
	}

	code := c.Query("code")
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing authorization code")
	}
	if err := s.deps.Google.Exchange(c.UserContext(), code); err != nil {
		s.logger.Error("google authorization failed", "error", err)
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	s.logger.Info("google docs connected")
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) handleGoogleStatus(c *fiber.Ctx) error {
	connected := s.deps.Google != nil && s.deps.Google.Connected()
	return c.JSON(fiber.Map{
		"configured": s.deps.Google != nil,
		"connected":  connected,
	})
}

func (s *Server) handleGoogleDisconnect(c *fiber.Ctx) error {
	if s.deps.Google == nil {
		return fiber.NewError(fiber.StatusNotFound, "Google Docs export is not configured")
	}
	if err := s.deps.Google.Disconnect(); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"connected": false})
}
