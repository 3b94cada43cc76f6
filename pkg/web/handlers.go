package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-callassist/pkg/hub"
	"github.com/teslashibe/go-callassist/pkg/persona"
	"github.com/teslashibe/go-callassist/pkg/session"
)

// StartRequest is the optional body of POST /api/session/start. An empty
// body starts the configured persona.
type StartRequest struct {
	Persona string                `json:"persona"`
	Client  persona.ClientContext `json:"client"`
}

// MuteRequest is the body of POST /api/session/mute.
type MuteRequest struct {
	Muted *bool `json:"muted"`
}

// handleError renders every handler error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, session.ErrSessionActive), errors.Is(err, session.ErrNoSession):
		code = fiber.StatusConflict
	case errors.Is(err, session.ErrEngineClosed):
		code = fiber.StatusServiceUnavailable
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.engine.Snapshot())
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	utts := s.engine.Transcript()
	if utts == nil {
		return c.JSON([]any{})
	}
	return c.JSON(utts)
}

func (s *Server) handleOutcome(c *fiber.Ctx) error {
	o := s.engine.LastOutcome()
	if o == nil {
		return fiber.NewError(fiber.StatusNotFound, "no completed session")
	}
	return c.JSON(o)
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	var (
		id  string
		err error
	)
	if len(c.Body()) == 0 {
		id, err = s.engine.Start(c.UserContext())
	} else {
		var req StartRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		kind, perr := persona.ParseKind(req.Persona)
		if perr != nil {
			return fiber.NewError(fiber.StatusBadRequest, perr.Error())
		}
		p, perr := persona.ForKind(kind, req.Client)
		if perr != nil {
			return fiber.NewError(fiber.StatusBadRequest, perr.Error())
		}
		id, err = s.engine.StartWith(c.UserContext(), p)
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sessionId": id})
}

func (s *Server) handleEnd(c *fiber.Ctx) error {
	o, err := s.engine.EndSession(c.UserContext(), c.QueryBool("summarize", true))
	if err != nil {
		return err
	}
	return c.JSON(o)
}

func (s *Server) handleInterrupt(c *fiber.Ctx) error {
	n, err := s.engine.Interrupt()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"stopped": n})
}

func (s *Server) handleMute(c *fiber.Ctx) error {
	var req MuteRequest
	if err := c.BodyParser(&req); err != nil || req.Muted == nil {
		return fiber.NewError(fiber.StatusBadRequest, `body must be {"muted": true|false}`)
	}
	if err := s.engine.SetMuted(*req.Muted); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"muted": *req.Muted})
}

// handleEventsWS sends the current snapshot, then streams hub events until
// the client disconnects.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	snap := s.engine.Snapshot()
	ev, err := hub.NewEvent(EventSnapshot, snap.SessionID, snap)
	if err == nil {
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Debug("snapshot write failed", "error", err)
			return
		}
	}
	hub.NewClient(s.events, conn).Run()
}
