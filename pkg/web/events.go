package web

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-callassist/pkg/hub"
	"github.com/teslashibe/go-callassist/pkg/session"
	"github.com/teslashibe/go-callassist/pkg/transcript"
)

// Event types on /ws/events.
const (
	EventSnapshot  = "snapshot"
	EventState     = "state"
	EventUtterance = "utterance"
	EventNotice    = "notice"
	EventTick      = "tick"
	EventComplete  = "complete"
)

// StateChange is the payload of a state event.
type StateChange struct {
	From session.State `json:"from"`
	To   session.State `json:"to"`
}

// Tick is the payload of a tick event.
type Tick struct {
	ElapsedMs int64  `json:"elapsedMs"`
	Elapsed   string `json:"elapsed"`
}

// Hooks returns engine hooks that publish every callback on h.
func Hooks(h *hub.Hub, logger *slog.Logger) session.Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	publish := func(eventType, sessionID string, payload any) {
		ev, err := hub.NewEvent(eventType, sessionID, payload)
		if err == nil {
			err = h.Publish(ev)
		}
		if err != nil {
			logger.Warn("publish event failed", "type", eventType, "error", err)
		}
	}

	return session.Hooks{
		OnStateChange: func(id string, from, to session.State) {
			publish(EventState, id, StateChange{From: from, To: to})
		},
		OnUtterance: func(id string, u transcript.Utterance) {
			publish(EventUtterance, id, u)
		},
		OnNotice: func(n session.Notice) {
			publish(EventNotice, n.SessionID, n)
		},
		OnTick: func(id string, elapsed time.Duration) {
			publish(EventTick, id, Tick{
				ElapsedMs: elapsed.Milliseconds(),
				Elapsed:   elapsed.Truncate(time.Second).String(),
			})
		},
		OnComplete: func(o *session.Outcome) {
			publish(EventComplete, o.SessionID, o)
		},
	}
}
