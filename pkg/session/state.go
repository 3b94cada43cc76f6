package session

// State is the lifecycle position of the engine.
type State int

const (
	StateIdle State = iota
	StateDialing
	StateConnecting
	StateActive
	StateSummarizing
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialing:
		return "dialing"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateSummarizing:
		return "summarizing"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Live reports whether a session owns resources in this state.
func (s State) Live() bool {
	switch s {
	case StateDialing, StateConnecting, StateActive, StateSummarizing, StateError:
		return true
	}
	return false
}

// transitions lists the legal moves out of each state. Hanging up while
// dialing or connecting goes straight to Complete.
var transitions = map[State][]State{
	StateIdle:        {StateDialing},
	StateDialing:     {StateConnecting, StateError, StateComplete},
	StateConnecting:  {StateActive, StateError, StateComplete},
	StateActive:      {StateSummarizing, StateComplete, StateError},
	StateSummarizing: {StateComplete},
	StateComplete:    {StateIdle},
	StateError:       {StateIdle},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
