package camera

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// State is the lifecycle state of a capture session.
type State int

const (
	StateClosed State = iota
	StateOpening
	StatePreviewConfiguring
	StatePreviewActive
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StatePreviewConfiguring:
		return "preview_configuring"
	case StatePreviewActive:
		return "preview_active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventKind is a message from the device or the controller that drives
// the session state machine.
type EventKind int

const (
	EventOpen EventKind = iota
	EventOpened
	EventConfigured
	EventConfigureFailed
	EventDisconnected
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventOpened:
		return "opened"
	case EventConfigured:
		return "configured"
	case EventConfigureFailed:
		return "configure_failed"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered by a Device on its Events channel.
type Event struct {
	Kind     EventKind
	CameraID string
	Err      error
}

// ErrInvalidTransition is returned when an event does not apply to the
// current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// Session tracks the lifecycle of one camera:
//
//	Closed -> Opening -> PreviewConfiguring -> PreviewActive -> Closed
//
// Errors and disconnects from any open state go back to Closed.
type Session struct {
	ID       string
	CameraID string
	State    State
}

// Active reports whether the session accepts repeating requests.
func (s *Session) Active() bool {
	return s.State == StatePreviewActive
}

// Apply advances the session for ev and returns the previous state.
// Opening a closed session assigns a fresh ID.
func (s *Session) Apply(ev Event) (State, error) {
	prev := s.State
	next, ok := transition(prev, ev.Kind)
	if !ok {
		return prev, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev.Kind, prev)
	}
	if ev.Kind == EventOpen {
		s.ID = uuid.NewString()
		s.CameraID = ev.CameraID
	}
	s.State = next
	return prev, nil
}

func transition(from State, kind EventKind) (State, bool) {
	switch kind {
	case EventOpen:
		return StateOpening, from == StateClosed
	case EventOpened:
		return StatePreviewConfiguring, from == StateOpening
	case EventConfigured:
		return StatePreviewActive, from == StatePreviewConfiguring
	case EventConfigureFailed:
		return StateClosed, from == StatePreviewConfiguring
	case EventDisconnected, EventError:
		return StateClosed, from != StateClosed
	case EventClose:
		return StateClosed, true
	}
	return from, false
}
