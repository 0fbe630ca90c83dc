package camera

import (
	"errors"
	"testing"
)

func TestSession_HappyPath(t *testing.T) {
	var s Session
	steps := []struct {
		ev   EventKind
		want State
	}{
		{EventOpen, StateOpening},
		{EventOpened, StatePreviewConfiguring},
		{EventConfigured, StatePreviewActive},
		{EventClose, StateClosed},
	}
	for _, st := range steps {
		if _, err := s.Apply(Event{Kind: st.ev, CameraID: "0"}); err != nil {
			t.Fatalf("%s: %v", st.ev, err)
		}
		if s.State != st.want {
			t.Fatalf("after %s state = %s, want %s", st.ev, s.State, st.want)
		}
	}
}

func TestSession_OpenAssignsNewID(t *testing.T) {
	var s Session
	_, _ = s.Apply(Event{Kind: EventOpen, CameraID: "0"})
	first := s.ID
	if first == "" || s.CameraID != "0" {
		t.Fatalf("session = %+v", s)
	}
	_, _ = s.Apply(Event{Kind: EventClose})
	_, _ = s.Apply(Event{Kind: EventOpen, CameraID: "1"})
	if s.ID == first {
		t.Error("reopening should assign a new session id")
	}
	if s.CameraID != "1" {
		t.Errorf("CameraID = %q, want 1", s.CameraID)
	}
}

func TestSession_Transitions(t *testing.T) {
	cases := []struct {
		from    State
		ev      EventKind
		want    State
		wantErr bool
	}{
		{StateClosed, EventOpened, StateClosed, true},
		{StateClosed, EventConfigured, StateClosed, true},
		{StateClosed, EventDisconnected, StateClosed, true},
		{StateClosed, EventClose, StateClosed, false},
		{StateOpening, EventOpen, StateOpening, true},
		{StateOpening, EventError, StateClosed, false},
		{StateOpening, EventDisconnected, StateClosed, false},
		{StateOpening, EventConfigured, StateOpening, true},
		{StatePreviewConfiguring, EventConfigureFailed, StateClosed, false},
		{StatePreviewConfiguring, EventError, StateClosed, false},
		{StatePreviewActive, EventDisconnected, StateClosed, false},
		{StatePreviewActive, EventConfigureFailed, StatePreviewActive, true},
		{StatePreviewActive, EventOpen, StatePreviewActive, true},
	}
	for _, tc := range cases {
		t.Run(tc.from.String()+"_"+tc.ev.String(), func(t *testing.T) {
			s := Session{State: tc.from}
			prev, err := s.Apply(Event{Kind: tc.ev})
			if prev != tc.from {
				t.Errorf("prev = %s, want %s", prev, tc.from)
			}
			if tc.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
			if s.State != tc.want {
				t.Errorf("state = %s, want %s", s.State, tc.want)
			}
		})
	}
}

func TestSession_Active(t *testing.T) {
	s := Session{State: StatePreviewConfiguring}
	if s.Active() {
		t.Error("configuring session should not be active")
	}
	s.State = StatePreviewActive
	if !s.Active() {
		t.Error("preview session should be active")
	}
}
