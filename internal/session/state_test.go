package session

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateInitializing, StateQRPending, true},
		{StateInitializing, StateCodePending, true},
		{StateInitializing, StateAuthenticating, true},
		{StateInitializing, StateReady, false},
		{StateQRPending, StateCodePending, true},
		{StateCodePending, StateQRPending, true},
		{StateQRPending, StateAuthenticating, true},
		{StateAuthenticating, StateReady, true},
		{StateReady, StateDisconnected, true},
		{StateReady, StateAuthenticating, false},
		{StateDisconnected, StateInitializing, true},
		{StateDisconnected, StateReady, false},
		{StateReady, StateReady, false},
		{StateError, StateInitializing, false},
		{StateDestroyed, StateInitializing, false},
		// Error is reachable from any non-terminal state.
		{StateReady, StateError, true},
		{StateQRPending, StateError, true},
		{StateError, StateError, false},
		{StateDestroyed, StateError, false},
		// Destroyed is reachable from anything but itself.
		{StateError, StateDestroyed, true},
		{StateReady, StateDestroyed, true},
		{StateDestroyed, StateDestroyed, false},
	}

	for _, tc := range cases {
		if got := ValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []State{StateError, StateDestroyed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateInitializing, StateQRPending, StateCodePending, StateAuthenticating, StateReady, StateDisconnected} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
