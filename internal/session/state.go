package session

// State is the lifecycle position of one linked-device session.
type State string

const (
	// StateInitializing: socket construction/connect in progress, no
	// pairing artifact yet.
	StateInitializing State = "initializing"
	// StateQRPending: a QR pairing artifact is available for scanning.
	StateQRPending State = "qr_pending"
	// StateCodePending: a phone-linking code is available for entry.
	StateCodePending State = "code_pending"
	// StateAuthenticating: credentials accepted, device handshake running.
	StateAuthenticating State = "authenticating"
	// StateReady: fully connected; messages can be sent.
	StateReady State = "ready"
	// StateDisconnected: transient socket close, reconnect pending.
	StateDisconnected State = "disconnected"
	// StateError: terminal failure. Carries a human-readable reason.
	StateError State = "error"
	// StateDestroyed: explicit teardown; record survives as a tombstone.
	StateDestroyed State = "destroyed"
)

// Terminal reports whether no further transitions can leave this state
// other than teardown.
func (s State) Terminal() bool {
	return s == StateError || s == StateDestroyed
}

var transitions = map[State][]State{
	StateInitializing:   {StateQRPending, StateCodePending, StateAuthenticating, StateDisconnected},
	StateQRPending:      {StateCodePending, StateAuthenticating, StateDisconnected},
	StateCodePending:    {StateQRPending, StateAuthenticating, StateDisconnected},
	StateAuthenticating: {StateReady, StateDisconnected},
	StateReady:          {StateDisconnected},
	StateDisconnected:   {StateInitializing, StateAuthenticating},
	StateError:          {},
	StateDestroyed:      {},
}

// ValidTransition reports whether from -> to is a legal walk of the state
// graph. Error is reachable from any non-terminal state, destroyed from
// anything but itself.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	if to == StateDestroyed {
		return from != StateDestroyed
	}
	if to == StateError {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
