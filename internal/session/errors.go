package session

import "errors"

var (
	// ErrSessionNotFound: no session with that id (or it was logged out).
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotReady: the session exists but is not in the ready
	// state, so it cannot send messages yet.
	ErrSessionNotReady = errors.New("session not ready")

	// ErrSocketUnavailable: a ready record has no live socket handle.
	// This indicates a bug in the manager, not a caller mistake.
	ErrSocketUnavailable = errors.New("socket unavailable")

	// ErrSendFailed wraps a transport error from the protocol adapter.
	ErrSendFailed = errors.New("send failed")

	// ErrSessionDestroyed: the operation targets a tombstoned session.
	ErrSessionDestroyed = errors.New("session destroyed")

	// ErrPairingUnavailable: pairing codes can only be requested while
	// the session is still in its pairing phase.
	ErrPairingUnavailable = errors.New("pairing code unavailable in current state")
)
