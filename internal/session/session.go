package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gowalink/internal/protocol"
)

// Session is one linked-device connection lifetime. The record is mutated
// only by the manager, under mu, from the session's own socket events or
// its own API calls; snapshots are handed out to everyone else.
type Session struct {
	mu sync.Mutex

	id                string
	userID            string
	state             State
	qrCode            string // rendered data URI, only while qr_pending
	pairingCode       string // only while code_pending
	phoneNumber       string
	pushName          string
	errReason         string
	reconnectAttempts int
	createdAt         time.Time
	lastActivity      time.Time

	client         protocol.Client
	reconnectTimer *time.Timer
	tombstoneTimer *time.Timer
}

// newSessionID embeds the owning user so ids are self-describing in logs.
func newSessionID(userID string) string {
	return userID + "-" + strings.Split(uuid.NewString(), "-")[0]
}

func newSession(id, userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		id:           id,
		userID:       userID,
		state:        StateInitializing,
		createdAt:    now,
		lastActivity: now,
	}
}

// Snapshot is an immutable copy of a session's externally visible fields.
type Snapshot struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	State             State     `json:"state"`
	QRCode            string    `json:"qrCode,omitempty"`
	PairingCode       string    `json:"pairingCode,omitempty"`
	PhoneNumber       string    `json:"phoneNumber,omitempty"`
	PushName          string    `json:"pushName,omitempty"`
	Error             string    `json:"error,omitempty"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
	CreatedAt         time.Time `json:"createdAt"`
	LastActivity      time.Time `json:"lastActivity"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:                s.id,
		UserID:            s.userID,
		State:             s.state,
		QRCode:            s.qrCode,
		PairingCode:       s.pairingCode,
		PhoneNumber:       s.phoneNumber,
		PushName:          s.pushName,
		Error:             s.errReason,
		ReconnectAttempts: s.reconnectAttempts,
		CreatedAt:         s.createdAt,
		LastActivity:      s.lastActivity,
	}
}

// setStateLocked applies a transition and clears pairing artifacts the
// instant the state leaves its pending phase. Returns false when the
// transition is not a legal walk of the state graph.
func (s *Session) setStateLocked(to State) bool {
	if !ValidTransition(s.state, to) {
		return false
	}
	s.state = to
	if to != StateQRPending {
		s.qrCode = ""
	}
	if to != StateCodePending {
		s.pairingCode = ""
	}
	s.lastActivity = time.Now().UTC()
	return true
}

func (s *Session) cancelTimersLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}
