package session

import "sync"

// Registry is the single source of truth for session records, indexed by
// id and by owning user. "At most one live session per user" is enforced
// here: claiming a user slot while another live session holds it returns
// the holder so the manager can destroy it first.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]string // userID -> live session id
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Session),
		byUser: make(map[string]string),
	}
}

// Get returns the session by id, including destroyed tombstones.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// GetByUser returns the user's live session. Destroyed sessions never
// occupy the user slot, so a new session can always be created after a
// destroy.
func (r *Registry) GetByUser(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	s, ok := r.byID[id]
	return s, ok
}

// Claim registers s as the live session for its user. If another live
// session already holds the slot it is returned and s is not inserted.
func (r *Registry) Claim(s *Session) (holder *Session, claimed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prevID, ok := r.byUser[s.userID]; ok {
		if prev, ok := r.byID[prevID]; ok {
			return prev, false
		}
	}
	r.byID[s.id] = s
	r.byUser[s.userID] = s.id
	return nil, true
}

// ReleaseUser frees the user slot if the given session holds it. Called
// on destroy; the record itself stays in byID as a tombstone.
func (r *Registry) ReleaseUser(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[s.userID] == s.id {
		delete(r.byUser, s.userID)
	}
}

// Remove erases the record entirely (logout, or tombstone expiry).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if r.byUser[s.userID] == id {
		delete(r.byUser, s.userID)
	}
}

// All returns a snapshot of every registered session record.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}
