package model

import (
	"time"

	"gowalink/database"
	"gowalink/internal/session"
)

// SessionStatusStore persists the manager's per-session status rows so a
// restart can resume linked sessions off their stored credentials. It
// implements session.StatusStore.
type SessionStatusStore struct{}

// NewSessionStatusStore returns a store backed by the app database.
func NewSessionStatusStore() *SessionStatusStore {
	return &SessionStatusStore{}
}

// Upsert writes the latest status for a session, inserting on first sight.
func (st *SessionStatusStore) Upsert(rec session.StatusRecord) error {
	db := database.AppDB

	query := `
		INSERT INTO session_status (session_id, user_id, state, phone_number, last_activity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			phone_number = EXCLUDED.phone_number,
			last_activity = EXCLUDED.last_activity
	`

	_, err := db.Exec(query, rec.SessionID, rec.UserID, string(rec.State), rec.PhoneNumber, rec.LastActivity)
	return err
}

// Delete removes a session's status row after logout.
func (st *SessionStatusStore) Delete(sessionID string) error {
	db := database.AppDB

	_, err := db.Exec(`DELETE FROM session_status WHERE session_id = $1`, sessionID)
	return err
}

// ListLive returns the sessions worth restoring at boot: anything that was
// not terminal when the previous process stopped.
func (st *SessionStatusStore) ListLive() ([]session.StatusRecord, error) {
	db := database.AppDB

	query := `
		SELECT session_id, user_id, state, phone_number, last_activity
		FROM session_status
		WHERE state NOT IN ('error', 'destroyed')
		ORDER BY last_activity DESC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.StatusRecord
	for rows.Next() {
		var rec session.StatusRecord
		var state string
		var last time.Time
		if err := rows.Scan(&rec.SessionID, &rec.UserID, &state, &rec.PhoneNumber, &last); err != nil {
			return nil, err
		}
		rec.State = session.State(state)
		rec.LastActivity = last
		out = append(out, rec)
	}
	return out, rows.Err()
}
