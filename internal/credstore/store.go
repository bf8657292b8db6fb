package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const credsFile = "creds.json"

// SaveFunc persists an updated credential blob for the session it was
// issued for. The protocol adapter calls it on every credential rotation,
// so it has to stay cheap and safe to call repeatedly.
type SaveFunc func(data []byte) error

// Store keeps one directory per session under a configured root. The
// directory contents beyond the credential blob are owned by the protocol
// library (its device database lives there too); the directory is the unit
// of backup and restore for re-linking without a new QR scan.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// Dir returns the session's credential directory path without creating it.
func (s *Store) Dir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

// Load ensures the session's directory exists and returns the current
// credential blob (nil when the session has never paired) plus a SaveFunc
// for persisting rotations. Writes go through a temp file and rename so a
// crash mid-save never leaves a truncated blob.
func (s *Store) Load(sessionID string) ([]byte, SaveFunc, error) {
	if err := validateID(sessionID); err != nil {
		return nil, nil, err
	}

	dir := s.Dir(sessionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("credstore: create dir for %s: %w", sessionID, err)
	}

	path := filepath.Join(dir, credsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("credstore: read creds for %s: %w", sessionID, err)
		}
		data = nil
	}

	save := func(blob []byte) error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, blob, 0o600); err != nil {
			return fmt.Errorf("credstore: write creds for %s: %w", sessionID, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("credstore: commit creds for %s: %w", sessionID, err)
		}
		return nil
	}

	return data, save, nil
}

// Erase removes the session's directory recursively. Only called on
// explicit logout; transient disconnects must keep credentials so the
// session can resume without re-pairing.
func (s *Store) Erase(sessionID string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Dir(sessionID)); err != nil {
		return fmt.Errorf("credstore: erase %s: %w", sessionID, err)
	}
	return nil
}

func validateID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("credstore: empty session id")
	}
	if strings.ContainsAny(sessionID, `/\`) || sessionID != filepath.Base(sessionID) {
		return fmt.Errorf("credstore: invalid session id %q", sessionID)
	}
	return nil
}
