package credstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadNewSession(t *testing.T) {
	s := New(t.TempDir())

	data, save, err := s.Load("alice-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data != nil {
		t.Fatalf("fresh session returned %d bytes of credentials", len(data))
	}
	if save == nil {
		t.Fatal("no save func returned")
	}

	if info, err := os.Stat(s.Dir("alice-1")); err != nil || !info.IsDir() {
		t.Fatalf("credential dir not created: %v", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	s := New(t.TempDir())

	_, save, err := s.Load("alice-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	blob := []byte(`{"jid":"628123@s.whatsapp.net"}`)
	if err := save(blob); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Rotations overwrite in place.
	rotated := []byte(`{"jid":"628123@s.whatsapp.net","rotated":true}`)
	if err := save(rotated); err != nil {
		t.Fatalf("save rotation: %v", err)
	}

	data, _, err := s.Load("alice-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !bytes.Equal(data, rotated) {
		t.Fatalf("reloaded %q, want %q", data, rotated)
	}

	// No temp file left behind.
	if _, err := os.Stat(filepath.Join(s.Dir("alice-1"), "creds.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file survived save: %v", err)
	}
}

func TestErase(t *testing.T) {
	s := New(t.TempDir())

	_, save, err := s.Load("alice-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := save([]byte(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.Erase("alice-1"); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if _, err := os.Stat(s.Dir("alice-1")); !os.IsNotExist(err) {
		t.Fatalf("dir survived erase: %v", err)
	}

	// Erasing a session that never existed is fine.
	if err := s.Erase("never-seen"); err != nil {
		t.Fatalf("Erase unknown: %v", err)
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	s := New(t.TempDir())

	for _, id := range []string{"", "../escape", "a/b", `a\b`, ".."} {
		if _, _, err := s.Load(id); err == nil {
			t.Errorf("Load(%q) accepted an unsafe id", id)
		}
		if err := s.Erase(id); err == nil {
			t.Errorf("Erase(%q) accepted an unsafe id", id)
		}
	}
}
