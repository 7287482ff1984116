package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/keyflow/internal/action"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestFiring creates a satisfied fired signal.
func createTestFiring(id, keyMapUID string, seq int64) Firing {
	return Firing{
		ID:        id,
		Seq:       seq,
		KeyMapUID: keyMapUID,
		Trigger:   "[24 short]",
		Kind:      KindFired,
		Satisfied: true,
		At:        testEpoch.Add(time.Duration(seq) * time.Millisecond),
	}
}

// createTestPerform creates a tap of key code 25.
func createTestPerform(firingID, keyMapUID string, seq int64) Perform {
	return Perform{
		Seq:       seq,
		FiringID:  firingID,
		KeyMapUID: keyMapUID,
		Action:    action.KeyEvent(25),
		Event:     action.DownUp,
		At:        testEpoch.Add(time.Duration(seq) * time.Millisecond),
	}
}
