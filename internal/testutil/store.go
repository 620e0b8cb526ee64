package testutil

import (
	"path/filepath"
	"testing"

	"github.com/gridwell/gridwell/internal/store"
)

// TempStore opens a store in a per-test temporary directory and closes
// it on cleanup.
func TempStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}
