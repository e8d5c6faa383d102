package helpers

import (
	"testing"

	"github.com/namanjain27/EchoPilot/internal/repository"
)

// NewTestSQLiteStore opens an in-memory store that closes with the test.
func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
