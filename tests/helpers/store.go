package helpers

import (
	"testing"

	"github.com/datapilot/analyst/internal/repository"
)

func NewTestArchive(t *testing.T) *repository.SQLiteArchive {
	t.Helper()

	s, err := repository.NewSQLiteArchive(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite archive: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
