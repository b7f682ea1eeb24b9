package store

import (
	"context"
	"os"
	"testing"
)

// testDB connects to the database named by MAILFOLD_TEST_DB, resets its
// tables and returns the store. Tests calling it are skipped when the
// variable is unset.
func testDB(t *testing.T) (context.Context, *Store) {
	t.Helper()

	url := os.Getenv("MAILFOLD_TEST_DB")
	if url == "" {
		t.Skip("MAILFOLD_TEST_DB not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE emails, storage"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return ctx, s
}
