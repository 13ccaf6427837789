package db

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestStore wraps a Store with test cleanup functionality.
type TestStore struct {
	*Store
	pool *pgxpool.Pool
}

// NewTestStore creates a Store connected to the test database named by
// TEST_DATABASE_URL. Tests that need a database are skipped when the
// variable is unset.
func NewTestStore(t *testing.T) *TestStore {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database integration test")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("failed to ping test database: %v", err)
	}

	store := NewStore(pool, nil)
	if err := store.EnsureSchema(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("failed to ensure schema: %v", err)
	}

	return &TestStore{Store: store, pool: pool}
}

// Cleanup truncates the history table and closes the pool.
func (ts *TestStore) Cleanup(t *testing.T) {
	t.Helper()
	if _, err := ts.pool.Exec(context.Background(), "TRUNCATE transfer_history"); err != nil {
		t.Logf("failed to truncate transfer_history: %v", err)
	}
	ts.pool.Close()
}
