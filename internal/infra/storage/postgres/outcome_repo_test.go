package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/vietddude/dispatch/internal/core/domain"
)

// Requires a live database; set DISPATCH_TEST_DATABASE_URL to run.
func TestOutcomeRepo_AppendAndCount(t *testing.T) {
	dsn := os.Getenv("DISPATCH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DISPATCH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: dsn})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	repo := NewOutcomeRepo(db, uuid.New())
	for i := 0; i < 3; i++ {
		if err := repo.Append(ctx, domain.Record{
			Stream: domain.StreamResults,
			TaskID: uint64(i),
			Body:   []byte(`{"ok":true}`),
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := repo.Append(ctx, domain.Record{
		Stream: domain.StreamErrors,
		TaskID: 3,
		Body:   []byte(`{"input":"x","error":"boom"}`),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	n, err := repo.Count(ctx, domain.StreamResults)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("results = %d, want 3", n)
	}
	n, err = repo.Count(ctx, domain.StreamErrors)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("errors = %d, want 1", n)
	}
}
