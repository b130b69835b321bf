package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vietddude/dispatch/internal/core/domain"
)

// OutcomeRepo records terminal outcomes in the dispatch_outcomes table.
type OutcomeRepo struct {
	db    *DB
	runID uuid.UUID
}

// NewOutcomeRepo creates a new PostgreSQL outcome repository.
func NewOutcomeRepo(db *DB, runID uuid.UUID) *OutcomeRepo {
	return &OutcomeRepo{db: db, runID: runID}
}

// Append inserts one outcome row. Each row is its own statement, so
// concurrent appends are isolated by the database.
func (r *OutcomeRepo) Append(ctx context.Context, rec domain.Record) error {
	query := `
		INSERT INTO dispatch_outcomes (run_id, task_id, stream, body, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.db.ExecContext(ctx, query, r.runID, int64(rec.TaskID), string(rec.Stream), string(rec.Body))
	if err != nil {
		return fmt.Errorf("failed to add outcome: %w", err)
	}
	return nil
}

// Count returns the number of outcomes of a stream for this run.
func (r *OutcomeRepo) Count(ctx context.Context, stream domain.Stream) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM dispatch_outcomes
		WHERE run_id = $1 AND stream = $2
	`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, r.runID, string(stream)); err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return count, nil
}

// CountAll returns per-stream outcome counts across every run.
func (r *OutcomeRepo) CountAll(ctx context.Context) (map[domain.Stream]int64, error) {
	query := `
		SELECT stream, COUNT(*) AS n
		FROM dispatch_outcomes
		GROUP BY stream
	`
	var rows []struct {
		Stream string `db:"stream"`
		N      int64  `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}

	counts := make(map[domain.Stream]int64, len(rows))
	for _, row := range rows {
		counts[domain.Stream(row.Stream)] = row.N
	}
	return counts, nil
}

// Close is a no-op; the owning DB is closed separately.
func (r *OutcomeRepo) Close() error {
	return nil
}
