package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/dispatch/internal/core/domain"
)

// OutcomeLog appends terminal outcomes to one Redis list per stream.
type OutcomeLog struct {
	rdb    *redis.Client
	prefix string
	runID  string
}

// entry is the list element layout.
type entry struct {
	RunID      string          `json:"run_id"`
	TaskID     uint64          `json:"task_id"`
	RecordedAt time.Time       `json:"recorded_at"`
	Body       json.RawMessage `json:"body"`
}

// NewOutcomeLog creates a Redis-backed outcome log.
func NewOutcomeLog(client *Client, prefix, runID string) *OutcomeLog {
	return &OutcomeLog{
		rdb:    client.rdb,
		prefix: prefix,
		runID:  runID,
	}
}

// Key helpers
func (l *OutcomeLog) streamKey(stream domain.Stream) string {
	return fmt.Sprintf("%s:%s", l.prefix, stream)
}

// Append pushes one record onto the list of its stream. RPUSH is atomic, so
// concurrent appends never interleave inside an element.
func (l *OutcomeLog) Append(ctx context.Context, rec domain.Record) error {
	data, err := json.Marshal(entry{
		RunID:      l.runID,
		TaskID:     rec.TaskID,
		RecordedAt: time.Now().UTC(),
		Body:       rec.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	if err := l.rdb.RPush(ctx, l.streamKey(rec.Stream), data).Err(); err != nil {
		return fmt.Errorf("rpush failed: %w", err)
	}
	return nil
}

// Count returns the number of records in a stream.
func (l *OutcomeLog) Count(ctx context.Context, stream domain.Stream) (int64, error) {
	n, err := l.rdb.LLen(ctx, l.streamKey(stream)).Result()
	if err != nil {
		return 0, fmt.Errorf("llen failed: %w", err)
	}
	return n, nil
}

// Close is a no-op; the owning Client is closed separately.
func (l *OutcomeLog) Close() error {
	return nil
}
