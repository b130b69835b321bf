// Package sink records terminal task outcomes to append-only logs.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vietddude/dispatch/internal/core/domain"
)

// Sink appends records to durable, append-only streams. Implementations must
// be safe for concurrent use; each Append is atomic at record granularity.
type Sink interface {
	Append(ctx context.Context, rec domain.Record) error
	Close() error
}

// Encode builds a record from a document. Raw JSON is compacted so it always
// fits on one line; anything else is marshalled without HTML escaping.
func Encode(stream domain.Stream, taskID uint64, doc any) (domain.Record, error) {
	var body []byte
	switch v := doc.(type) {
	case json.RawMessage:
		body = v
	case []byte:
		body = v
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return domain.Record{}, fmt.Errorf("encode %s record: %w", stream, err)
		}
		body = buf.Bytes()
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return domain.Record{}, fmt.Errorf("compact %s record: %w", stream, err)
	}
	return domain.Record{Stream: stream, TaskID: taskID, Body: compact.Bytes()}, nil
}

// Multi fans every record out to all children.
type Multi []Sink

// Append writes to every child and joins their errors.
func (m Multi) Append(ctx context.Context, rec domain.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every child.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
