package domain

import "encoding/json"

// Task is one unit of work derived from one input line.
type Task struct {
	ID                uint64            `json:"id"`
	Payload           map[string]any    `json:"payload"`
	Input             string            `json:"input"`
	AttemptsRemaining int               `json:"attempts_remaining"`
	MaxAttempts       int               `json:"max_attempts"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
	Results           []json.RawMessage `json:"results,omitempty"`
	OriginalPayload   map[string]any    `json:"original_payload"`
}

// NewTask builds a task with a full attempt budget. The original payload is
// deep-copied so later edits to Payload never leak into it.
func NewTask(id uint64, payload map[string]any, input string, maxAttempts int) *Task {
	return &Task{
		ID:                id,
		Payload:           payload,
		Input:             input,
		AttemptsRemaining: maxAttempts,
		MaxAttempts:       maxAttempts,
		OriginalPayload:   CloneDocument(payload),
	}
}

// Attempt returns how many attempts have been consumed so far.
func (t *Task) Attempt() int {
	return t.MaxAttempts - t.AttemptsRemaining
}

// CloneDocument deep-copies a decoded JSON object.
func CloneDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
