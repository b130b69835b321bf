package domain

// Stream names a durable output log.
type Stream string

const (
	StreamResults Stream = "results"
	StreamErrors  Stream = "errors"
)

// ErrorRecord is the shape written to the errors stream for every terminal failure.
type ErrorRecord struct {
	Input string `json:"input"`
	Error any    `json:"error"`
}

// Counters is a point-in-time copy of task lifecycle counters.
type Counters struct {
	Started     int64 `json:"started"`
	InProgress  int64 `json:"in_progress"`
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
	RateLimited int64 `json:"rate_limited"`
	APIErrors   int64 `json:"api_errors"`
	OtherErrors int64 `json:"other_errors"`
}

// Drained reports whether every started task reached a terminal outcome.
func (c Counters) Drained() bool {
	return c.InProgress == 0 && c.Started == c.Succeeded+c.Failed
}

// Record is one durable-log append: a compact JSON document bound for a stream.
type Record struct {
	Stream Stream
	TaskID uint64
	Body   []byte
}
