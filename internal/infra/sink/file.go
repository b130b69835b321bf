package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/vietddude/dispatch/internal/core/domain"
)

// FileSink writes each stream to its own newline-delimited JSON file.
type FileSink struct {
	paths map[domain.Stream]string
}

// NewFileSink creates a sink writing results and errors to the given paths.
func NewFileSink(resultsPath, errorsPath string) *FileSink {
	return &FileSink{
		paths: map[domain.Stream]string{
			domain.StreamResults: resultsPath,
			domain.StreamErrors:  errorsPath,
		},
	}
}

// Path returns the file backing a stream.
func (s *FileSink) Path(stream domain.Stream) string {
	return s.paths[stream]
}

// Append opens the stream file in append mode, writes the record and a
// newline with a single write, and closes it. O_APPEND positions every write
// at the current end of file, so concurrent appenders never overwrite or
// split each other's lines.
func (s *FileSink) Append(_ context.Context, rec domain.Record) error {
	path, ok := s.paths[rec.Stream]
	if !ok {
		return fmt.Errorf("unknown stream %q", rec.Stream)
	}

	line := make([]byte, 0, len(rec.Body)+1)
	line = append(line, rec.Body...)
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s log: %w", rec.Stream, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s log: %w", rec.Stream, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s log: %w", rec.Stream, err)
	}
	return nil
}

// Close is a no-op; files are closed after every append.
func (s *FileSink) Close() error {
	return nil
}

// Count returns the number of non-empty lines in a stream file. A missing
// file counts as empty.
func (s *FileSink) Count(_ context.Context, stream domain.Stream) (int64, error) {
	f, err := os.Open(s.paths[stream])
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open %s log: %w", stream, err)
	}
	defer f.Close()

	var n int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("failed to read %s log: %w", stream, err)
	}
	return n, nil
}
