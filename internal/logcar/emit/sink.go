package emit

import (
	"io"
	"sync"
)

// Sink is the append-only destination a write group's log lines are fanned
// out to: the deployment platform's stdout/stderr stream in production, a
// buffer or file in tests. It exposes only the append/flush surface a log
// line stream actually needs.
type Sink interface {
	Emit(line []byte) error
	Flush() error
}

// WriterSink adapts any io.Writer into a Sink, serializing concurrent
// writers so that one write group's lines are never interleaved with
// another's at the byte level.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w as a Sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Emit appends line followed by a newline. line should not itself contain a
// trailing newline.
func (s *WriterSink) Emit(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	_, err := s.w.Write([]byte{'\n'})
	return err
}

// Flush flushes the underlying writer if it supports flushing; otherwise it
// is a no-op, since most io.Writers (os.Stdout among them) write through
// immediately.
func (s *WriterSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
