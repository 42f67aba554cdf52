package logging

import (
	"bytes"
	"strings"
	"sync"
)

// Sink is an io.Writer that queues complete log lines for a UI to drain.
// Lines are dropped when the queue is full so logging never blocks. Write
// is safe for concurrent use.
type Sink struct {
	lines chan string

	mu  sync.Mutex
	buf bytes.Buffer
}

func NewSink(size int) *Sink {
	return &Sink{lines: make(chan string, size)}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Write(p)
	for {
		data := s.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(data[:i]), "\r")
		s.buf.Next(i + 1)
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		default:
		}
	}
	return len(p), nil
}

func (s *Sink) Lines() <-chan string {
	return s.lines
}
