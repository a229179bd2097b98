// Package lineio abstracts the hardware transport into an ordered sequence
// of decoded text lines. The rest of the bridge only ever sees the Lines
// channel, so a serial port, a captured log file and a test fixture are
// interchangeable.
package lineio

import (
	"bufio"
	"io"
	"sync"
)

// Source produces decoded text lines in arrival order. The Lines channel
// closes when the transport ends or Close is called; Err reports a transport
// fault observed before Close, if any.
type Source interface {
	Lines() <-chan string
	Err() error
	Close() error
}

// StreamSource reads newline-delimited lines from an io.Reader in a
// background goroutine and publishes them on a channel. It backs both the
// serial transport and the reader-based transports (stdin, capture files).
type StreamSource struct {
	name  string
	lines chan string
	done  chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
	closer io.Closer
}

// NewReaderSource wraps any reader as a line source. name is used for
// logging only. If r is also an io.Closer, Close closes it.
func NewReaderSource(name string, r io.Reader) *StreamSource {
	closer, _ := r.(io.Closer)
	return newStreamSource(name, r, closer)
}

func newStreamSource(name string, r io.Reader, closer io.Closer) *StreamSource {
	s := &StreamSource{
		name:   name,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
		closer: closer,
	}
	go s.readLoop(r)
	return s
}

func (s *StreamSource) readLoop(r io.Reader) {
	defer close(s.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		// A read error caused by our own Close is expected, not a fault.
		if !s.closed {
			s.err = err
		}
		s.mu.Unlock()
	}
}

// Lines returns the channel of decoded lines. It closes when the transport
// ends or after Close.
func (s *StreamSource) Lines() <-chan string {
	return s.lines
}

// Err returns the transport fault that ended the stream, or nil for a clean
// end of input or a local Close.
func (s *StreamSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the underlying transport and unblocks the read loop. It is
// safe to call more than once.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closer := s.closer
	s.mu.Unlock()

	close(s.done)
	if closer != nil {
		return closer.Close()
	}
	return nil
}

// Name identifies the transport (device path, "stdin", file name) for logs.
func (s *StreamSource) Name() string {
	return s.name
}
