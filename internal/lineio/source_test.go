package lineio

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *StreamSource) []string {
	t.Helper()
	var lines []string
	for {
		select {
		case line, ok := <-s.Lines():
			if !ok {
				return lines
			}
			lines = append(lines, line)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for lines")
		}
	}
}

func TestReaderSourceDeliversLinesInOrder(t *testing.T) {
	src := NewReaderSource("test", strings.NewReader("one\ntwo\nthree\n"))
	defer func() {
		_ = src.Close()
	}()

	require.Equal(t, []string{"one", "two", "three"}, collect(t, src))
	require.NoError(t, src.Err())
}

func TestReaderSourceStripsCarriageReturns(t *testing.T) {
	// Serial consoles usually terminate lines with \r\n.
	src := NewReaderSource("test", strings.NewReader("Temperature (C): 24.4\r\nVIBRATION: NORMAL\r\n"))
	defer func() {
		_ = src.Close()
	}()

	require.Equal(t, []string{"Temperature (C): 24.4", "VIBRATION: NORMAL"}, collect(t, src))
}

func TestReaderSourceFinalLineWithoutTerminator(t *testing.T) {
	src := NewReaderSource("test", strings.NewReader("a\nb"))
	defer func() {
		_ = src.Close()
	}()

	require.Equal(t, []string{"a", "b"}, collect(t, src))
}

func TestCloseUnblocksBlockedReader(t *testing.T) {
	pr, pw := io.Pipe()
	src := NewReaderSource("pipe", pr)

	_, err := pw.Write([]byte("first\n"))
	require.NoError(t, err)

	select {
	case line := <-src.Lines():
		require.Equal(t, "first", line)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first line")
	}

	// The reader is now blocked in Read; Close must end the stream.
	require.NoError(t, src.Close())
	require.Empty(t, collect(t, src))
	require.NoError(t, src.Err())
}

type faultyReader struct {
	data string
	read bool
}

func (r *faultyReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("device unplugged")
}

func TestTransportFaultIsRetained(t *testing.T) {
	src := NewReaderSource("flaky", &faultyReader{data: "only line\n"})

	require.Equal(t, []string{"only line"}, collect(t, src))
	require.EqualError(t, src.Err(), "device unplugged")
}

func TestCloseIsIdempotent(t *testing.T) {
	src := NewReaderSource("test", strings.NewReader(""))
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
}
