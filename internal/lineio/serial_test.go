package lineio

import (
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

// A pseudo-terminal stands in for the serial device: same line discipline,
// no hardware required.
func TestPTYBackedSource(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer func() {
		_ = ptmx.Close()
	}()

	src := NewReaderSource(tty.Name(), tty)
	defer func() {
		_ = src.Close()
	}()

	_, err = ptmx.WriteString("Temperature (C): 24.40\n")
	require.NoError(t, err)
	_, err = ptmx.WriteString("VIBRATION: NORMAL\n")
	require.NoError(t, err)

	var lines []string
	for len(lines) < 2 {
		select {
		case line, ok := <-src.Lines():
			require.True(t, ok, "stream ended early")
			lines = append(lines, line)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, got %d lines", len(lines))
		}
	}
	require.Equal(t, []string{"Temperature (C): 24.40", "VIBRATION: NORMAL"}, lines)
}
