// Package assembler turns the unbounded line stream from the hardware
// transport into discrete frames. It decides where one frame ends and the
// next begins (an explicit "----" separator line, or the vibration readout
// that some firmware revisions use as the final line of every frame),
// buffers the lines in between, and hands each completed group to the field
// extractor.
package assembler

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"sensorbridge/internal/telemetry"
)

const (
	// DefaultMaxBufferLines bounds how many lines may accumulate without a
	// boundary before the buffer is discarded.
	DefaultMaxBufferLines = 64

	// DefaultGracePeriod is how long finalization waits for a straggling
	// photodiode line before emitting the frame anyway.
	DefaultGracePeriod = 400 * time.Millisecond

	// NoGrace disables the straggler wait entirely, so every boundary
	// emits immediately. Replayed captures use this: the lines arrive far
	// faster than the hardware printed them, and waiting would let the
	// next frame's lines join the one being finalized.
	NoGrace time.Duration = -1
)

// Config holds the assembler's tunables. Zero values select the defaults;
// a negative GracePeriod disables the wait.
type Config struct {
	MaxBufferLines int
	GracePeriod    time.Duration
}

// Assembler buffers raw lines between frame boundaries and emits one
// extracted frame per boundary. All state is owned by the goroutine running
// Run; no locking is needed.
type Assembler struct {
	cfg  Config
	emit func(telemetry.Frame)

	buf        []string
	waiting    bool
	graceTimer *time.Timer
	graceC     <-chan time.Time
}

// New creates an Assembler that calls emit for every completed non-empty
// frame. emit is invoked from the Run goroutine and must not block for long.
func New(cfg Config, emit func(telemetry.Frame)) *Assembler {
	if cfg.MaxBufferLines <= 0 {
		cfg.MaxBufferLines = DefaultMaxBufferLines
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Assembler{cfg: cfg, emit: emit}
}

// Run consumes lines until the channel closes or ctx is cancelled. Lines,
// boundary events and the grace timer are all serviced by this single loop,
// so handlers run to completion in arrival order.
//
// Cancellation abandons an in-flight grace wait without emitting a partial
// frame. A closed channel is a clean end of stream instead: no straggler can
// arrive anymore, so a pending grace emission completes immediately, while a
// buffer that never saw a boundary is discarded.
func (a *Assembler) Run(ctx context.Context, lines <-chan string) {
	defer a.stopGrace()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				if a.waiting {
					a.finish()
				}
				return
			}
			a.handleLine(line)
		case <-a.graceC:
			a.waiting = false
			a.graceC = nil
			a.finish()
		}
	}
}

var separatorRe = regexp.MustCompile(`^-{3,}$`)

// handleLine applies the framing rules to one raw line.
func (a *Assembler) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if separatorRe.MatchString(line) {
		// A separator on an empty buffer absorbs leading or duplicated
		// separators without emitting anything.
		if len(a.buf) > 0 {
			a.finalize()
		}
		return
	}

	a.append(line)

	// Some firmware revisions never print a separator and instead end
	// every frame with the vibration readout. If the line itself tipped
	// the buffer over the ceiling there is nothing left to finalize.
	if isTerminalField(line) && len(a.buf) > 0 {
		a.finalize()
	}
}

func isTerminalField(line string) bool {
	return strings.Contains(strings.ToLower(line), "vibration")
}

// append adds a line to the open buffer, discarding the whole buffer if it
// grows past the ceiling without a boundary. Overflow also abandons any
// grace wait: the frame the wait belonged to is gone.
func (a *Assembler) append(line string) {
	a.buf = append(a.buf, line)
	if len(a.buf) > a.cfg.MaxBufferLines {
		slog.Warn("frame buffer overflow without boundary, discarding",
			"lines", len(a.buf), "ceiling", a.cfg.MaxBufferLines)
		a.reset()
	}
}

// finalize treats the current buffer as a complete frame. If the photodiode
// reading is still missing and the wait is enabled, a single bounded grace
// wait is opened so a straggling line can join the buffer; a boundary
// arriving during the wait defines the same emission and does not restart it.
func (a *Assembler) finalize() {
	if a.waiting {
		return
	}
	if a.cfg.GracePeriod > 0 {
		if f, ok := telemetry.Extract(a.buf); !ok || f.PhotodiodeRaw == nil {
			a.waiting = true
			a.graceTimer = time.NewTimer(a.cfg.GracePeriod)
			a.graceC = a.graceTimer.C
			return
		}
	}
	a.finish()
}

// finish runs extraction on the buffer, emits the frame if anything was
// recognized, and returns to the idle state.
func (a *Assembler) finish() {
	f, ok := telemetry.Extract(a.buf)
	n := len(a.buf)
	a.reset()
	if !ok {
		slog.Debug("no recognizable fields in frame, dropping", "lines", n)
		return
	}
	a.emit(f)
}

func (a *Assembler) reset() {
	a.buf = nil
	a.waiting = false
	a.stopGrace()
}

func (a *Assembler) stopGrace() {
	if a.graceTimer != nil {
		a.graceTimer.Stop()
		a.graceTimer = nil
	}
	a.graceC = nil
}
