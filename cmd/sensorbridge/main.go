package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"golang.org/x/term"

	"sensorbridge/internal/assembler"
	"sensorbridge/internal/bridge"
	"sensorbridge/internal/lineio"
	"sensorbridge/internal/server"
	"sensorbridge/internal/telemetry"
)

var (
	device         string
	baudRate       int
	listenAddr     string
	maxBufferLines int
	gracePeriod    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "sensorbridge",
	Short: "Bridge a serial telemetry stream to WebSocket subscribers",
	Long: `sensorbridge reads free-text sensor readouts from a serial device,
groups them into frames, extracts named fields and broadcasts each frame as
JSON to every connected WebSocket subscriber.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bridge",
	Long:  `Open the telemetry transport and serve the WebSocket push channel until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := openSource()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := bridge.New(source, source.Name(), assembler.Config{
			MaxBufferLines: maxBufferLines,
			GracePeriod:    gracePeriod,
		})
		if err != nil {
			return err
		}
		return b.Run(ctx, listenAddr)
	},
}

// openSource opens the configured transport: a serial device, or stdin when
// --device is "-".
func openSource() (*lineio.StreamSource, error) {
	if device == "-" {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			slog.Warn("reading telemetry from an interactive terminal; pipe the stream in or type lines manually")
		}
		return lineio.NewReaderSource("stdin", os.Stdin), nil
	}
	return lineio.OpenSerial(device, baudRate)
}

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a captured telemetry stream offline",
	Long: `Run the frame assembler and field extractor over a captured telemetry
text stream (a file, or stdin when no file is given) and print one JSON frame
per line to stdout. No hardware or server is involved.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		name := "stdin"
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open capture file: %w", err)
			}
			defer func() {
				_ = f.Close()
			}()
			r, name = f, args[0]
		}

		return runParse(cmd.Context(), name, r, os.Stdout)
	},
}

// runParse replays a captured stream through the assembler and writes one
// JSON frame per line. A replay delivers lines much faster than the hardware
// printed them, so the straggler wait is disabled: with it on, the next
// frame's lines would join the buffer of the frame being finalized.
func runParse(ctx context.Context, name string, r io.Reader, out io.Writer) error {
	source := lineio.NewReaderSource(name, r)
	asm := assembler.New(assembler.Config{
		MaxBufferLines: maxBufferLines,
		GracePeriod:    assembler.NoGrace,
	}, func(f telemetry.Frame) {
		payload, err := json.Marshal(f)
		if err != nil {
			slog.Error("failed to encode frame", "error", err)
			return
		}
		fmt.Fprintln(out, string(payload))
	})
	asm.Run(ctx, source.Lines())
	return source.Err()
}

var (
	simDevice   string
	simInterval time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Emit synthetic telemetry frames",
	Long: `Write synthetic sensor readout frames to stdout (or to a serial device
with --device) on a fixed interval. Use this for local testing when no
hardware is attached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var out io.Writer = os.Stdout
		if simDevice != "-" {
			port, err := serial.Open(simDevice, &serial.Mode{BaudRate: baudRate})
			if err != nil {
				return fmt.Errorf("open serial port %s: %w", simDevice, err)
			}
			defer func() {
				_ = port.Close()
			}()
			out = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ticker := time.NewTicker(simInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := writeSimulatedFrame(out); err != nil {
					return fmt.Errorf("write frame: %w", err)
				}
			}
		}
	},
}

// writeSimulatedFrame emits one readout block in the firmware's text layout,
// with jittered values.
func writeSimulatedFrame(w io.Writer) error {
	vibration := "VIBRATION: NORMAL"
	if rand.IntN(10) == 0 {
		vibration = "VIBRATION: DETECTED!"
	}
	_, err := fmt.Fprintf(w,
		"----\nTemperature (C): %.2f\nCapacitive raw (touchRead): %d\nPhotodiode raw (0-4095): %d\nHall raw (0-4095): %d  Intensity%%: %d\n%s\n",
		20+rand.Float64()*10,
		600+rand.IntN(400),
		rand.IntN(4096),
		rand.IntN(4096),
		rand.IntN(101),
		vibration,
	)
	return err
}

func main() {
	runCmd.Flags().StringVar(&device, "device", lineio.DefaultDevice,
		"serial device to read telemetry from (\"-\" for stdin)")
	runCmd.Flags().IntVar(&baudRate, "baud", lineio.DefaultBaudRate, "serial baud rate")
	runCmd.Flags().StringVar(&listenAddr, "listen", server.DefaultListenAddr, "HTTP/WebSocket listen address")
	runCmd.Flags().IntVar(&maxBufferLines, "max-buffer-lines", assembler.DefaultMaxBufferLines,
		"discard the frame buffer if it grows past this many lines without a boundary")
	runCmd.Flags().DurationVar(&gracePeriod, "grace-period", assembler.DefaultGracePeriod,
		"how long to wait for a straggling photodiode line before emitting a frame (negative disables the wait)")

	parseCmd.Flags().IntVar(&maxBufferLines, "max-buffer-lines", assembler.DefaultMaxBufferLines,
		"discard the frame buffer if it grows past this many lines without a boundary")

	simulateCmd.Flags().StringVar(&simDevice, "device", "-",
		"serial device to write telemetry into (\"-\" for stdout)")
	simulateCmd.Flags().IntVar(&baudRate, "baud", lineio.DefaultBaudRate, "serial baud rate")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", time.Second, "time between simulated frames")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
