// Package bridge wires the transport, the frame assembler and the
// broadcaster together and owns the process lifecycle.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sensorbridge/internal/assembler"
	"sensorbridge/internal/lineio"
	"sensorbridge/internal/server"
	"sensorbridge/internal/telemetry"
	"sensorbridge/internal/wshub"
)

// Bridge connects one line source to the WebSocket hub through the frame
// assembler. Data flows one way: raw line, assembled frame, JSON broadcast.
type Bridge struct {
	source lineio.Source
	hub    *wshub.Hub
	asm    *assembler.Assembler
	srv    *server.Server
}

// New builds a bridge over the given source. sourceName identifies the
// transport in logs and on the status page.
func New(source lineio.Source, sourceName string, cfg assembler.Config) (*Bridge, error) {
	hub := wshub.NewHub()

	asm := assembler.New(cfg, func(f telemetry.Frame) {
		payload, err := json.Marshal(f)
		if err != nil {
			slog.Error("failed to encode frame", "error", err)
			return
		}
		hub.Broadcast(payload)
	})

	srv, err := server.New(hub, sourceName)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	return &Bridge{source: source, hub: hub, asm: asm, srv: srv}, nil
}

// Run serves until ctx is cancelled, then tears down in order: stop the line
// intake, abandon any grace wait, release the transport, close all
// subscriber connections, stop the HTTP server. A transport fault is
// reported but does not by itself terminate the process; subscribers stay
// connected until shutdown.
func (b *Bridge) Run(ctx context.Context, listenAddr string) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- b.srv.Start(listenAddr)
	}()

	asmDone := make(chan struct{})
	go func() {
		b.asm.Run(ctx, b.source.Lines())
		close(asmDone)
	}()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-serverErr:
			runErr = err
			break loop
		case <-asmDone:
			asmDone = nil
			if err := b.source.Err(); err != nil {
				slog.Error("transport fault, no further frames will arrive", "error", err)
			} else {
				slog.Info("transport closed, no further frames will arrive")
			}
		}
	}

	if err := b.source.Close(); err != nil {
		slog.Warn("failed to close transport", "error", err)
	}
	if asmDone != nil {
		<-asmDone
	}
	b.hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown http server: %w", err)
	}
	return runErr
}
