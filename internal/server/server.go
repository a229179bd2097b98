// Package server exposes the bridge over HTTP: the WebSocket push channel
// for subscribers, a small live dashboard, a status API and an embedded help
// page.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sensorbridge/internal/wshub"
	"sensorbridge/pkg/markdown"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed help.md
var helpMarkdown string

// DefaultListenAddr is the default HTTP/WebSocket listening address.
const DefaultListenAddr = ":8737"

type Server struct {
	hub        *wshub.Hub
	sourceName string
	tmpl       *template.Template
	helpHTML   template.HTML
	startedAt  time.Time
	httpSrv    *http.Server
}

// New creates a server pushing frames from hub to subscribers. sourceName
// identifies the transport on the status page.
func New(hub *wshub.Hub, sourceName string) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{
		hub:        hub,
		sourceName: sourceName,
		tmpl:       tmpl,
		helpHTML:   template.HTML(markdown.RenderToHTML(helpMarkdown)),
		startedAt:  time.Now(),
	}, nil
}

// Handler returns the server's HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /help", s.handleHelp)
	return mux
}

// Start serves HTTP on addr until Shutdown is called. A clean shutdown
// returns nil.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// within the bounds of ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin: func(r *http.Request) bool {
		// Reject cross-site WebSocket hijacking: the Origin, when present,
		// must match the Host the request arrived on.
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if origin == "http://"+r.Host || origin == "https://"+r.Host {
			return true
		}
		slog.Warn("rejected WebSocket connection from unauthorized origin", "origin", origin, "host", r.Host)
		return false
	},
}

// handleWebSocket upgrades the connection and registers it as a frame
// subscriber. A writer pump drains the client's send channel; the read loop
// only exists to detect the peer closing.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	client := &wshub.Client{
		ID:   fmt.Sprintf("sub-%d", time.Now().UnixNano()),
		Conn: conn,
		Send: make(chan []byte, 32),
		Done: make(chan struct{}),
	}

	s.hub.Register(client)
	defer s.hub.Unregister(client.ID)
	defer close(client.Done)

	go func() {
		for {
			select {
			case payload := <-client.Send:
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					slog.Debug("failed to write frame to subscriber", "clientID", client.ID, "error", err)
					return
				}
			case <-client.Done:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("subscriber read ended", "clientID", client.ID, "error", err)
			}
			return
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		SourceName string
	}{SourceName: s.sourceName}
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("failed to render dashboard", "error", err)
	}
}

func (s *Server) handleHelp(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Content template.HTML
	}{Content: s.helpHTML}
	if err := s.tmpl.ExecuteTemplate(w, "help.html", data); err != nil {
		slog.Error("failed to render help page", "error", err)
	}
}
