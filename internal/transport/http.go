package transport

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andyk/ht/internal/hub"
	"github.com/andyk/ht/internal/session"
)

// Server is the optional HTTP surface: two WebSocket event streams plus a
// static preview UI, all read-only views onto the hub's broadcast.
type Server struct {
	clients chan<- hub.Client
	logger  *slog.Logger
	mux     *http.ServeMux
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewServer builds the HTTP surface's handler, attaching new WebSocket
// connections to the hub via clients.
func NewServer(clients chan<- hub.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{clients: clients, logger: logger, mux: http.NewServeMux()}

	assets, err := fs.Sub(staticAssets, "assets")
	if err != nil {
		panic(err)
	}
	s.mux.Handle("/", http.FileServer(http.FS(assets)))
	s.mux.HandleFunc("/ws/alis", s.handleALiS)
	s.mux.HandleFunc("/ws/events", s.handleEvents)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleALiS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws/alis upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go drainIncoming(conn, cancel)

	sub, err := Attach(ctx, s.clients)
	if err != nil {
		s.logger.Error("ws/alis attach failed", "error", err)
		return
	}
	defer sub.Close()

	if payload, ok, _ := EncodeALiS(session.Event(sub.Init)); ok {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				closeEnded(conn)
				return
			}
			if sub.Lagged != nil && sub.Lagged() {
				s.logger.Error("ws/alis subscriber lagged, closing")
				return
			}
			payload, send, err := EncodeALiS(ev)
			if err != nil {
				s.logger.Error("ws/alis encode failed", "error", err)
				continue
			}
			if !send {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filters := parseSub(r.URL.Query().Get("sub"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws/events upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go drainIncoming(conn, cancel)

	sub, err := Attach(ctx, s.clients)
	if err != nil {
		s.logger.Error("ws/events attach failed", "error", err)
		return
	}
	defer sub.Close()

	initEv := session.Event(sub.Init)
	if Allowed(initEv, filters) {
		if err := writeEventWS(conn, initEv); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				closeEnded(conn)
				return
			}
			if sub.Lagged != nil && sub.Lagged() {
				s.logger.Error("ws/events subscriber lagged, closing")
				return
			}
			if !Allowed(ev, filters) {
				continue
			}
			if err := writeEventWS(conn, ev); err != nil {
				return
			}
		}
	}
}

func writeEventWS(conn *websocket.Conn, ev session.Event) error {
	b, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

func parseSub(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(csv, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// drainIncoming discards any client-sent frames (these endpoints are
// read-only views) and cancels ctx once the client disconnects.
func drainIncoming(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeEnded(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "ended")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
