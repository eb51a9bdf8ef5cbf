// Package sshattach exposes the hosted session over SSH: a connecting
// client's PTY becomes another subscriber, raw passthrough of Output bytes
// in one direction and raw keystroke bytes straight to the PTY input channel
// in the other, with rows/cols taken
// from the SSH pty-req and kept in sync with window-change requests.
package sshattach

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/gliderlabs/ssh"

	"github.com/andyk/ht/internal/hub"
	"github.com/andyk/ht/internal/session"
)

// Server is a single-session SSH attach point. Every connecting client
// attaches to the same hosted session; there is no per-agent routing.
type Server struct {
	listener net.Listener
	input    chan<- []byte
	commands chan<- []byte
	clients  chan<- hub.Client
	logger   *slog.Logger
}

// New creates a Server that attaches SSH clients to the session reachable
// through input, commands, and clients: the same channels the event hub
// reads from and accepts attachments on.
func New(listener net.Listener, input chan<- []byte, commands chan<- []byte, clients chan<- hub.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{listener: listener, input: input, commands: commands, clients: clients, logger: logger}
}

// Serve accepts SSH connections until ctx is cancelled or the listener
// errors.
func (s *Server) Serve(ctx context.Context) error {
	server := &ssh.Server{
		Handler: s.handleSession,
		PtyCallback: func(ctx ssh.Context, pty ssh.Pty) bool {
			return true
		},
		SubsystemHandlers: map[string]ssh.SubsystemHandler{},
	}

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	s.logger.Info("ssh attach listening", "addr", s.listener.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return fmt.Errorf("sshattach: accept: %w", err)
			}
		}
		go server.HandleConn(conn)
	}
}

func (s *Server) handleSession(sess ssh.Session) {
	s.logger.Info("ssh session started", "user", sess.User())
	defer s.logger.Info("ssh session ended", "user", sess.User())

	pty, winCh, isPTY := sess.Pty()
	if !isPTY {
		fmt.Fprintln(sess, "ht: ssh attach requires a pty")
		sess.Exit(1)
		return
	}

	reply := make(chan session.Subscription, 1)
	select {
	case s.clients <- hub.Client{Reply: reply}:
	case <-sess.Context().Done():
		return
	}

	var sub session.Subscription
	select {
	case sub = <-reply:
	case <-sess.Context().Done():
		return
	}
	defer sub.Close()

	s.resize(pty.Window.Width, pty.Window.Height)

	go func() {
		for win := range winCh {
			s.resize(win.Width, win.Height)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		io.WriteString(sess, sub.Init.Seq)
		for ev := range sub.Events {
			out, ok := ev.(session.Output)
			if !ok {
				continue
			}
			if _, err := io.WriteString(sess, out.Data); err != nil {
				return
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := sess.Read(buf)
		if n > 0 {
			b := make([]byte, n)
			copy(b, buf[:n])
			select {
			case s.input <- b:
			case <-sess.Context().Done():
				return
			}
		}
		if err != nil {
			break
		}
	}

	<-done
}

func (s *Server) resize(cols, rows int) {
	payload, err := json.Marshal(struct {
		Type string `json:"type"`
		Cols int    `json:"cols"`
		Rows int    `json:"rows"`
	}{"resize", cols, rows})
	if err != nil {
		return
	}
	select {
	case s.commands <- payload:
	default:
	}
}

// Close shuts down the SSH listener.
func (s *Server) Close() error {
	return s.listener.Close()
}
