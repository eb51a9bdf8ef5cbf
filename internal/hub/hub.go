// Package hub implements the event hub: the single coordination loop that
// owns the Session and is the only task that mutates it. It multiplexes
// child output, control commands, and new subscriber attachments on one
// blocking select, so every Session mutation and broadcast happens in a
// globally serialized order.
package hub

import (
	"context"
	"log/slog"

	"github.com/andyk/ht/internal/command"
	"github.com/andyk/ht/internal/keys"
	"github.com/andyk/ht/internal/session"
)

// Client is a pending subscriber: the hub fulfils Reply exactly once by
// calling Session.Subscribe.
type Client struct {
	Reply chan<- session.Subscription
}

// Hub owns one Session for the lifetime of one hosted child process.
type Hub struct {
	session *session.Session
	logger  *slog.Logger

	output   <-chan []byte
	input    chan<- []byte
	commands <-chan []byte
	clients  <-chan Client
}

// New constructs a Hub over an already-created Session and the channels
// connecting it to the PTY driver, the command reader, and the subscription
// attach point. Channel capacities are the caller's responsibility: 1024 for
// output/input/commands, 1 for clients.
func New(sess *session.Session, output <-chan []byte, input chan<- []byte, commands <-chan []byte, clients <-chan Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		session:  sess,
		logger:   logger,
		output:   output,
		input:    input,
		commands: commands,
		clients:  clients,
	}
}

// Run drives the coordination loop until ctx is cancelled, the child output
// channel closes (graceful child exit), or the command source closes. There
// is no failure mode inside the loop itself, only in the surrounding
// process, so Run always returns nil.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("hub started", "session_id", h.session.ID())
	for {
		select {
		case <-ctx.Done():
			return nil

		case data, ok := <-h.output:
			if !ok {
				h.logger.Info("child output closed, shutting down")
				return nil
			}
			h.session.Output(data)

		case line, ok := <-h.commands:
			if !ok {
				h.logger.Info("command source closed, shutting down")
				return nil
			}
			h.dispatch(ctx, line)

		case c, ok := <-h.clients:
			if !ok {
				h.clients = nil
				continue
			}
			h.attach(c)
		}
	}
}

// dispatch parses one command line and applies it. Parse errors are logged
// and the line dropped; they never stop the loop.
func (h *Hub) dispatch(ctx context.Context, line []byte) {
	cmd, err := command.Parse(line)
	if err != nil {
		h.logger.Error("dropping malformed command", "error", err)
		return
	}

	switch c := cmd.(type) {
	case command.Input:
		bytes := keys.SeqsToBytes(c.Seqs, h.session.CursorKeyAppMode())
		select {
		case h.input <- bytes:
		case <-ctx.Done():
		}

	case command.Snapshot:
		h.session.Snapshot()

	case command.Resize:
		h.session.Resize(c.Cols, c.Rows)
	}
}

// attach fulfils a pending Client by subscribing it to the Session. The
// 5-second subscription timeout is the adapter's concern while waiting on
// Reply; Subscribe itself never blocks.
func (h *Hub) attach(c Client) {
	sub := h.session.Subscribe()
	select {
	case c.Reply <- sub:
	default:
		h.session.Unsubscribe(sub)
	}
}
