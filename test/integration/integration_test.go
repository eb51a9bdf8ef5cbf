// Package integration exercises the host's concrete end-to-end scenarios:
// a real child process under ptydriver, wired through the event hub, driven
// by the command protocol exactly as a stdio or WebSocket adapter would.
package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andyk/ht/internal/hub"
	"github.com/andyk/ht/internal/keys"
	"github.com/andyk/ht/internal/ptydriver"
	"github.com/andyk/ht/internal/session"
)

type harness struct {
	sess     *session.Session
	driver   *ptydriver.Driver
	hub      *hub.Hub
	input    chan []byte
	output   chan []byte
	commands chan []byte
	clients  chan hub.Client
	cancel   context.CancelFunc
	done     chan error
}

func start(t *testing.T, cmd string, cols, rows int) *harness {
	t.Helper()

	driver, err := ptydriver.Spawn(cmd, ptydriver.Size{Cols: cols, Rows: rows})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	sess := session.New(cols, rows, driver.PID())
	output := make(chan []byte, 1024)
	input := make(chan []byte, 1024)
	commands := make(chan []byte, 1024)
	clients := make(chan hub.Client, 1)

	h := hub.New(sess, output, input, commands, clients, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 2)

	go func() { done <- driver.Run(ctx, input, output) }()
	go func() { done <- h.Run(ctx) }()

	return &harness{
		sess: sess, driver: driver, hub: h,
		input: input, output: output, commands: commands, clients: clients,
		cancel: cancel, done: done,
	}
}

func (h *harness) stop() {
	h.cancel()
}

func (h *harness) subscribe(t *testing.T) session.Subscription {
	t.Helper()
	reply := make(chan session.Subscription, 1)
	select {
	case h.clients <- hub.Client{Reply: reply}:
	case <-time.After(time.Second):
		t.Fatal("client channel send timed out")
	}
	select {
	case sub := <-reply:
		return sub
	case <-time.After(time.Second):
		t.Fatal("subscription reply timed out")
	}
	return session.Subscription{}
}

func (h *harness) send(t *testing.T, cmd string) {
	t.Helper()
	select {
	case h.commands <- []byte(cmd):
	case <-time.After(time.Second):
		t.Fatal("command send timed out")
	}
}

func TestEchoRoundTrip(t *testing.T) {
	h := start(t, "bash", 80, 24)
	defer h.stop()

	sub := h.subscribe(t)
	h.send(t, `{"type":"input","payload":"echo hi\n"}`)

	deadline := time.After(2 * time.Second)
	found := false
	for !found {
		select {
		case ev := <-sub.Events:
			if out, ok := ev.(session.Output); ok && strings.Contains(out.Data, "hi\r\n") {
				found = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for echoed output")
		}
	}

	h.send(t, `{"type":"snapshot"}`)
	deadline = time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if snap, ok := ev.(session.Snapshot); ok {
				if !strings.Contains(snap.Text, "hi") {
					t.Errorf("snapshot text = %q, want it to contain %q", snap.Text, "hi")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestModifierPermutationsEncodeIdentically(t *testing.T) {
	for _, name := range []string{"C-A-S-Left", "S-A-C-Left", "A-S-C-Left"} {
		seqs := []keys.InputSeq{keys.Encode(name)}
		got := keys.SeqsToBytes(seqs, false)
		want := "\x1b[1;8D"
		if string(got) != want {
			t.Errorf("Encode(%q) bytes = %q, want %q", name, got, want)
		}
	}
}

func TestResizePropagates(t *testing.T) {
	h := start(t, "cat", 80, 24)
	defer h.stop()

	sub := h.subscribe(t)
	h.send(t, `{"type":"resize","cols":100,"rows":30}`)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if r, ok := ev.(session.Resize); ok {
				if r.Cols != 100 || r.Rows != 30 {
					t.Fatalf("Resize = %+v, want cols=100 rows=30", r)
				}
				goto resized
			}
		case <-deadline:
			t.Fatal("timed out waiting for resize event")
		}
	}
resized:

	h.send(t, `{"type":"snapshot"}`)
	deadline = time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if snap, ok := ev.(session.Snapshot); ok {
				if snap.Cols != 100 || snap.Rows != 30 {
					t.Errorf("Snapshot = %+v, want cols=100 rows=30", snap)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for post-resize snapshot")
		}
	}
}

func TestChildExitTriggersShutdown(t *testing.T) {
	h := start(t, "/bin/true", 80, 24)
	defer h.stop()

	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("first exit returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for shutdown after child exit")
	}
}

func TestLaggingSubscriberIsolated(t *testing.T) {
	h := start(t, "cat", 80, 24)
	defer h.stop()

	a := h.subscribe(t)
	b := h.subscribe(t)

	for i := 0; i < 1100; i++ {
		h.send(t, `{"type":"input","payload":"x"}`)
	}

	deadline := time.After(3 * time.Second)
	bGotInit := false
	for !bGotInit {
		select {
		case _, ok := <-b.Events:
			if ok {
				bGotInit = true
			}
		case <-deadline:
			t.Fatal("fresh subscriber B never received an event")
		}
	}

	deadline = time.After(3 * time.Second)
	for {
		select {
		case <-a.Events:
			if a.Lagged() {
				return
			}
		case <-deadline:
			t.Fatal("subscriber A never observed a lag flag")
		}
	}
}
