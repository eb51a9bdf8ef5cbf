package hub

import (
	"context"
	"testing"
	"time"

	"github.com/andyk/ht/internal/session"
)

func newTestHub() (*Hub, chan []byte, chan []byte, chan []byte, chan Client, *session.Session) {
	sess := session.New(80, 24, 1)
	output := make(chan []byte, 1024)
	input := make(chan []byte, 1024)
	commands := make(chan []byte, 1024)
	clients := make(chan Client, 1)
	h := New(sess, output, input, commands, clients, nil)
	return h, output, input, commands, clients, sess
}

func TestHubOutputFeedsSession(t *testing.T) {
	h, output, _, commands, clients, sess := newTestHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	sub := sess.Subscribe()
	defer sess.Unsubscribe(sub)

	output <- []byte("hello")

	select {
	case ev := <-sub.Events:
		out, ok := ev.(session.Output)
		if !ok || out.Data != "hello" {
			t.Errorf("event = %+v, want Output{Data: hello}", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Output event")
	}

	cancel()
	<-done
	_ = commands
	_ = clients
}

func TestHubInputCommandWritesPTYBytes(t *testing.T) {
	h, _, input, commands, _, _ := newTestHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	commands <- []byte(`{"type":"sendKeys","keys":["Left"]}`)

	select {
	case b := <-input:
		if string(b) != "\x1b[D" {
			t.Errorf("input bytes = %q, want %q (normal mode)", b, "\x1b[D")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PTY input bytes")
	}

	cancel()
	<-done
}

func TestHubAttachDeliversInit(t *testing.T) {
	h, _, _, _, clients, _ := newTestHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	reply := make(chan session.Subscription, 1)
	clients <- Client{Reply: reply}

	select {
	case sub := <-reply:
		if sub.Init.Cols != 80 || sub.Init.Rows != 24 {
			t.Errorf("Init = %+v, want cols=80 rows=24", sub.Init)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscription reply")
	}

	cancel()
	<-done
}

func TestHubExitsOnOutputClose(t *testing.T) {
	h, output, _, _, _, _ := newTestHub()

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()

	close(output)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Run to exit after output close")
	}
}

func TestHubDropsMalformedCommand(t *testing.T) {
	h, _, input, commands, _, _ := newTestHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	commands <- []byte(`not json`)
	commands <- []byte(`{"type":"sendKeys","keys":["a"]}`)

	select {
	case b := <-input:
		if string(b) != "a" {
			t.Errorf("input bytes = %q, want %q", b, "a")
		}
	case <-time.After(time.Second):
		t.Fatal("malformed command appears to have stalled the loop")
	}

	cancel()
	<-done
}
