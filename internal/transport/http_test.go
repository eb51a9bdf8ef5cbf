package transport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andyk/ht/internal/hub"
	"github.com/andyk/ht/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, chan hub.Client, *session.Session) {
	t.Helper()
	sess := session.New(80, 24, 1)
	clients := make(chan hub.Client, 1)

	go func() {
		for c := range clients {
			sub := sess.Subscribe()
			select {
			case c.Reply <- sub:
			default:
			}
		}
	}()

	srv := NewServer(clients, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, clients, sess
}

func TestWSEventsDeliversInit(t *testing.T) {
	ts, _, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var got struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != "init" {
		t.Errorf("first message type = %q, want init", got.Type)
	}
}

func TestWSAlisDeliversInitThenOutput(t *testing.T) {
	ts, _, sess := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/alis"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage (init): %v", err)
	}
	var init struct {
		Init string `json:"init"`
	}
	if err := json.Unmarshal(msg, &init); err != nil {
		t.Fatalf("Unmarshal init: %v", err)
	}

	sess.Output([]byte("hello"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage (output): %v", err)
	}
	var frame []any
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatalf("Unmarshal frame: %v", err)
	}
	if len(frame) != 3 || frame[1] != "o" || frame[2] != "hello" {
		t.Errorf("frame = %v, want [time, \"o\", \"hello\"]", frame)
	}
}
