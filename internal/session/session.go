// Package session owns the VT state, the stream-time clock, and the
// broadcast fan-out to subscribers. Every method assumes it is called by a
// single owner (the event hub); the ordering guarantees in the package
// comment of internal/hub depend on that.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andyk/ht/internal/vt"
)

// ErrSubscribeTimeout is returned by an adapter when a hub.Client attach
// request goes unanswered within the subscription timeout. Subscribe itself
// never blocks; this sentinel belongs to the waiting-on-reply side.
var ErrSubscribeTimeout = errors.New("session: subscribe timed out")

// Subscription is a handle delivered to exactly one subscriber: a synthetic
// Init event plus a channel positioned immediately after the moment of
// subscription. Close must be called when the holder is done with the
// subscription (e.g. the adapter's client disconnected), or it leaks a
// permanent entry in the broadcaster's subscriber set. Calling it again is a
// no-op.
type Subscription struct {
	Init   Init
	Events <-chan Event
	Lagged func() bool
	Close  func()

	id uint64
}

// Session is the singleton state for the hosted terminal.
type Session struct {
	id  uuid.UUID
	vt  *vt.VT
	pid int

	// mu guards the clock fields against a concurrent Subscribe call; the
	// event hub is the only caller of the mutating methods, but Subscribe
	// may be invoked by a different goroutine fulfilling a client request.
	mu            sync.Mutex
	startTime     time.Time
	lastEventTime time.Time
	streamTime    float64

	bc *broadcaster
}

// New constructs a Session with a fresh VT of (cols, rows) and records the
// current time as both start_time and last_event_time.
func New(cols, rows, pid int) *Session {
	now := time.Now()
	return &Session{
		id:            uuid.New(),
		vt:            vt.New(cols, rows),
		pid:           pid,
		startTime:     now,
		lastEventTime: now,
		bc:            newBroadcaster(),
	}
}

// ID returns the session's run-scoped identity, useful for correlating log
// lines across the hub and its transports when more than one host is
// running.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// elapsed computes elapsed_time = stream_time + now - last_event_time. Must
// be called with mu held.
func (s *Session) elapsed(now time.Time) float64 {
	return s.streamTime + now.Sub(s.lastEventTime).Seconds()
}

// advance stamps the clock at now and returns the new stream_time. Must be
// called with mu held.
func (s *Session) advance(now time.Time) float64 {
	t := s.elapsed(now)
	s.streamTime = t
	s.lastEventTime = now
	return t
}

// Output feeds data to the VT, then broadcasts an Output event. The VT feed
// happens before the broadcast, so a subscriber never observes an Output
// whose effect isn't yet reflected in a subsequent Snapshot.
func (s *Session) Output(data []byte) {
	text := vt.LossyUTF8(data)
	s.vt.Feed([]byte(text))

	s.mu.Lock()
	t := s.advance(time.Now())
	s.mu.Unlock()

	s.bc.publish(Output{Time: t, Data: text})
}

// Resize resizes the VT via its native API, then broadcasts a Resize event.
func (s *Session) Resize(cols, rows int) {
	s.vt.Resize(cols, rows)

	s.mu.Lock()
	t := s.advance(time.Now())
	s.mu.Unlock()

	s.bc.publish(Resize{Time: t, Cols: cols, Rows: rows})
}

// Snapshot performs no VT mutation; it broadcasts the current full screen to
// every subscriber.
func (s *Session) Snapshot() {
	cols, rows := s.vt.Size()
	s.bc.publish(Snapshot{
		Cols: cols,
		Rows: rows,
		Seq:  s.vt.Dump(),
		Text: s.vt.TextView(),
	})
}

// Subscribe synthesizes an Init event and opens a broadcast receiver
// positioned at the next message.
func (s *Session) Subscribe() Subscription {
	s.mu.Lock()
	t := s.elapsed(time.Now())
	s.mu.Unlock()

	cols, rows := s.vt.Size()
	init := Init{
		Time: t,
		Cols: cols,
		Rows: rows,
		PID:  s.pid,
		Seq:  s.vt.Dump(),
		Text: s.vt.TextView(),
	}

	ch, id, lagged := s.bc.subscribe()
	sub := Subscription{Init: init, Events: ch, Lagged: lagged, id: id}
	sub.Close = func() { s.bc.unsubscribe(id) }
	return sub
}

// Unsubscribe releases a Subscription obtained from Subscribe. Equivalent to
// calling sub.Close(); kept for callers (the hub) that hold the Session
// directly rather than just the Subscription.
func (s *Session) Unsubscribe(sub Subscription) {
	s.bc.unsubscribe(sub.id)
}

// CursorKeyAppMode forwards to the VT.
func (s *Session) CursorKeyAppMode() bool {
	return s.vt.CursorKeyAppMode()
}

// PID returns the child process id recorded at construction.
func (s *Session) PID() int {
	return s.pid
}

// Size returns the VT's current (cols, rows).
func (s *Session) Size() (cols, rows int) {
	return s.vt.Size()
}
