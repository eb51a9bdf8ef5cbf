package session

// Event is a broadcast payload produced by a Session mutation or synthesized
// for a new subscriber.
type Event interface {
	isEvent()
}

// Init is sent synthetically to a new subscriber, never broadcast.
type Init struct {
	Time float64
	Cols int
	Rows int
	PID  int
	Seq  string // vt.Dump(), the replayable init sequence
	Text string
}

// Output carries child-produced bytes, already decoded to text.
type Output struct {
	Time float64
	Data string
}

// Resize records an explicit terminal resize.
type Resize struct {
	Time float64
	Cols int
	Rows int
}

// Snapshot is an on-demand full-screen event. It carries no time because it
// is idempotent with respect to stream time.
type Snapshot struct {
	Cols int
	Rows int
	Seq  string
	Text string
}

func (Init) isEvent()     {}
func (Output) isEvent()   {}
func (Resize) isEvent()   {}
func (Snapshot) isEvent() {}
