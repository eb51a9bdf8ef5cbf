package transport

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/andyk/ht/internal/session"
)

// Kind names the event-stream vocabulary accepted by --subscribe and sub=.
type Kind string

const (
	KindInit     Kind = "init"
	KindOutput   Kind = "output"
	KindResize   Kind = "resize"
	KindSnapshot Kind = "snapshot"
)

func kindOf(ev session.Event) Kind {
	switch ev.(type) {
	case session.Init:
		return KindInit
	case session.Output:
		return KindOutput
	case session.Resize:
		return KindResize
	case session.Snapshot:
		return KindSnapshot
	default:
		return ""
	}
}

// Allowed reports whether ev's kind is present in filters, or filters is empty
// (unfiltered).
func Allowed(ev session.Event, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	k := string(kindOf(ev))
	for _, f := range filters {
		if f == k {
			return true
		}
	}
	return false
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EncodeEvent renders ev as the generic {"type":..., "data":{...}} event-
// stream object used by both the stdio surface and /ws/events.
func EncodeEvent(ev session.Event) ([]byte, error) {
	var e envelope
	switch v := ev.(type) {
	case session.Init:
		e = envelope{Type: "init", Data: struct {
			Cols int    `json:"cols"`
			Rows int    `json:"rows"`
			PID  int    `json:"pid"`
			Seq  string `json:"seq"`
			Text string `json:"text"`
		}{v.Cols, v.Rows, v.PID, v.Seq, v.Text}}
	case session.Output:
		e = envelope{Type: "output", Data: struct {
			Seq string `json:"seq"`
		}{v.Data}}
	case session.Resize:
		e = envelope{Type: "resize", Data: struct {
			Cols int `json:"cols"`
			Rows int `json:"rows"`
		}{v.Cols, v.Rows}}
	case session.Snapshot:
		e = envelope{Type: "snapshot", Data: struct {
			Cols int    `json:"cols"`
			Rows int    `json:"rows"`
			Seq  string `json:"seq"`
			Text string `json:"text"`
		}{v.Cols, v.Rows, v.Seq, v.Text}}
	default:
		return nil, fmt.Errorf("transport: unknown event type %T", ev)
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("transport: encode event: %w", err)
	}
	return b, nil
}

// EncodeALiS renders ev in the asciinema-derived live-stream shape used by
// /ws/alis. Snapshot has no ALiS representation and is suppressed: ok is
// false and payload is nil.
func EncodeALiS(ev session.Event) (payload []byte, ok bool, err error) {
	switch v := ev.(type) {
	case session.Init:
		b, err := json.Marshal(struct {
			Time float64 `json:"time"`
			Cols int     `json:"cols"`
			Rows int     `json:"rows"`
			Init string  `json:"init"`
		}{v.Time, v.Cols, v.Rows, v.Seq})
		if err != nil {
			return nil, false, fmt.Errorf("transport: encode alis init: %w", err)
		}
		return b, true, nil

	case session.Output:
		b, err := json.Marshal([]any{v.Time, "o", v.Data})
		if err != nil {
			return nil, false, fmt.Errorf("transport: encode alis output: %w", err)
		}
		return b, true, nil

	case session.Resize:
		b, err := json.Marshal([]any{v.Time, "r", strconv.Itoa(v.Cols) + "x" + strconv.Itoa(v.Rows)})
		if err != nil {
			return nil, false, fmt.Errorf("transport: encode alis resize: %w", err)
		}
		return b, true, nil

	case session.Snapshot:
		return nil, false, nil

	default:
		return nil, false, fmt.Errorf("transport: unknown event type %T", ev)
	}
}
