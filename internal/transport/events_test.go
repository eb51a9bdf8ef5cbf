package transport

import (
	"encoding/json"
	"testing"

	"github.com/andyk/ht/internal/session"
)

func TestEncodeEventOutput(t *testing.T) {
	b, err := EncodeEvent(session.Output{Time: 1.5, Data: "hi"})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	var got struct {
		Type string `json:"type"`
		Data struct {
			Seq string `json:"seq"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != "output" || got.Data.Seq != "hi" {
		t.Errorf("got %+v, want type=output data.seq=hi", got)
	}
}

func TestEncodeEventInit(t *testing.T) {
	b, err := EncodeEvent(session.Init{Cols: 80, Rows: 24, PID: 42, Seq: "S", Text: "T"})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	var got struct {
		Type string `json:"type"`
		Data struct {
			Cols int    `json:"cols"`
			Rows int    `json:"rows"`
			PID  int    `json:"pid"`
			Seq  string `json:"seq"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != "init" || got.Data.Cols != 80 || got.Data.PID != 42 {
		t.Errorf("got %+v, want init with cols=80 pid=42", got)
	}
}

func TestEncodeALiSSnapshotSuppressed(t *testing.T) {
	_, ok, err := EncodeALiS(session.Snapshot{Cols: 1, Rows: 1})
	if err != nil {
		t.Fatalf("EncodeALiS: %v", err)
	}
	if ok {
		t.Error("Snapshot should be suppressed in ALiS stream")
	}
}

func TestEncodeALiSOutput(t *testing.T) {
	payload, ok, err := EncodeALiS(session.Output{Time: 2.25, Data: "x"})
	if err != nil || !ok {
		t.Fatalf("EncodeALiS: ok=%v err=%v", ok, err)
	}
	var frame []any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(frame) != 3 || frame[1] != "o" || frame[2] != "x" {
		t.Errorf("frame = %v, want [time, \"o\", \"x\"]", frame)
	}
}

func TestEncodeALiSResize(t *testing.T) {
	payload, ok, err := EncodeALiS(session.Resize{Time: 1, Cols: 80, Rows: 24})
	if err != nil || !ok {
		t.Fatalf("EncodeALiS: ok=%v err=%v", ok, err)
	}
	var frame []any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if frame[1] != "r" || frame[2] != "80x24" {
		t.Errorf("frame = %v, want [time, \"r\", \"80x24\"]", frame)
	}
}

func TestAllowedEmptyFiltersAllowsEverything(t *testing.T) {
	if !Allowed(session.Output{}, nil) {
		t.Error("nil filters should allow everything")
	}
}

func TestAllowedFiltersByKind(t *testing.T) {
	if !Allowed(session.Output{}, []string{"output"}) {
		t.Error("output should be allowed by [output]")
	}
	if Allowed(session.Resize{}, []string{"output"}) {
		t.Error("resize should not be allowed by [output]")
	}
}
