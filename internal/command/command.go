// Package command decodes the line-delimited JSON control protocol the host
// reads from stdin into typed Command values the event hub can dispatch.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/andyk/ht/internal/keys"
)

// Command is one decoded control-protocol line.
type Command interface {
	isCommand()
}

// Input sends seqs to the child's PTY, resolved against the session's
// current cursor-key mode at dispatch time.
type Input struct {
	Seqs []keys.InputSeq
}

// Resize requests a new terminal size.
type Resize struct {
	Cols int
	Rows int
}

// Snapshot requests a Snapshot event be broadcast to all subscribers.
type Snapshot struct{}

func (Input) isCommand()    {}
func (Resize) isCommand()   {}
func (Snapshot) isCommand() {}

// Parse decodes one line of the control protocol. The returned error is
// meant for a diagnostic log line, not for terminating the reader: callers
// should drop the line and keep reading on error.
func Parse(line []byte) (Command, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, fmt.Errorf("command: invalid json: %w", err)
	}

	switch head.Type {
	case "input":
		var args struct {
			Payload *string `json:"payload"`
		}
		if err := json.Unmarshal(line, &args); err != nil {
			return nil, fmt.Errorf("command: input: %w", err)
		}
		if args.Payload == nil {
			return nil, fmt.Errorf("command: input: missing payload")
		}
		return Input{Seqs: []keys.InputSeq{keys.StandardSeq(*args.Payload)}}, nil

	case "sendKeys":
		var args struct {
			Keys []string `json:"keys"`
		}
		if err := json.Unmarshal(line, &args); err != nil {
			return nil, fmt.Errorf("command: sendKeys: %w", err)
		}
		if args.Keys == nil {
			return nil, fmt.Errorf("command: sendKeys: missing keys")
		}
		seqs := make([]keys.InputSeq, len(args.Keys))
		for i, k := range args.Keys {
			seqs[i] = keys.Encode(k)
		}
		return Input{Seqs: seqs}, nil

	case "resize":
		var args struct {
			Cols *int `json:"cols"`
			Rows *int `json:"rows"`
		}
		if err := json.Unmarshal(line, &args); err != nil {
			return nil, fmt.Errorf("command: resize: %w", err)
		}
		if args.Cols == nil || args.Rows == nil {
			return nil, fmt.Errorf("command: resize: missing cols or rows")
		}
		return Resize{Cols: *args.Cols, Rows: *args.Rows}, nil

	case "snapshot":
		return Snapshot{}, nil

	default:
		return nil, fmt.Errorf("command: invalid command type: %q", head.Type)
	}
}
