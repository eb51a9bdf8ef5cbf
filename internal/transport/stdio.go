package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/andyk/ht/internal/hub"
	"github.com/andyk/ht/internal/session"
)

// RunStdinReader reads line-delimited JSON commands from r and forwards each
// raw line to commands until r is exhausted or ctx is cancelled, then closes
// commands. A read error ends the loop; it is not a protocol error, since
// per-line parse errors are the command package's concern, not this one's.
func RunStdinReader(ctx context.Context, r io.Reader, commands chan<- []byte) {
	defer close(commands)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		select {
		case commands <- line:
		case <-ctx.Done():
			return
		}
	}
}

// RunStdoutWriter attaches to the hub and writes the filtered event stream to
// w as newline-delimited JSON until the subscription ends or ctx is
// cancelled. filters is the --subscribe vocabulary; empty means unfiltered.
func RunStdoutWriter(ctx context.Context, w io.Writer, clients chan<- hub.Client, filters []string, logger *slog.Logger) error {
	sub, err := Attach(ctx, clients)
	if err != nil {
		return err
	}
	defer sub.Close()

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	initEv := session.Event(sub.Init)
	if Allowed(initEv, filters) {
		if err := writeLine(bw, initEv); err != nil {
			return err
		}
		bw.Flush()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if sub.Lagged != nil && sub.Lagged() {
				return fmt.Errorf("transport: stdout event stream lagged, messages dropped")
			}
			if !Allowed(ev, filters) {
				continue
			}
			if err := writeLine(bw, ev); err != nil {
				return err
			}
			bw.Flush()
		}
	}
}

func writeLine(w io.Writer, ev session.Event) error {
	b, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("transport: write event line: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("transport: write event line: %w", err)
	}
	return nil
}
