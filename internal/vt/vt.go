// Package vt is a thin façade over the charmbracelet/x/vt terminal emulator:
// it normalizes byte input to UTF-8, exposes the VT's native resize instead
// of an escape-sequence resize, and tracks cursor-key application mode,
// which the underlying emulator does not expose directly.
package vt

import (
	"bytes"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/x/vt"
)

// decckmSet and decckmReset are the DECCKM private-mode sequences
// (CSI ?1h / CSI ?1l) that switch cursor keys into and out of application
// mode. The emulator processes and discards these; nothing downstream of it
// can observe the mode, so the façade watches the raw byte stream itself.
const (
	decckmSet   = "\x1b[?1h"
	decckmReset = "\x1b[?1l"
)

// Line is one row of the visible screen.
type Line struct {
	text string
}

// Text returns the line's plain-text content, trailing spaces trimmed.
func (l Line) Text() string { return l.text }

// VT wraps one terminal emulator instance plus the cursor-key mode bit the
// emulator itself doesn't surface.
type VT struct {
	mu      sync.Mutex
	term    vt.Terminal
	cols    int
	rows    int
	appMode bool
}

// New creates a VT of the given size.
func New(cols, rows int) *VT {
	return &VT{
		term: vt.NewSafeEmulator(cols, rows),
		cols: cols,
		rows: rows,
	}
}

// Feed decodes data as UTF-8 (invalid sequences replaced, matching the
// "utf8_lossy" policy of the event hub) and writes it to the emulator,
// updating the cursor-key mode bit as it scans for DECCKM sequences.
func (v *VT) Feed(data []byte) {
	valid := []byte(LossyUTF8(data))

	v.mu.Lock()
	v.scanCursorKeyMode(valid)
	v.mu.Unlock()

	v.term.Write(valid)
}

// LossyUTF8 decodes data as UTF-8, replacing invalid sequences, the same way
// the event hub decodes child output before feeding it to the VT and
// broadcasting it.
func LossyUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

// scanCursorKeyMode updates appMode from the last DECCKM set/reset sequence
// found in data. Must be called with mu held.
func (v *VT) scanCursorKeyMode(data []byte) {
	setIdx := lastIndex(data, decckmSet)
	resetIdx := lastIndex(data, decckmReset)
	if setIdx < 0 && resetIdx < 0 {
		return
	}
	v.appMode = setIdx > resetIdx
}

func lastIndex(data []byte, sub string) int {
	return bytes.LastIndex(data, []byte(sub))
}

// Resize resizes the emulator natively (not via an escape sequence).
func (v *VT) Resize(cols, rows int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cols, v.rows = cols, rows
	v.term.Resize(cols, rows)
}

// Size returns the current (cols, rows).
func (v *VT) Size() (cols, rows int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cols, v.rows
}

// CursorKeyAppMode reports whether the emulator last entered DECCKM
// application mode.
func (v *VT) CursorKeyAppMode() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.appMode
}

// Dump returns a byte sequence that, replayed into a fresh VT of the same
// size, reconstructs the current screen.
func (v *VT) Dump() string {
	return v.term.Render()
}

// View returns the visible screen as an ordered sequence of lines.
func (v *VT) View() []Line {
	v.mu.Lock()
	cols, rows := v.cols, v.rows
	v.mu.Unlock()

	lines := make([]Line, rows)
	for y := 0; y < rows; y++ {
		var b strings.Builder
		for x := 0; x < cols; x++ {
			cell := v.term.CellAt(x, y)
			if cell == nil || cell.Content == "" {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(cell.Content)
		}
		lines[y] = Line{text: strings.TrimRight(b.String(), " ")}
	}
	return lines
}

// TextView is the newline-joined textual content of visible lines.
func (v *VT) TextView() string {
	lines := v.View()
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text()
	}
	return strings.Join(parts, "\n")
}
