// Package keys translates human key names ("C-a", "Left", "S-F5") into the
// byte sequences a terminal expects to receive, including the
// cursor-key-application-mode duality that only the VT can resolve.
package keys

import "strings"

// Kind discriminates the two InputSeq shapes.
type Kind int

const (
	// Standard is a fixed byte sequence, independent of VT mode.
	Standard Kind = iota
	// Cursor carries both a "normal" (CSI) and "application" (SS3) encoding;
	// the wire bytes are chosen at send time from the VT's cursor-key mode.
	Cursor
)

// InputSeq is the result of encoding one key name.
type InputSeq struct {
	Kind   Kind
	Bytes  []byte // valid when Kind == Standard
	Normal []byte // valid when Kind == Cursor
	App    []byte // valid when Kind == Cursor
}

func std(b string) InputSeq { return InputSeq{Kind: Standard, Bytes: []byte(b)} }
func cursor(normal, app string) InputSeq {
	return InputSeq{Kind: Cursor, Normal: []byte(normal), App: []byte(app)}
}

// StandardSeq wraps s as a literal, mode-independent input sequence, bypassing
// key-name lookup. Used for the "input" command, which sends raw text rather
// than a key name.
func StandardSeq(s string) InputSeq { return std(s) }

const (
	esc = "\x1b"
	ss3 = esc + "O"
	csi = esc + "["
)

// literal holds every fixed-name key that isn't a cursor-motion key.
var literal = map[string]InputSeq{
	"C-@": std("\x00"), "C-Space": std("\x00"), "^@": std("\x00"),
	"C-[": std(esc), "Escape": std(esc), "^[": std(esc),
	"C-\\": std("\x1c"), "^\\": std("\x1c"),
	"C-]": std("\x1d"), "^]": std("\x1d"),
	"C-^": std("\x1e"), "C-/": std("\x1e"),
	"C--": std("\x1f"), "C-_": std("\x1f"),
	"Tab":   std("\x09"),
	"Enter": std("\x0d"),
	"Space": std(" "),

	"F1": std(ss3 + "P"), "F2": std(ss3 + "Q"), "F3": std(ss3 + "R"), "F4": std(ss3 + "S"),
	"F5": std(csi + "15~"), "F6": std(csi + "17~"), "F7": std(csi + "18~"), "F8": std(csi + "19~"),
	"F9": std(csi + "20~"), "F10": std(csi + "21~"), "F11": std(csi + "23~"), "F12": std(csi + "24~"),

	"PageUp": std(csi + "5~"), "PageDown": std(csi + "6~"),
}

// cursorKeys maps a base cursor-motion name to its CSI letter.
var cursorKeys = map[string]string{
	"Left": "D", "Right": "C", "Up": "A", "Down": "B",
}

// homeEndLetter maps Home/End to the letter used both unmodified and with CSI 1;n<L>.
var homeEndLetter = map[string]string{"Home": "H", "End": "F"}

// fKeyTilde maps F5-F12 to their CSI ...~ numeric code, for modified-F-key encoding.
var fKeyTilde = map[string]string{
	"F5": "15", "F6": "17", "F7": "18", "F8": "19",
	"F9": "20", "F10": "21", "F11": "23", "F12": "24",
}

// f1to4Letter maps F1-F4 to their SS3 letter, reused for the CSI 1;n<letter>
// form their modified variants take (unlike the tilde form F5-F12 use).
var f1to4Letter = map[string]string{"F1": "P", "F2": "Q", "F3": "R", "F4": "S"}

// modShift, modAlt and modCtrl are the bitmask values assigned to each
// modifier letter.
const (
	modShift = 1 << iota
	modAlt
	modCtrl
)

// modParam is the xterm modifier parameter for a given bitmask, per the
// table in the key encoder's exhaustive literal spec: C=5, S=2, A=3, C-S=6,
// C-A=7, S-A=4, C-A-S=8.
var modParam = map[int]string{
	modCtrl:                     "5",
	modShift:                    "2",
	modAlt:                      "3",
	modCtrl | modShift:          "6",
	modCtrl | modAlt:            "7",
	modShift | modAlt:           "4",
	modCtrl | modShift | modAlt: "8",
}

// Encode translates a single key name into an InputSeq. Unrecognized names
// pass through literally as their own bytes (a plain word becomes itself).
func Encode(name string) InputSeq {
	if seq, ok := literal[name]; ok {
		return seq
	}
	if letter, ok := cursorKeys[name]; ok {
		return cursor(csi+letter, ss3+letter)
	}
	if letter, ok := homeEndLetter[name]; ok {
		return cursor(csi+letter, ss3+letter)
	}

	if mods, base, ok := splitModifiers(name); ok {
		if seq, ok := encodeModified(mods, base); ok {
			return seq
		}
	}

	if seq, ok := encodeParametric(name); ok {
		return seq
	}

	return std(name)
}

// splitModifiers strips any leading C-/S-/A- tokens (in any order,
// hyphen-separated) and returns the accumulated modifier bitmask plus the
// remaining base name. ok is false if the name carries no recognized
// modifier prefix at all.
func splitModifiers(name string) (mods int, base string, ok bool) {
	parts := strings.Split(name, "-")
	if len(parts) < 2 {
		return 0, name, false
	}
	i := 0
	for ; i < len(parts)-1; i++ {
		switch parts[i] {
		case "C":
			mods |= modCtrl
		case "S":
			mods |= modShift
		case "A":
			mods |= modAlt
		default:
			goto stop
		}
	}
stop:
	if mods == 0 {
		return 0, name, false
	}
	base = strings.Join(parts[i:], "-")
	return mods, base, true
}

func encodeModified(mods int, base string) (InputSeq, bool) {
	n, ok := modParam[mods]
	if !ok {
		return InputSeq{}, false
	}

	// Modified arrow keys are fixed CSI sequences, unlike their bare
	// counterparts: only the unmodified arrow/Home/End keys split on
	// cursor-key application mode.
	if letter, ok := cursorKeys[base]; ok {
		return std(csi + "1;" + n + letter), true
	}
	if letter, ok := homeEndLetter[base]; ok {
		return std(csi + "1;" + n + letter), true
	}
	switch base {
	case "PageUp":
		return std(csi + "5;" + n + "~"), true
	case "PageDown":
		return std(csi + "6;" + n + "~"), true
	}
	if code, ok := fKeyTilde[base]; ok {
		return std(csi + code + ";" + n + "~"), true
	}
	if letter, ok := f1to4Letter[base]; ok {
		return std(csi + "1;" + n + letter), true
	}

	// Fall through to the single-character C-/A- parametric forms so e.g.
	// "C-a" (one modifier, one letter) still works when routed through here.
	if mods == modCtrl && len(base) == 1 {
		return encodeParametric("C-" + base)
	}
	if mods == modAlt && len([]rune(base)) == 1 {
		return encodeParametric("A-" + base)
	}
	return InputSeq{}, false
}

// encodeParametric handles C-<lower>, C-<upper>, ^<lower>, ^<upper>, and
// A-<any single char>.
func encodeParametric(name string) (InputSeq, bool) {
	switch {
	case strings.HasPrefix(name, "C-") && len(name) == 3:
		c := name[2]
		if c >= 'a' && c <= 'z' {
			return std(string(rune(c - 0x60))), true
		}
		if c >= 'A' && c <= 'Z' {
			return std(string(rune(c - 0x40))), true
		}
	case strings.HasPrefix(name, "^") && len(name) == 2:
		c := name[1]
		if c >= 'a' && c <= 'z' {
			return std(string(rune(c - 0x60))), true
		}
		if c >= 'A' && c <= 'Z' {
			return std(string(rune(c - 0x40))), true
		}
	case strings.HasPrefix(name, "A-"):
		rest := []rune(strings.TrimPrefix(name, "A-"))
		if len(rest) == 1 {
			return std(esc + string(rest[0])), true
		}
	}
	return InputSeq{}, false
}

// SeqsToBytes concatenates the wire bytes of seqs, resolving each Cursor
// variant to its normal or application encoding based on appMode.
func SeqsToBytes(seqs []InputSeq, appMode bool) []byte {
	var out []byte
	for _, s := range seqs {
		switch s.Kind {
		case Standard:
			out = append(out, s.Bytes...)
		case Cursor:
			if appMode {
				out = append(out, s.App...)
			} else {
				out = append(out, s.Normal...)
			}
		}
	}
	return out
}
