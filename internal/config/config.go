// Package config resolves the host's CLI surface (--size, --listen,
// --subscribe, --ssh-listen, --qr, and the positional child command) into a
// validated Config, layering an optional ~/.ht/config.json base underneath
// the flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultSize is applied when --size is not given.
const DefaultSize = "120x40"

// EventFilters is the fixed vocabulary accepted by --subscribe.
var EventFilters = []string{"init", "output", "resize", "snapshot"}

// Config is the fully resolved configuration for one host run.
type Config struct {
	Cols int
	Rows int

	// Listen is the HTTP address to bind, or "" if the HTTP surface is
	// disabled. A present-but-empty --listen flag resolves to "127.0.0.1:0".
	Listen       string
	ListenEnable bool

	// Subscribe filters the stdio event stream; empty means no stdio event
	// stream is started.
	Subscribe []string

	SSHListen string
	QR        bool

	// Command is the child command to exec, joined by spaces and run as
	// /bin/sh -c <Command>. Defaults to "bash".
	Command string
}

// fileDefaults is the optional on-disk base a Config's flags are layered
// over: file, then flags.
type fileDefaults struct {
	Size      string   `json:"size,omitempty"`
	Listen    string   `json:"listen,omitempty"`
	Subscribe []string `json:"subscribe,omitempty"`
}

// Dir returns ~/.ht, creating it if necessary.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ht")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("config: could not create config directory: %w", err)
	}
	return dir, nil
}

func loadFileDefaults() fileDefaults {
	var fd fileDefaults
	dir, err := Dir()
	if err != nil {
		return fd
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return fd
	}
	_ = json.Unmarshal(data, &fd)
	return fd
}

// Flags is the raw, unvalidated CLI input; Resolve turns it into a Config.
type Flags struct {
	Size        string
	ListenSet   bool
	Listen      string
	Subscribe   string
	SSHListen   string
	QR          bool
	CommandArgs []string
}

// Resolve validates Flags against an on-disk base and the documented
// defaults, returning a Config ready for startup.
func Resolve(f Flags) (*Config, error) {
	base := loadFileDefaults()

	size := f.Size
	if size == "" {
		size = base.Size
	}
	if size == "" {
		size = DefaultSize
	}
	cols, rows, err := parseSize(size)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Cols:      cols,
		Rows:      rows,
		SSHListen: f.SSHListen,
		QR:        f.QR,
		Command:   "bash",
	}

	if len(f.CommandArgs) > 0 {
		cfg.Command = strings.Join(f.CommandArgs, " ")
	}

	if f.ListenSet {
		cfg.ListenEnable = true
		cfg.Listen = f.Listen
		if cfg.Listen == "" {
			cfg.Listen = "127.0.0.1:0"
		}
	} else if base.Listen != "" {
		cfg.ListenEnable = true
		cfg.Listen = base.Listen
	}

	subscribe := f.Subscribe
	if subscribe == "" && len(base.Subscribe) > 0 {
		cfg.Subscribe = base.Subscribe
	} else if subscribe != "" {
		filters, err := parseSubscribe(subscribe)
		if err != nil {
			return nil, err
		}
		cfg.Subscribe = filters
	}

	return cfg, nil
}

// parseSize parses a "<cols>x<rows>" string.
func parseSize(s string) (cols, rows int, err error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("config: invalid size %q, want COLSxROWS", s)
	}
	cols, err = strconv.Atoi(parts[0])
	if err != nil || cols <= 0 {
		return 0, 0, fmt.Errorf("config: invalid size %q: bad cols", s)
	}
	rows, err = strconv.Atoi(parts[1])
	if err != nil || rows <= 0 {
		return 0, 0, fmt.Errorf("config: invalid size %q: bad rows", s)
	}
	return cols, rows, nil
}

// parseSubscribe parses a csv of event-filter names against the fixed
// {init, output, resize, snapshot} vocabulary. Each element may be a glob
// pattern (e.g. "*" for everything, "s*" for snapshot alone) rather than a
// literal name.
func parseSubscribe(csv string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(csv, ",") {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("config: invalid subscribe pattern %q: %w", pattern, err)
		}
		matched := false
		for _, f := range EventFilters {
			if g.Match(f) && !seen[f] {
				out = append(out, f)
				seen[f] = true
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("config: invalid subscribe filter %q, want one of %v", pattern, EventFilters)
		}
	}
	return out, nil
}
