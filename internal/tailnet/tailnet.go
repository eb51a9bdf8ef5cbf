// Package tailnet provides an embedded Tailscale node for the host's
// optional "tsnet:<hostname>" listen mode.
//
// It wraps tsnet to provide a net.Listener on a tailnet identity instead of
// a bare TCP socket, so the HTTP surface can be reached by name over a
// mesh network without exposing a public port.
package tailnet

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/tsnet"
)

// Config holds the parameters needed to join a tailnet.
type Config struct {
	// Hostname is the node's name on the tailnet.
	Hostname string

	// ControlURL is the coordination server URL. Empty selects the
	// default (Tailscale's public control plane).
	ControlURL string

	// AuthKey is the pre-auth key used to join non-interactively.
	AuthKey string

	// StateDir persists the node's tailnet identity across runs.
	// Defaults to ~/.ht/tsnet/<hostname>.
	StateDir string

	// Ephemeral nodes are removed from the tailnet when they disconnect.
	Ephemeral bool
}

// Node wraps a tsnet.Server providing Listen for the HTTP transport.
type Node struct {
	server *tsnet.Server
	logger *slog.Logger
}

// New creates a Node. The node does not connect until Start is called.
func New(cfg Config, logger *slog.Logger) (*Node, error) {
	if cfg.Hostname == "" {
		return nil, fmt.Errorf("tailnet: Hostname is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	stateDir := cfg.StateDir
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("tailnet: could not determine home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".ht", "tsnet", cfg.Hostname)
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("tailnet: could not create state directory: %w", err)
	}

	server := &tsnet.Server{
		Hostname:   cfg.Hostname,
		Dir:        stateDir,
		ControlURL: cfg.ControlURL,
		AuthKey:    cfg.AuthKey,
		Ephemeral:  cfg.Ephemeral,
		Logf:       func(format string, args ...any) { logger.Debug(fmt.Sprintf(format, args...)) },
	}

	return &Node{server: server, logger: logger}, nil
}

// Start brings the node up on the tailnet.
func (n *Node) Start(ctx context.Context) error {
	n.logger.Info("joining tailnet", "hostname", n.server.Hostname)
	status, err := n.server.Up(ctx)
	if err != nil {
		return fmt.Errorf("tailnet: failed to join: %w", err)
	}
	n.logger.Info("joined tailnet", "tailscale_ips", status.TailscaleIPs, "backend_state", status.BackendState)
	return nil
}

// Listen creates a TCP listener on the tailnet, for the HTTP transport
// to Serve on in place of a bare net.Listen.
func (n *Node) Listen(network, addr string) (net.Listener, error) {
	return n.server.Listen(network, addr)
}

// Close shuts down the tailnet connection.
func (n *Node) Close() error {
	return n.server.Close()
}
