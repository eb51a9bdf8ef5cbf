// Command ht hosts a child process under a PTY, exposes its terminal state
// to subscribers over stdio, an optional HTTP surface, and an optional SSH
// listener, and arbitrates all of it through a single event hub.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/andyk/ht/internal/config"
	"github.com/andyk/ht/internal/hub"
	"github.com/andyk/ht/internal/htlog"
	"github.com/andyk/ht/internal/ptydriver"
	"github.com/andyk/ht/internal/qr"
	"github.com/andyk/ht/internal/session"
	"github.com/andyk/ht/internal/sshattach"
	"github.com/andyk/ht/internal/tailnet"
	"github.com/andyk/ht/internal/transport"
)

// Version is set at build time via ldflags.
var Version = "dev"

const listenNoValue = "\x00"

func main() {
	logger := htlog.SetDefault(slog.LevelInfo)

	var sizeFlag, listenFlag, subscribeFlag, sshListenFlag string
	var qrFlag bool

	rootCmd := &cobra.Command{
		Use:     "ht [command...]",
		Short:   "Headless terminal host",
		Version: Version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := config.Flags{
				Size:        sizeFlag,
				ListenSet:   cmd.Flags().Changed("listen"),
				Listen:      listenFlag,
				Subscribe:   subscribeFlag,
				SSHListen:   sshListenFlag,
				QR:          qrFlag,
				CommandArgs: args,
			}
			if flags.Listen == listenNoValue {
				flags.Listen = ""
			}
			return run(cmd.Context(), flags, logger)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&sizeFlag, "size", "", "terminal size COLSxROWS (default 120x40, or the controlling TTY's size)")
	flags.StringVar(&listenFlag, "listen", "", "bind the HTTP surface to ADDR (127.0.0.1:0 if given with no value); ADDR may be tsnet:<hostname>")
	flags.Lookup("listen").NoOptDefVal = listenNoValue
	flags.StringVar(&subscribeFlag, "subscribe", "", "csv or glob of {init,output,resize,snapshot} to stream on stdout")
	flags.StringVar(&sshListenFlag, "ssh-listen", "", "also expose the session over SSH at ADDR")
	flags.BoolVar(&qrFlag, "qr", false, "print the HTTP surface URL as a terminal QR code (requires --listen)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ht:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags config.Flags, logger *slog.Logger) error {
	if err := checkLocale(); err != nil {
		return err
	}

	if flags.Size == "" {
		if cols, rows, ok := detectTTYSize(); ok {
			flags.Size = fmt.Sprintf("%dx%d", cols, rows)
		}
	}

	cfg, err := config.Resolve(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := ptydriver.Spawn(cfg.Command, ptydriver.Size{Cols: cfg.Cols, Rows: cfg.Rows})
	if err != nil {
		return err
	}

	sess := session.New(cfg.Cols, cfg.Rows, driver.PID())

	output := make(chan []byte, 1024)
	input := make(chan []byte, 1024)
	commands := make(chan []byte, 1024)
	clients := make(chan hub.Client, 1)

	h := hub.New(sess, output, input, commands, clients, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := driver.Run(ctx, input, output); err != nil {
			logger.Error("pty driver exited", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := h.Run(ctx); err != nil {
			logger.Error("hub exited", "error", err)
		}
		// The hub ending (child exit or stdin closed) ends the whole run.
		stop()
	}()

	// The stdin reader is not waited on: it blocks in a read until stdin
	// delivers a line or EOF, so it cannot observe ctx promptly.
	go transport.RunStdinReader(ctx, os.Stdin, commands)

	if len(cfg.Subscribe) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := transport.RunStdoutWriter(ctx, os.Stdout, clients, cfg.Subscribe, logger); err != nil {
				logger.Error("stdout event stream ended", "error", err)
			}
		}()
	}

	if cfg.ListenEnable {
		ln, url, cleanup, err := bindHTTPListener(ctx, cfg.Listen, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := transport.NewServer(clients, logger)
		httpSrv := &http.Server{Handler: srv}

		go func() {
			<-ctx.Done()
			httpSrv.Close()
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
				logger.Error("http surface ended", "error", err)
			}
		}()

		logger.Info("http surface listening", "url", url)
		if cfg.QR {
			qr.Print(os.Stderr, url, 60, 30)
		}
	}

	if cfg.SSHListen != "" {
		ln, err := net.Listen("tcp", cfg.SSHListen)
		if err != nil {
			return fmt.Errorf("ht: ssh-listen: %w", err)
		}
		sshSrv := sshattach.New(ln, input, commands, clients, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sshSrv.Serve(ctx); err != nil && err != context.Canceled {
				logger.Error("ssh attach ended", "error", err)
			}
		}()
	}

	wg.Wait()
	return nil
}

// checkLocale requires a UTF-8 locale; the VT and key encoder assume valid
// UTF-8 text throughout.
func checkLocale() error {
	for _, env := range []string{"LC_ALL", "LANG"} {
		if strings.Contains(strings.ToUpper(os.Getenv(env)), "UTF-8") {
			return nil
		}
	}
	return fmt.Errorf("ht: requires a UTF-8 locale (LANG or LC_ALL)")
}

// detectTTYSize reads the controlling terminal's size when stdin is a real
// TTY and --size was not given, supplementing the flat default with the
// auto-detect behavior the original ht binary performs.
func detectTTYSize() (cols, rows int, ok bool) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0, false
	}
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// bindHTTPListener creates the listener for --listen, handling the
// tsnet:<hostname> deployment mode, and returns the pairable URL.
func bindHTTPListener(ctx context.Context, addr string, logger *slog.Logger) (net.Listener, string, func(), error) {
	if hostname, ok := strings.CutPrefix(addr, "tsnet:"); ok {
		node, err := tailnet.New(tailnet.Config{Hostname: hostname}, logger)
		if err != nil {
			return nil, "", nil, err
		}
		if err := node.Start(ctx); err != nil {
			return nil, "", nil, err
		}
		ln, err := node.Listen("tcp", ":80")
		if err != nil {
			node.Close()
			return nil, "", nil, fmt.Errorf("ht: tsnet listen: %w", err)
		}
		return ln, "http://" + hostname, func() { ln.Close(); node.Close() }, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", nil, fmt.Errorf("ht: listen: %w", err)
	}
	return ln, "http://" + ln.Addr().String(), func() { ln.Close() }, nil
}

