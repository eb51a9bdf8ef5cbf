// Package ptydriver forks a child under a PTY and drives full-duplex byte
// transfer between the PTY master and two channels, guaranteeing that
// shutdown propagates a HUP to the child and reaps it.
package ptydriver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/andyk/ht/internal/nbio"
)

// ErrSpawnFailed wraps any failure to fork/exec the child under a PTY.
var ErrSpawnFailed = errors.New("ptydriver: spawn failed")

// Size is a terminal window size in character cells.
type Size struct {
	Cols int
	Rows int
}

const readChunk = 128 * 1024

// Driver owns one child process running under one PTY master.
type Driver struct {
	cmd     *exec.Cmd
	master  *os.File
	masterFd int
}

// Spawn launches "/bin/sh -c command" under a new PTY of the given size and
// returns a Driver ready to Run. The child's environment always carries
// TERM=xterm-256color.
func Spawn(command string, size Size) (*Driver, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(size.Rows),
		Cols: uint16(size.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	fd := int(master.Fd())
	if err := nbio.SetNonblocking(fd); err != nil {
		master.Close()
		cmd.Process.Kill()
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	return &Driver{cmd: cmd, master: master, masterFd: fd}, nil
}

// PID returns the child's process id.
func (d *Driver) PID() int {
	if d.cmd.Process == nil {
		return 0
	}
	return d.cmd.Process.Pid
}

// Resize applies a new window size to the PTY.
func (d *Driver) Resize(size Size) error {
	return pty.Setsize(d.master, &pty.Winsize{Rows: uint16(size.Rows), Cols: uint16(size.Cols)})
}

// Run drives the duplex byte transfer until the PTY master reports EOF (the
// child exited or closed its end), inputRx is closed, or ctx is cancelled.
// inputRx carries bytes to write to the child's stdin; outputTx receives
// bytes read from the child's stdout/stderr and is closed once the reader
// stops. Run always tears the child down (SIGHUP + reap) before returning,
// regardless of which side ended the session.
func (d *Driver) Run(ctx context.Context, inputRx <-chan []byte, outputTx chan<- []byte) error {
	done := make(chan struct{})
	var once sync.Once
	closeDone := func() {
		once.Do(func() { close(done) })
	}

	go d.readLoop(done, closeDone, outputTx)
	go d.writeLoop(ctx, done, closeDone, inputRx)

	select {
	case <-done:
	case <-ctx.Done():
		closeDone()
		<-done
	}

	return d.teardown()
}

// readLoop pumps PTY master -> outputTx until EOF or done, and closes
// outputTx when it returns (it is the channel's only sender).
func (d *Driver) readLoop(done <-chan struct{}, closeDone func(), outputTx chan<- []byte) {
	defer close(outputTx)
	buf := make([]byte, readChunk)
	for {
		if !d.waitReadable(done) {
			return
		}
		n, eof, wouldBlock, err := nbio.Read(d.masterFd, buf)
		if err != nil {
			closeDone()
			return
		}
		if eof {
			closeDone()
			return
		}
		if wouldBlock {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case outputTx <- chunk:
		case <-done:
			return
		}
	}
}

// writeLoop pumps inputRx -> PTY master until inputRx closes or the master
// reports EOF/EPIPE.
func (d *Driver) writeLoop(ctx context.Context, done <-chan struct{}, closeDone func(), inputRx <-chan []byte) {
	var pending []byte
	for {
		if len(pending) == 0 {
			select {
			case b, ok := <-inputRx:
				if !ok {
					closeDone()
					return
				}
				pending = b
			case <-done:
				return
			}
		}

		if !d.waitWritable(done) {
			return
		}
		n, eof, wouldBlock, err := nbio.Write(d.masterFd, pending)
		if err != nil {
			closeDone()
			return
		}
		if eof {
			closeDone()
			return
		}
		if wouldBlock {
			continue
		}
		pending = pending[n:]
	}
}

// waitReadable blocks until the master fd is readable or done fires. It
// polls with a short timeout so that done is rechecked periodically.
func (d *Driver) waitReadable(done <-chan struct{}) bool {
	return d.waitPoll(done, unix.POLLIN)
}

func (d *Driver) waitWritable(done <-chan struct{}) bool {
	return d.waitPoll(done, unix.POLLOUT)
}

func (d *Driver) waitPoll(done <-chan struct{}, events int16) bool {
	const pollTimeoutMs = 200
	for {
		select {
		case <-done:
			return false
		default:
		}
		fds := []unix.PollFd{{Fd: int32(d.masterFd), Events: events}}
		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return false
		}
		if n == 0 {
			continue
		}
		return true
	}
}

// teardown sends SIGHUP to the child and reaps it. Best-effort: failures are
// swallowed, matching the original's "reap status is not surfaced" policy.
func (d *Driver) teardown() error {
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Signal(syscall.SIGHUP)
	}
	d.master.Close()
	if d.cmd.Process != nil {
		_ = d.cmd.Wait()
	}
	return nil
}
