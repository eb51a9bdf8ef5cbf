// Package nbio provides non-blocking read/write primitives over raw file
// descriptors, normalizing the POSIX error codes a PTY master produces once
// its child has exited.
package nbio

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// SetNonblocking marks fd non-blocking. Idempotent.
func SetNonblocking(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("set non-blocking: %w", err)
	}
	return nil
}

// Read reads from fd into buf.
//
// eof is true when the peer is gone: either a genuine zero-byte read or the
// PTY master's EIO, which POSIX returns once the slave side's last process
// has exited. wouldBlock is true when the fd had nothing to read right now.
// Exactly one of (n>0), eof, wouldBlock holds on a nil error.
func Read(fd int, buf []byte) (n int, eof bool, wouldBlock bool, err error) {
	for {
		n, err = unix.Read(fd, buf)
		if err == nil {
			if n == 0 {
				return 0, true, false, nil
			}
			return n, false, false, nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, false, true, nil
		}
		if errors.Is(err, unix.EIO) {
			return 0, true, false, nil
		}
		return 0, false, false, fmt.Errorf("read: %w", err)
	}
}

// Write writes buf to fd, returning the normalized Progress the same way Read does.
//
// EPIPE (the child exited mid-write) is normalized to eof, matching the
// driver's "a gone peer is not a failure" policy.
func Write(fd int, buf []byte) (n int, eof bool, wouldBlock bool, err error) {
	for {
		n, err = unix.Write(fd, buf)
		if err == nil {
			return n, false, false, nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, false, true, nil
		}
		if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.EIO) {
			return 0, true, false, nil
		}
		return 0, false, false, fmt.Errorf("write: %w", err)
	}
}
