// Package ptychan implements the PTY Channel (spec.md §4.1): spawning a
// child shell attached to a pseudo-terminal and exposing a single-reader
// byte stream plus write/signal/close.
package ptychan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
	"unsafe"

	"github.com/creack/pty"
)

// ErrClosed is returned by Write and Signal once the channel has been
// closed. No caller translates it into the CHANNEL_CLOSED error kind.
var ErrClosed = errors.New("ptychan: channel closed")

// Size is the PTY window size.
type Size struct {
	Rows uint16
	Cols uint16
}

// Channel wraps a child process attached to a PTY. Bytes read are consumed
// exactly once; the channel does no internal buffering beyond a fixed OS
// read chunk, per spec.md §4.1 — callers (the Session) must drain
// promptly.
type Channel struct {
	cmd  *exec.Cmd
	ptmx *os.File

	closed bool
}

// Open spawns argv[0] with argv[1:] attached to a new PTY pair, in the
// given working directory and with env appended to the process
// environment (env entries override inherited ones with the same key,
// since exec.Cmd.Env keeps the last match when duplicated keys are
// present; see mergeEnv).
func Open(argv []string, cwd string, env []string, size Size) (*Channel, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("ptychan: empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = mergeEnv(os.Environ(), env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return nil, fmt.Errorf("ptychan: spawn failed: %w", err)
	}

	return &Channel{cmd: cmd, ptmx: ptmx}, nil
}

// mergeEnv appends overlay entries to base, with overlay entries winning
// when a KEY= prefix collides. The last entry for a given key is what
// os/exec and the shell itself will see, so we only need to append.
func mergeEnv(base, overlay []string) []string {
	out := make([]string, 0, len(base)+len(overlay))
	out = append(out, base...)
	out = append(out, overlay...)
	return out
}

// Pid returns the child process id, or 0 if the channel has been closed.
func (c *Channel) Pid() int {
	if c.closed || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Read reads the next chunk of bytes from the PTY. Returns an error once
// the child has exited and all buffered output has been drained; on Linux
// that error wraps EIO rather than io.EOF.
func (c *Channel) Read(buf []byte) (int, error) {
	return c.ptmx.Read(buf)
}

// Write sends bytes to the PTY, as if typed at the terminal.
func (c *Channel) Write(p []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	return c.ptmx.Write(p)
}

// Signal delivers sig to the foreground process group of the PTY, which is
// how interactive terminals deliver SIGINT/SIGHUP to the job currently
// running in them rather than only to the shell itself.
func (c *Channel) Signal(sig syscall.Signal) error {
	if c.closed {
		return ErrClosed
	}
	// TIOCGPGRP on the master reports the terminal's foreground process
	// group: the running job while bash (with job control) executes a
	// command, or the shell itself while it sits at the prompt.
	var fg int32
	if rc, err := c.ptmx.SyscallConn(); err == nil {
		rc.Control(func(fd uintptr) {
			syscall.Syscall(syscall.SYS_IOCTL, fd, syscall.TIOCGPGRP, uintptr(unsafe.Pointer(&fg)))
		})
	}
	if fg > 0 {
		return syscall.Kill(-int(fg), sig)
	}
	pgid, err := unixGetpgid(c.cmd.Process.Pid)
	if err != nil {
		// Fall back to signaling the shell process directly.
		return c.cmd.Process.Signal(sig)
	}
	return syscall.Kill(-pgid, sig)
}

// WriteRaw writes bytes directly to the PTY's input side, bypassing line
// discipline assumptions — used for the final escalation in the
// RECOVERING state machine (spec.md §4.3 step 4).
func (c *Channel) WriteRaw(p []byte) error {
	_, err := c.Write(p)
	return err
}

// Close terminates the child process and releases the PTY, the
// contract being idempotent per spec.md §4.3 (close() is idempotent).
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.cmd.Process != nil {
		c.cmd.Process.Signal(syscall.SIGHUP)
		done := make(chan struct{})
		go func() { c.cmd.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
			c.cmd.Process.Kill()
			<-done
		}
	}
	return c.ptmx.Close()
}

// WaitExited reports whether err, as returned by Read, is io.EOF. It does
// not block, and it reports false for the EIO a Linux PTY returns after
// the child exits.
func WaitExited(err error) bool {
	return errors.Is(err, io.EOF)
}
