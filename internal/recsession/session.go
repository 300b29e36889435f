// Package recsession implements the Session (C3) and Session Registry (C4)
// from spec.md §4.3/§4.4: a named, long-lived shell attached to a PTY,
// driven through the prompt-sentinel protocol, with the exact timeout and
// recovery state machine spec.md §4.3 mandates. The reader-goroutine shape
// (a single goroutine owns the PTY's read side and hands chunks to the
// caller over a channel) follows anvillm's internal/session.Session, whose
// waitForPattern loop drains its PTY the same way.
package recsession

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"rec/internal/config"
	"rec/internal/errkind"
	"rec/internal/eventbus"
	"rec/internal/ptychan"
	"rec/internal/sentinel"
)

// shellArgv is the child command spawned for every Session: bash with rc
// files and history disabled, per spec.md §4.1 "disable user rc files and
// history to keep the prompt deterministic".
var shellArgv = []string{"/bin/bash", "--noprofile", "--norc", "--noediting"}

// RunResult is the outcome of a single Session.Run call (spec.md §3
// "Session action" response shape).
type RunResult struct {
	Output        string
	ExitCode      int
	FailureReason string
	ExpectString  string
	SessionType   string
}

type readChunk struct {
	data []byte
	err  error
}

// Session is a single named shell session.
type Session struct {
	Name string
	Kind string

	mu           sync.Mutex
	state        State
	createdAt    time.Time
	lastActivity time.Time

	channel *ptychan.Channel
	sent    sentinel.Sentinel
	scanner *sentinel.Scanner
	readCh  chan readChunk

	tun config.Tunables
	bus *eventbus.Bus
}

// Open spawns a new Session: a bash child on a fresh PTY, sets PS1_UNIQUE
// and PS2, and blocks until the shell has run a no-op sync command and
// printed the prompt after it (spec.md §4.3 open).
func Open(name, kind string, tun config.Tunables, bus *eventbus.Bus) (*Session, error) {
	sent, err := sentinel.New()
	if err != nil {
		return nil, errkind.New(errkind.SpawnFailed, "generate sentinel: %v", err)
	}

	ch, err := ptychan.Open(shellArgv, "", []string{"HISTFILE=/dev/null"}, ptychan.Size{Rows: tun.PTYRows, Cols: tun.PTYCols})
	if err != nil {
		return nil, errkind.New(errkind.SpawnFailed, "%v", err)
	}

	s := &Session{
		Name:         name,
		Kind:         kind,
		state:        Recovering, // not yet synced; Idle only once the first prompt is seen
		createdAt:    time.Now(),
		lastActivity: time.Now(),
		channel:      ch,
		sent:         sent,
		scanner:      sentinel.NewScanner(sent),
		readCh:       make(chan readChunk, 1),
		tun:          tun,
		bus:          bus,
	}
	go s.pump()

	if _, err := s.channel.Write([]byte(sent.ShellInit())); err != nil {
		s.channel.Close()
		return nil, errkind.New(errkind.SpawnFailed, "write shell init: %v", err)
	}
	if _, err := s.channel.Write([]byte("\n")); err != nil {
		s.channel.Close()
		return nil, errkind.New(errkind.SpawnFailed, "write warm-up: %v", err)
	}
	// The terminal echoes the init line, and that echo already contains
	// PS1_UNIQUE, so a bare prompt match fires before the shell has run
	// it. Waiting for a framed no-op's exit sentinel and the prompt after
	// it consumes every earlier prompt, leaving none for the first Run.
	if _, err := s.channel.Write(sent.Frame("true")); err != nil {
		s.channel.Close()
		return nil, errkind.New(errkind.SpawnFailed, "write sync command: %v", err)
	}

	seen, eof := s.drainUntil(func() bool {
		_, exitFound := s.scanner.ExitFound()
		return exitFound && s.scanner.PromptSeenAfterExit()
	}, tun.OpenTimeout)
	if eof {
		s.channel.Close()
		return nil, errkind.New(errkind.SpawnFailed, "shell exited before first prompt")
	}
	if !seen {
		s.channel.Close()
		return nil, errkind.New(errkind.SpawnFailed, "timed out waiting for first prompt")
	}

	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
	s.publish(eventbus.EventCreated, nil)
	return s, nil
}

// pump is the single goroutine that ever reads s.channel. It hands chunks
// (and the terminal error) to readCh; Run/Open/recovery all consume from
// readCh rather than reading the PTY directly, the same single-reader
// discipline anvillm's PTY backend uses.
func (s *Session) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.channel.Read(buf)
		chunk := readChunk{err: err}
		if n > 0 {
			chunk.data = append([]byte(nil), buf[:n]...)
		}
		s.readCh <- chunk
		if err != nil {
			return
		}
	}
}

// drainUntil reads chunks from readCh, feeding each into the scanner,
// until cond reports true or deadline elapses. eof reports whether the
// channel reported the child has exited.
func (s *Session) drainUntil(cond func() bool, deadline time.Duration) (seen bool, eof bool) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	for {
		if cond() {
			return true, false
		}
		select {
		case chunk := <-s.readCh:
			if len(chunk.data) > 0 {
				s.scanner.Write(chunk.data)
			}
			if chunk.err != nil {
				return cond(), true
			}
		case <-timer.C:
			return false, false
		}
	}
}

func (s *Session) publish(eventType string, data any) {
	if s.bus != nil {
		s.bus.Publish(s.Name, eventType, data)
	}
}

// State returns the Session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info is the metadata the registry's List exposes.
type Info struct {
	Name         string
	Kind         string
	State        string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Info snapshots the Session's metadata.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Name:         s.Name,
		Kind:         s.Kind,
		State:        s.state.String(),
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}

// Run executes command per spec.md §4.3 "run": requires IDLE, frames the
// command with the sentinel protocol, and drives the timeout/recovery
// state machine on deadline expiry.
func (s *Session) Run(command string, timeout time.Duration, expect *regexp.Regexp, check bool) (*RunResult, error) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil, errkind.New(errkind.SessionNotFound, "session %q not found", s.Name)
	}
	if s.state != Idle {
		s.mu.Unlock()
		return nil, errkind.New(errkind.SessionBusy, "session %q is busy", s.Name)
	}
	s.state = Running
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.publish(eventbus.EventRunning, command)

	s.scanner.Reset()
	// spec.md §4.3 run(): "deadline = min(action.timeout, default_timeout)";
	// an absent/non-positive timeout falls back to the default outright
	// (§3: "absent ⇒ implementation default, not infinity").
	deadline := s.tun.DefaultCommandTimeout
	if timeout > 0 && timeout < deadline {
		deadline = timeout
	}

	frame := s.sent.Frame(command)
	// The terminal echoes the whole framed line, so that is the line the
	// scanner strips from the output.
	echoed := strings.TrimSuffix(string(frame), "\n")
	if _, err := s.channel.Write(frame); err != nil {
		return s.dieOnChannelError(err)
	}

	cond := func() bool {
		if expect != nil {
			return s.scanner.ExpectSeen(expect) || s.scanner.PromptSeenAfterExit()
		}
		_, exitFound := s.scanner.ExitFound()
		return exitFound && s.scanner.PromptSeenAfterExit()
	}

	seen, eof := s.drainUntil(cond, deadline)
	if eof {
		return s.dieOnChannelError(fmt.Errorf("session exited"))
	}
	if !seen {
		return s.recover(echoed)
	}

	return s.finishRun(echoed, expect, check)
}

func (s *Session) finishRun(command string, expect *regexp.Regexp, check bool) (*RunResult, error) {
	code, exitFound := s.scanner.ExitFound()
	result := &RunResult{SessionType: s.Kind}

	if expect != nil && !exitFound {
		result.Output = s.scanner.ExpectOutput(command, expect)
		result.ExitCode = 0
		result.ExpectString = expect.String()
	} else if exitFound {
		// The newline ending the command's last output line is dropped;
		// any other trailing whitespace is kept.
		result.Output = strings.TrimSuffix(s.scanner.Output(command), "\n")
		result.ExitCode = code
		result.ExpectString = s.sent.PS1
	} else {
		result.Output = s.scanner.Output(command)
		result.ExitCode = -1
	}

	s.mu.Lock()
	s.state = Idle
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.publish(eventbus.EventIdle, result.ExitCode)

	if check && result.ExitCode != 0 {
		return result, errkind.New(errkind.CommandFailed, "command exited %d: %s", result.ExitCode, result.Output)
	}
	return result, nil
}

// recover drives the exact RECOVERING escalation sequence from spec.md
// §4.3: SIGINT, grace window, second SIGINT, grace window, raw ^C + \n,
// bounded resync. Succeeds back to IDLE or closes the session.
func (s *Session) recover(command string) (*RunResult, error) {
	s.mu.Lock()
	s.state = Recovering
	s.mu.Unlock()
	s.publish(eventbus.EventRecovering, command)

	interrupt := func() error { return s.channel.Signal(syscall.SIGINT) }

	if err := interrupt(); err != nil {
		return s.dieOnChannelError(err)
	}
	if seen, eof := s.drainUntil(s.scanner.PromptSeen, s.tun.RecoveryGrace); eof {
		return s.dieOnChannelError(fmt.Errorf("session exited during recovery"))
	} else if seen {
		return s.timedOutButRecovered(command)
	}

	if err := interrupt(); err != nil {
		return s.dieOnChannelError(err)
	}
	if seen, eof := s.drainUntil(s.scanner.PromptSeen, s.tun.RecoveryGrace2); eof {
		return s.dieOnChannelError(fmt.Errorf("session exited during recovery"))
	} else if seen {
		return s.timedOutButRecovered(command)
	}

	if err := s.channel.WriteRaw([]byte{0x03}); err != nil {
		return s.dieOnChannelError(err)
	}
	if _, err := s.channel.Write([]byte("\n")); err != nil {
		return s.dieOnChannelError(err)
	}
	seen, eof := s.drainUntil(s.scanner.PromptSeen, s.tun.ResyncDeadline)
	if eof {
		return s.dieOnChannelError(fmt.Errorf("session exited during recovery"))
	}
	if seen {
		return s.timedOutButRecovered(command)
	}

	// Resync failed: unrecoverable, per spec.md §4.3 step 6.
	output := s.scanner.Output(command)
	s.closeLocked()
	s.publish(eventbus.EventClosed, "timeout unrecoverable")
	return &RunResult{
		Output:        output,
		ExitCode:      -1,
		FailureReason: "command timed out and could not recover",
		SessionType:   s.Kind,
	}, errkind.New(errkind.CommandTimeoutUnrecoverable, "command timed out and could not recover")
}

func (s *Session) timedOutButRecovered(command string) (*RunResult, error) {
	output := s.scanner.Output(command)
	s.mu.Lock()
	s.state = Idle
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.publish(eventbus.EventTimeout, nil)
	return &RunResult{
		Output:        output,
		ExitCode:      -1,
		FailureReason: "command timed out",
		SessionType:   s.Kind,
	}, nil
}

func (s *Session) dieOnChannelError(cause error) (*RunResult, error) {
	output := s.scanner.Output("")
	s.closeLocked()
	s.publish(eventbus.EventClosed, cause.Error())
	return &RunResult{
			Output:        output,
			ExitCode:      -1,
			FailureReason: "session exited",
			SessionType:   s.Kind,
		}, errkind.New(errkind.SessionNotFound, "session %q exited: %v", s.Name, cause)
}

// Interrupt delivers SIGINT to the foreground process group, per spec.md
// §4.3 interrupt() / §5 "a second HTTP call interrupt_session ... delivers
// SIGINT ... and returns immediately".
func (s *Session) Interrupt() error {
	return s.channel.Signal(syscall.SIGINT)
}

// Close terminates the child and releases the PTY. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	err := s.closeLocked()
	s.publish(eventbus.EventClosed, nil)
	return err
}

func (s *Session) closeLocked() error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.state = Closed
	s.mu.Unlock()
	return s.channel.Close()
}
