// Package audit maintains a capped, thread-safe log of session and
// one-shot command activity, the same trim-on-overflow design as
// anvillm's internal/audit package (there: a multi-agent message log;
// here: a request/response trail for operators).
package audit

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	maxSize     = 8 * 1024 * 1024 // 8MB
	trimPercent = 25              // remove 25% of entries when the cap is hit
)

// Entry is one recorded operation.
type Entry struct {
	Time     time.Time
	Kind     string // "run_in_session", "execute", "read_file", ...
	Session  string // empty for one-shot operations
	Summary  string // short description, e.g. the command
	ExitCode int
	Duration time.Duration
	Err      string // failure_reason, empty on success
}

func (e Entry) String() string {
	status := "ok"
	if e.Err != "" {
		status = e.Err
	}
	sess := e.Session
	if sess == "" {
		sess = "-"
	}
	return fmt.Sprintf("%s %-12s session=%s exit=%d dur=%s %s: %s",
		e.Time.Format(time.RFC3339), e.Kind, sess, e.ExitCode, e.Duration, status, e.Summary)
}

// Log is a capped, thread-safe ring of Entry values.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	bytes   int
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{entries: make([]Entry, 0, 1000)}
}

// Append records an entry, trimming the oldest 25% of entries if the log
// has grown past maxSize — identical strategy to anvillm's audit.Log.trim.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Time = time.Now()
	l.entries = append(l.entries, e)
	l.bytes += len(e.String())

	if l.bytes > maxSize {
		l.trim()
	}
}

func (l *Log) trim() {
	if len(l.entries) == 0 {
		return
	}
	removeCount := len(l.entries) * trimPercent / 100
	if removeCount == 0 {
		removeCount = 1
	}
	removedBytes := 0
	for i := 0; i < removeCount && i < len(l.entries); i++ {
		removedBytes += len(l.entries[i].String())
	}
	l.entries = l.entries[removeCount:]
	l.bytes -= removedBytes
}

// Recent returns up to n most recent entries (0 means all).
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n >= len(l.entries) {
		out := make([]Entry, len(l.entries))
		copy(out, l.entries)
		return out
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Text renders the log as newline-separated entries.
func (l *Log) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	lines := make([]string, len(l.entries))
	for i, e := range l.entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}
