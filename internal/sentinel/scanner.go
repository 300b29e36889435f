package sentinel

import (
	"bytes"
	"regexp"
	"strings"
)

// Scanner accumulates PTY output and scans it for the exit sentinel and
// the prompt, per Design Note §9: "scan the accumulating buffer, not
// assume line-buffered reads" — the PTY reader goroutine hands us
// arbitrary chunks, not lines.
type Scanner struct {
	sentinel Sentinel
	buf      bytes.Buffer

	exitCode    int
	exitFound   bool
	exitMatchAt int // byte offset in buf just past the exit-sentinel match
}

// NewScanner creates a Scanner bound to sentinel.
func NewScanner(s Sentinel) *Scanner {
	return &Scanner{sentinel: s}
}

// Reset clears accumulated output, called on every RUNNING transition
// (spec.md §3 Session invariants: "buffer is cleared on every transition
// into RUNNING").
func (sc *Scanner) Reset() {
	sc.buf.Reset()
	sc.exitFound = false
	sc.exitCode = 0
	sc.exitMatchAt = 0
}

// Write feeds newly-read bytes into the accumulator.
func (sc *Scanner) Write(p []byte) {
	sc.buf.Write(p)
	if !sc.exitFound {
		if code, end, ok := sc.sentinel.ParseExit(sc.buf.Bytes()); ok {
			sc.exitCode = code
			sc.exitFound = true
			sc.exitMatchAt = end
		}
	}
}

// ExitFound reports whether the exit sentinel line has been seen yet, and
// its parsed code.
func (sc *Scanner) ExitFound() (code int, ok bool) {
	return sc.exitCode, sc.exitFound
}

// PromptSeenAfterExit reports whether PS1_UNIQUE has appeared in the
// buffer after the exit sentinel match — the second half of the §4.2
// completion condition: "(b) the next occurrence of PS1_UNIQUE".
func (sc *Scanner) PromptSeenAfterExit() bool {
	if !sc.exitFound {
		return false
	}
	return bytes.Contains(sc.buf.Bytes()[sc.exitMatchAt:], []byte(sc.sentinel.PS1))
}

// PromptSeen reports whether PS1_UNIQUE has appeared anywhere in the
// buffer, used during open() to detect the first prompt.
func (sc *Scanner) PromptSeen() bool {
	return bytes.Contains(sc.buf.Bytes(), []byte(sc.sentinel.PS1))
}

// ExpectSeen reports whether the custom expect regex (§4.2 "Alternative
// sentinel") has matched anywhere in the buffer.
func (sc *Scanner) ExpectSeen(expect *regexp.Regexp) bool {
	return expect.Match(sc.buf.Bytes())
}

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// Output returns the command's output per spec.md §4.2/§4.3 normalization:
// everything before the exit sentinel, with the echoed command line
// stripped if present, \r\n normalized to \n, and ANSI escapes removed.
func (sc *Scanner) Output(echoedCommand string) string {
	raw := sc.buf.Bytes()
	end := len(raw)
	if sc.exitFound {
		if loc := sc.sentinel.exitPattern.FindIndex(raw); loc != nil {
			end = loc[0]
		}
	}
	out := string(raw[:end])
	out = ansiRE.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.TrimRight(out, "\r")

	if echoedCommand != "" {
		lines := strings.SplitN(out, "\n", 2)
		if len(lines) > 0 && strings.TrimRight(lines[0], "\r") == strings.TrimRight(echoedCommand, "\r") {
			if len(lines) == 2 {
				out = lines[1]
			} else {
				out = ""
			}
		}
	}
	return out
}

// ExpectOutput returns accumulated output up to (and not including) the
// first match of expect, used for interactive "expect" mode.
func (sc *Scanner) ExpectOutput(echoedCommand string, expect *regexp.Regexp) string {
	raw := sc.buf.Bytes()
	end := len(raw)
	if loc := expect.FindIndex(raw); loc != nil {
		end = loc[0]
	}
	out := string(raw[:end])
	out = ansiRE.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.TrimRight(out, "\r")

	if echoedCommand != "" {
		lines := strings.SplitN(out, "\n", 2)
		if len(lines) > 0 && strings.TrimRight(lines[0], "\r") == strings.TrimRight(echoedCommand, "\r") {
			if len(lines) == 2 {
				out = lines[1]
			} else {
				out = ""
			}
		}
	}
	return out
}
