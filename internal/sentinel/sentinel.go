// Package sentinel implements the prompt-sentinel protocol (spec.md §4.2):
// a unique PS1 string and a pre/post exit-code marker that let a session
// detect command completion and recover the exit status from an arbitrary
// interactive shell, independent of shell-specific completion hooks.
package sentinel

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
)

const (
	ps1Prefix = "SHELLPS1PREFIX"
	ps1Suffix = "SHELLPS1SUFFIX"

	exitPre  = "__EXIT__"
	exitPost = "__END__"
)

// Sentinel binds a unique prompt string to a single session, per spec.md
// §4.2: "REC sets a unique prompt string ... for every user command".
type Sentinel struct {
	PS1         string
	exitPattern *regexp.Regexp
}

// New generates a fresh Sentinel with a random 16-byte hex suffix.
func New() (Sentinel, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return Sentinel{}, fmt.Errorf("sentinel: generate random suffix: %w", err)
	}
	ps1 := ps1Prefix + hex.EncodeToString(buf) + ps1Suffix
	return Sentinel{
		PS1:         ps1,
		exitPattern: regexp.MustCompile(regexp.QuoteMeta(exitPre) + `(-?\d+)` + regexp.QuoteMeta(exitPost)),
	}, nil
}

// ShellInit returns the shell commands that install PS1/PS2 for this
// sentinel, written to the PTY once right after spawn.
func (s Sentinel) ShellInit() string {
	return fmt.Sprintf("PS1=%q; PS2=''\n", s.PS1)
}

// Frame produces the exact byte sequence REC writes to the PTY for a user
// command C, per spec.md §4.2:
//
//	C ; echo "<EXIT_SENTINEL_PRE>$?<EXIT_SENTINEL_POST>"
func (s Sentinel) Frame(cmd string) []byte {
	return []byte(fmt.Sprintf("%s ; echo \"%s$?%s\"\n", cmd, exitPre, exitPost))
}

// ExitPattern returns the compiled regex matching an exit-sentinel line,
// capturing the integer exit code in group 1.
func (s Sentinel) ExitPattern() *regexp.Regexp {
	return s.exitPattern
}

// ParseExit extracts the exit code from the first exit-sentinel match in
// buf, if any.
func (s Sentinel) ParseExit(buf []byte) (code int, matchEnd int, ok bool) {
	loc := s.exitPattern.FindSubmatchIndex(buf)
	if loc == nil {
		return 0, 0, false
	}
	n, err := strconv.Atoi(string(buf[loc[2]:loc[3]]))
	if err != nil {
		return 0, 0, false
	}
	return n, loc[1], true
}
