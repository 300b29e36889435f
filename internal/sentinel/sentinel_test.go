package sentinel

import (
	"strings"
	"testing"
)

func TestNewIsUnique(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.PS1 == b.PS1 {
		t.Fatalf("two sentinels produced the same PS1: %s", a.PS1)
	}
	if !strings.HasPrefix(a.PS1, ps1Prefix) || !strings.HasSuffix(a.PS1, ps1Suffix) {
		t.Fatalf("PS1 %q missing expected prefix/suffix", a.PS1)
	}
}

func TestFrameAndParseExit(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	frame := s.Frame("echo hi")
	if !strings.HasPrefix(string(frame), "echo hi ; echo ") {
		t.Fatalf("unexpected frame: %s", frame)
	}

	buf := []byte("hi\n" + exitPre + "0" + exitPost + "\n" + s.PS1)
	code, end, ok := s.ParseExit(buf)
	if !ok || code != 0 {
		t.Fatalf("ParseExit: code=%d ok=%v", code, ok)
	}
	if end <= 0 || end > len(buf) {
		t.Fatalf("ParseExit: bad end offset %d", end)
	}
}

func TestParseExitNegative(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	buf := []byte(exitPre + "-1" + exitPost)
	code, _, ok := s.ParseExit(buf)
	if !ok || code != -1 {
		t.Fatalf("ParseExit negative: code=%d ok=%v", code, ok)
	}
}

func TestParseExitNoMatch(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	_, _, ok := s.ParseExit([]byte("no sentinel here"))
	if ok {
		t.Fatalf("expected no match")
	}
}
