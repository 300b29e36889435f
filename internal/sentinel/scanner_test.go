package sentinel

import "testing"

func TestScannerExitDetection(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	sc := NewScanner(s)

	sc.Write([]byte("echo hi ; echo \"" + exitPre + "$?" + exitPost + "\"\n"))
	sc.Write([]byte("hi\n"))
	if _, ok := sc.ExitFound(); ok {
		t.Fatalf("exit sentinel should not match the echoed command line")
	}

	sc.Write([]byte(exitPre + "0" + exitPost + "\n"))
	code, ok := sc.ExitFound()
	if !ok || code != 0 {
		t.Fatalf("ExitFound: code=%d ok=%v", code, ok)
	}
	if sc.PromptSeenAfterExit() {
		t.Fatalf("prompt should not be seen yet")
	}

	sc.Write([]byte(s.PS1))
	if !sc.PromptSeenAfterExit() {
		t.Fatalf("prompt should now be seen after the exit sentinel")
	}
}

func TestScannerOutputStripsEchoAndSentinel(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	sc := NewScanner(s)

	cmd := "echo hi ; echo \"" + exitPre + "$?" + exitPost + "\""
	sc.Write([]byte(cmd + "\r\n"))
	sc.Write([]byte("hi\r\n"))
	sc.Write([]byte(exitPre + "0" + exitPost + "\n"))
	sc.Write([]byte(s.PS1))

	out := sc.Output(cmd)
	if out != "hi\n" {
		t.Fatalf("Output = %q, want %q", out, "hi\n")
	}
}

func TestScannerReset(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	sc := NewScanner(s)
	sc.Write([]byte(exitPre + "1" + exitPost))
	if _, ok := sc.ExitFound(); !ok {
		t.Fatalf("expected exit found before reset")
	}
	sc.Reset()
	if _, ok := sc.ExitFound(); ok {
		t.Fatalf("expected exit cleared after reset")
	}
}
