package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"rec/internal/audit"
	"rec/internal/config"
	"rec/internal/eventbus"
	"rec/internal/recsession"
)

const testToken = "test-token"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	tun := config.Default()
	tun.OpenTimeout = 5 * time.Second
	tun.DefaultCommandTimeout = 3 * time.Second
	bus := eventbus.New()
	reg := recsession.NewRegistry(tun, bus)
	return New(reg, audit.NewLog(), bus, testToken)
}

func post(t *testing.T, srv *Server, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func TestRootAndIsAliveRequireNoAuth(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["message"] != "hello world" {
		t.Fatalf("body = %v", body)
	}

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/is_alive", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /is_alive status = %d", rr.Code)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	srv := newTestServer(t)
	rr := post(t, srv, "/execute", map[string]any{"command": []string{"echo", "hi"}}, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestExecuteEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	srv := newTestServer(t)
	rr := post(t, srv, "/execute", map[string]any{"command": []string{"echo", "Hello, world!"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp executeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Stdout != "Hello, world!\n" || resp.ExitCode != 0 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestSessionLifecycleEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	srv := newTestServer(t)

	rr := post(t, srv, "/create_session", map[string]string{"session": "s"}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("create_session status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = post(t, srv, "/run_in_session", map[string]string{"session": "s", "command": "export MYVAR='test'"}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("run_in_session(1) status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = post(t, srv, "/run_in_session", map[string]string{"session": "s", "command": "echo $MYVAR"}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("run_in_session(2) status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp runInSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Output != "test" {
		t.Fatalf("Output = %q, want %q", resp.Output, "test")
	}

	rr = post(t, srv, "/close_session", map[string]string{"session": "s"}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("close_session(1) status = %d", rr.Code)
	}
	rr = post(t, srv, "/close_session", map[string]string{"session": "s"}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("close_session(2, idempotent) status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRunInSessionCheckFailureReturns511(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	srv := newTestServer(t)

	rr := post(t, srv, "/create_session", map[string]string{"session": "s"}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("create_session status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = post(t, srv, "/run_in_session", map[string]any{"session": "s", "command": "false", "check": true}, true)
	if rr.Code != statusApplicationError {
		t.Fatalf("status = %d, want %d, body=%s", rr.Code, statusApplicationError, rr.Body.String())
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.ErrorKind != "COMMAND_FAILED" {
		t.Fatalf("ErrorKind = %q", body.ErrorKind)
	}
}

func TestSessionNotFoundReturns511(t *testing.T) {
	srv := newTestServer(t)
	rr := post(t, srv, "/run_in_session", map[string]string{"session": "nope", "command": "echo hi"}, true)
	if rr.Code != statusApplicationError {
		t.Fatalf("status = %d, want %d", rr.Code, statusApplicationError)
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.ErrorKind != "SESSION_NOT_FOUND" {
		t.Fatalf("ErrorKind = %q", body.ErrorKind)
	}
}
