package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"rec/internal/audit"
	"rec/internal/errkind"
	"rec/internal/eventbus"
	"rec/internal/execone"
	"rec/internal/fileops"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{"message": "hello world"})
}

func (s *Server) handleIsAlive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"is_alive": true})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errkind.New(errkind.BadRequest, "invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Session == "" {
		writeError(w, errkind.New(errkind.BadRequest, "session name is required"))
		return
	}

	start := time.Now()
	_, err := s.reg.Create(req.Session, "bash")
	s.record("create_session", req.Session, "", err, start)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, createSessionResponse{SessionType: "bash"})
}

func (s *Server) handleRunInSession(w http.ResponseWriter, r *http.Request) {
	var req runInSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Session == "" || req.Command == "" {
		writeError(w, errkind.New(errkind.BadRequest, "session and command are required"))
		return
	}

	sess, err := s.reg.Get(req.Session)
	if err != nil {
		writeError(w, err)
		return
	}

	var expect *regexp.Regexp
	if req.Expect != "" {
		expect, err = regexp.Compile(req.Expect)
		if err != nil {
			writeError(w, errkind.New(errkind.BadRequest, "invalid expect regex: %v", err))
			return
		}
	}

	start := time.Now()
	result, err := sess.Run(req.Command, time.Duration(req.Timeout*float64(time.Second)), expect, req.Check)
	s.record("run_in_session", req.Session, req.Command, err, start)
	if result == nil {
		writeError(w, err)
		return
	}

	// check=true turning a non-zero exit into COMMAND_FAILED must surface
	// as a structured error, per spec.md §7 — never silently downgraded
	// to a 200 just because the session layer still returned output.
	if kerr, ok := err.(*errkind.Error); ok && kerr.Kind == errkind.CommandFailed {
		writeError(w, err)
		return
	}

	resp := runInSessionResponse{
		Output:        result.Output,
		ExitCode:      result.ExitCode,
		FailureReason: result.FailureReason,
		ExpectString:  result.ExpectString,
		SessionType:   result.SessionType,
	}
	if resp.FailureReason == "" {
		if kerr, ok := err.(*errkind.Error); ok {
			resp.FailureReason = kerr.Message
		}
	}
	writeJSON(w, resp)
}

// handleCloseSession treats a not-found session as success: spec.md §8's
// idempotent-close property requires calling close twice to succeed both
// times, even though close itself leaves a "not found" for subsequent
// unrelated operations.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	var req closeSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	err := s.reg.Close(req.Session)
	s.record("close_session", req.Session, "", nil, start)
	if err != nil {
		if kerr, ok := err.(*errkind.Error); !ok || kerr.Kind != errkind.SessionNotFound {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, map[string]any{})
}

func (s *Server) handleInterruptSession(w http.ResponseWriter, r *http.Request) {
	var req interruptSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.reg.Get(req.Session)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Interrupt(); err != nil {
		writeError(w, errkind.New(errkind.InternalError, "%v", err))
		return
	}
	writeJSON(w, map[string]any{})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	argv, err := req.argv()
	if err != nil {
		writeError(w, errkind.New(errkind.BadRequest, "%v", err))
		return
	}

	start := time.Now()
	result, err := execone.Run(context.Background(), execone.Request{
		Argv:    argv,
		Cwd:     req.Cwd,
		Env:     req.Env,
		Timeout: time.Duration(req.Timeout * float64(time.Second)),
		Shell:   req.Shell,
	})
	s.record("execute", "", joinArgv(argv), err, start)
	if result == nil {
		writeError(w, err)
		return
	}
	writeJSON(w, executeResponse{Stdout: result.Stdout, Stderr: result.Stderr, ExitCode: result.ExitCode})
}

func joinArgv(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	var req readFileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	content, err := fileops.ReadFile(req.Path, req.Encoding, fileops.ErrorPolicy(req.Errors))
	s.record("read_file", "", req.Path, err, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, readFileResponse{Content: content})
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	var req writeFileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := fileops.WriteFile(req.Path, req.Encoding, req.Content, req.CreateParents)
	s.record("write_file", "", req.Path, err, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{})
}

// handleUpload accepts a multipart file upload and writes it to the path
// given in the "path" form field — spec.md §4.6 notes chunked upload/
// download are out of core scope, so this takes the whole body in one
// multipart request.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, errkind.New(errkind.BadRequest, "invalid multipart body: %v", err))
		return
	}
	path := r.FormValue("path")
	if path == "" {
		writeError(w, errkind.New(errkind.BadRequest, "path is required"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, errkind.New(errkind.BadRequest, "file is required: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errkind.New(errkind.InternalError, "%v", err))
		return
	}
	if err := fileops.WriteFile(path, "", string(data), r.FormValue("create_parents") == "true"); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{})
}

// handleClose responds then asks the supervisor to begin shutdown,
// per spec.md §6: "POST /close — {} then server exits".
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	go s.requestClose()
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.reg.List()
	out := make([]sessionInfo, len(infos))
	for i, info := range infos {
		out[i] = sessionInfo{
			Name:         info.Name,
			Kind:         info.Kind,
			State:        info.State,
			CreatedAt:    info.CreatedAt.Format(time.RFC3339),
			LastActivity: info.LastActivity.Format(time.RFC3339),
		}
	}
	writeJSON(w, sessionListResponse{Sessions: out})
}

func (s *Server) handleDebugAudit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.audit.Text())
}

// handleDebugEvents streams newline-delimited JSON events to an operator
// until the client disconnects, per SPEC_FULL.md §3's internal event
// stream description.
func (s *Server) handleDebugEvents(w http.ResponseWriter, r *http.Request) {
	ch, cancel := s.bus.Subscribe()
	defer cancel()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			w.Write(eventbus.MarshalEvent(ev))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) record(kind, session, summary string, err error, start time.Time) {
	entry := audit.Entry{
		Kind:     kind,
		Session:  session,
		Summary:  summary,
		Duration: time.Since(start),
	}
	if kerr, ok := err.(*errkind.Error); ok {
		entry.Err = string(kerr.Kind)
	} else if err != nil {
		entry.Err = err.Error()
	}
	s.audit.Append(entry)
}
