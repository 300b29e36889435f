package httpapi

import (
	"encoding/json"
	"fmt"
)

// Closed request/response shapes for every endpoint (spec.md §6), per the
// REDESIGN FLAG in spec.md §9: "a port should define a closed set of
// request/response shapes ... and validate once at the HTTP boundary"
// rather than the dynamically-typed containers the source used.

type createSessionRequest struct {
	Session        string `json:"session"`
	StartupSource  string `json:"startup_source,omitempty"`
	StartupTimeout float64 `json:"startup_timeout,omitempty"`
}

type createSessionResponse struct {
	SessionType string `json:"session_type"`
}

type runInSessionRequest struct {
	Session              string  `json:"session"`
	Command              string  `json:"command"`
	Timeout              float64 `json:"timeout,omitempty"`
	IsInteractiveCommand bool    `json:"is_interactive_command,omitempty"`
	Expect               string  `json:"expect,omitempty"`
	Check                bool    `json:"check,omitempty"`
}

type runInSessionResponse struct {
	Output        string `json:"output"`
	ExitCode      int    `json:"exit_code"`
	FailureReason string `json:"failure_reason"`
	ExpectString  string `json:"expect_string"`
	SessionType   string `json:"session_type"`
}

type closeSessionRequest struct {
	Session string `json:"session"`
}

type interruptSessionRequest struct {
	Session string `json:"session"`
}

// executeRequest's Command field accepts either a JSON array of strings
// or a single string (spec.md §6 "command: string[] or string"); argv()
// normalizes it.
type executeRequest struct {
	Command json.RawMessage   `json:"command"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout float64           `json:"timeout,omitempty"`
	Shell   bool              `json:"shell,omitempty"`
}

func (r *executeRequest) argv() ([]string, error) {
	if len(r.Command) == 0 {
		return nil, fmt.Errorf("command is required")
	}
	var asSlice []string
	if err := json.Unmarshal(r.Command, &asSlice); err == nil {
		return asSlice, nil
	}
	var asString string
	if err := json.Unmarshal(r.Command, &asString); err == nil {
		return []string{asString}, nil
	}
	return nil, fmt.Errorf("command must be a string or an array of strings")
}

type executeResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

type readFileRequest struct {
	Path     string `json:"path"`
	Encoding string `json:"encoding,omitempty"`
	Errors   string `json:"errors,omitempty"`
}

type readFileResponse struct {
	Content string `json:"content"`
}

type writeFileRequest struct {
	Path          string `json:"path"`
	Content       string `json:"content"`
	Encoding      string `json:"encoding,omitempty"`
	CreateParents bool   `json:"create_parents,omitempty"`
}

type sessionListResponse struct {
	Sessions []sessionInfo `json:"sessions"`
}

type sessionInfo struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	State        string `json:"state"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
}

type errorBody struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}
