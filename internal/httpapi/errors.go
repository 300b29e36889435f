package httpapi

import (
	"encoding/json"
	"net/http"
	rtdebug "runtime/debug"

	"rec/internal/debug"
	"rec/internal/errkind"
)

// statusApplicationError is the non-standard status spec.md §4.7 mandates
// for application errors ("HTTP status 511 ... to let clients re-raise
// faithfully"), distinct from transport-level failures.
const statusApplicationError = 511

const errAuth = "AUTH_FAILED"

// writeError translates err into the {error_kind, message} body. A
// *errkind.Error keeps its kind and uses statusApplicationError, except
// AUTH_FAILED (401) and BAD_REQUEST (400); any other
// error is reported as INTERNAL_ERROR, never silently downgraded to a bare
// 500 with no kind (spec.md §7).
func writeError(w http.ResponseWriter, err error) {
	if kerr, ok := err.(*errkind.Error); ok {
		status := statusApplicationError
		if kerr.Kind == errkind.AuthFailed {
			status = http.StatusUnauthorized
		}
		if kerr.Kind == errkind.BadRequest {
			status = http.StatusBadRequest
		}
		writeErrorf(w, status, string(kerr.Kind), kerr.Message)
		return
	}
	writeErrorf(w, statusApplicationError, string(errkind.InternalError), err.Error())
}

func writeErrorf(w http.ResponseWriter, status int, kind, message string) {
	body := errorBody{ErrorKind: kind, Message: message}
	if debug.Enabled {
		body.Traceback = string(rtdebug.Stack())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
