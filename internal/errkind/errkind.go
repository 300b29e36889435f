// Package errkind defines the closed set of error kinds REC's components
// raise (spec.md §7), so the HTTP layer can translate them into the
// structured {error_kind, message, traceback?} body without guessing a
// kind from an error string.
package errkind

import "fmt"

// Kind is one of the contract error-kind names from spec.md §7. The names
// are part of the client contract; treat them as stable identifiers, not
// free-form strings.
type Kind string

const (
	SessionNotFound             Kind = "SESSION_NOT_FOUND"
	SessionExists               Kind = "SESSION_EXISTS"
	SessionBusy                 Kind = "SESSION_BUSY"
	SessionClosed               Kind = "SESSION_CLOSED"
	SpawnFailed                 Kind = "SPAWN_FAILED"
	CommandTimeout              Kind = "COMMAND_TIMEOUT"
	CommandTimeoutUnrecoverable Kind = "COMMAND_TIMEOUT_UNRECOVERABLE"
	CommandFailed               Kind = "COMMAND_FAILED"
	ChannelClosed               Kind = "CHANNEL_CLOSED"
	FileNotFound                Kind = "FILE_NOT_FOUND"
	IsDirectory                 Kind = "IS_DIRECTORY"
	NotADirectory               Kind = "NOT_A_DIRECTORY"
	PermissionDenied            Kind = "PERMISSION_DENIED"
	DecodeError                 Kind = "DECODE_ERROR"
	AuthFailed                  Kind = "AUTH_FAILED"
	BadRequest                  Kind = "BAD_REQUEST"
	InternalError               Kind = "INTERNAL_ERROR"
)

// Error is the error type every REC component returns for a condition that
// needs to reach the client with a specific kind. Plain errors (e.g. from
// an internal bug) are wrapped as InternalError at the HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New constructs an *Error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
