package chat

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service wraps exactly one of them.
var (
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrClosedSession = errors.New("session is closed")
	ErrUpstream      = errors.New("upstream failure")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Stable codes carried to clients and used as localization keys.
const (
	CodeConcernRequired   = "concern_required"
	CodeConcernTooLong    = "concern_too_long"
	CodeIdentityRequired  = "identity_required"
	CodeMessageRequired   = "message_required"
	CodeMessageTooLong    = "message_too_long"
	CodeInvalidSender     = "invalid_sender"
	CodeInvalidStatus     = "invalid_status"
	CodeAdminRequired     = "admin_required"
	CodeOpenSessionExists = "open_session_exists"
	CodeNotPending        = "session_not_pending"
	CodeSessionNotFound   = "session_not_found"
	CodeNoAnonymousChat   = "no_anonymous_chat"
	CodeSessionClosed     = "session_closed"
	CodeUpstream          = "upstream"
	CodeUnauthorized      = "unauthorized"
)

// Error is a classified service failure.
type Error struct {
	Kind error
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// CodeOf returns the client-facing code of err, or CodeUpstream for
// anything unclassified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUpstream
}

func validation(code, msg string) error {
	return &Error{Kind: ErrValidation, Code: code, Msg: msg}
}

func conflict(code, msg string) error {
	return &Error{Kind: ErrConflict, Code: code, Msg: msg}
}

func notFound(code string) error {
	return &Error{Kind: ErrNotFound, Code: code, Msg: "no such session for this caller"}
}

func closed() error {
	return &Error{Kind: ErrClosedSession, Code: CodeSessionClosed, Msg: "session no longer accepts messages"}
}

func upstream(op string, err error) error {
	return &Error{Kind: ErrUpstream, Code: CodeUpstream, Msg: op, Err: err}
}

// Unauthorized rejects a caller; msg says which credential failed and is
// logged, never shown.
func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Code: CodeUnauthorized, Msg: msg}
}
