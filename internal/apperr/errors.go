package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies orchestration failures so the facade can normalize them
// into the public status shapes without leaking broker/storage internals.
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindIncompleteUpload  Kind = "INCOMPLETE_UPLOAD"
	KindOutOfRange        Kind = "OUT_OF_RANGE"
	KindNotFound          Kind = "NOT_FOUND"
	KindBrokerUnreachable Kind = "BROKER_UNREACHABLE"
	KindWorkerReported    Kind = "WORKER_REPORTED"
	KindStorage           Kind = "STORAGE"
	KindConflict          Kind = "CONFLICT"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(format string, args ...interface{}) *Error {
	return New(KindInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// KindOf extracts the classification of err, or empty string for plain errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
