// Package apperr defines the small error taxonomy used across the
// pipeline: Validation, Transient, Corrupt, and Fatal. Handlers and
// workers switch on Kind rather than sentinel errors so the behaviour in
// §7 (client error, retry-then-drop, skip-and-count, refuse-to-start)
// stays centralized.
package apperr

import "fmt"

// Kind classifies an error for the purposes of propagation and logging.
type Kind string

const (
	// Validation errors are the caller's fault: bad camera_id, malformed
	// frame, invalid polygon. Surfaced to the caller, not logged at warn.
	Validation Kind = "validation"
	// Transient errors may succeed on retry: DB busy, slow subscriber,
	// inference timeout.
	Transient Kind = "transient"
	// Corrupt marks unusable input that should be skipped, not retried:
	// an undecodable image, a NaN feature vector.
	Corrupt Kind = "corrupt"
	// Fatal errors prevent startup or force a camera inactive.
	Fatal Kind = "fatal"
)

// Error wraps an underlying cause with a Kind and a safe, caller-facing
// message.
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

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: Validation, Message: fmt.Sprintf(format, args...)}
}

func Transientf(err error, format string, args ...any) *Error {
	return &Error{Kind: Transient, Message: fmt.Sprintf(format, args...), Err: err}
}

func Corruptf(format string, args ...any) *Error {
	return &Error{Kind: Corrupt, Message: fmt.Sprintf(format, args...)}
}

func Fatalf(err error, format string, args ...any) *Error {
	return &Error{Kind: Fatal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, defaulting to Transient for
// unclassified errors so the caller retries rather than silently drops.
func KindOf(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return Transient
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
