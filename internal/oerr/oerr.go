// Package oerr defines typed errors with stable machine-readable kinds.
// Every failure surfaced to an MCP client carries a Kind tag plus a
// human-readable message, so callers can distinguish caller mistakes
// (validation, permission) from backend faults (transient, remote) without
// parsing message text.
package oerr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindValidation indicates a malformed or disallowed filter, field, or
	// argument. The caller must fix the call; never retried.
	KindValidation Kind = "validation"
	// KindPermission indicates the model/operation is not permitted under the
	// current access policy. Never retried.
	KindPermission Kind = "permission_denied"
	// KindUnknownTool indicates the dispatcher cannot resolve the tool name.
	KindUnknownTool Kind = "unknown_tool"
	// KindAuth indicates the backend rejected the configured credentials.
	KindAuth Kind = "auth"
	// KindTransient indicates a network or timeout failure against the
	// backend. Eligible for a bounded number of retries.
	KindTransient Kind = "transient"
	// KindRemote indicates the backend itself rejected the operation, e.g. a
	// business-rule violation. Surfaced verbatim, never retried.
	KindRemote Kind = "remote_error"
)

// E wraps an error with a kind and a human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

// New creates an error with a kind and message.
func New(kind Kind, msg string) *E { return &E{Kind: kind, Message: msg} }

// Newf creates an error with a kind and a formatted message.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }

// Wrapf attaches a kind and a formatted message to an underlying error.
func Wrapf(kind Kind, err error, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain. Errors that never passed
// through this package report KindRemote, the conservative default: they
// reached us from the backend boundary and retrying is not safe.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRemote
}

// IsRetryable reports whether the error is worth retrying.
func IsRetryable(err error) bool { return KindOf(err) == KindTransient }

// MessageOf returns the human-readable message without the kind prefix.
func MessageOf(err error) string {
	var e *E
	if errors.As(err, &e) {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return err.Error()
}
