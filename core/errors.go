package core

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a required identity, account, or source lookup
// yielded nothing. It is fatal for the current operation.
type NotFoundError struct {
	Kind string // what was looked up, e.g. "identity", "source"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// RemoteError reports a rejected or failed platform API call. Status is the
// HTTP status, or zero when the call failed before a response arrived.
type RemoteError struct {
	Status int
	Msg    string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote call failed (HTTP %d): %s", e.Status, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("remote call failed: %v", e.Err)
	}
	return fmt.Sprintf("remote call failed: %s", e.Msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ValidationError reports invalid input to a connector operation, e.g. an
// unsupported change op. It is surfaced immediately, never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
