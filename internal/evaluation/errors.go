package evaluation

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind categorizes why an evaluation failed.
type ErrorKind string

const (
	KindBusy             ErrorKind = "busy"
	KindConfigMissing    ErrorKind = "config_missing"
	KindTimeout          ErrorKind = "timeout"
	KindNetwork          ErrorKind = "network_error"
	KindUpstreamRejected ErrorKind = "upstream_rejected"
	KindNoContent        ErrorKind = "no_content"
	KindCanceled         ErrorKind = "canceled"
)

// Error is returned by the evaluator and the dispatcher. Parsing and
// correction never produce one.
type Error struct {
	Kind     ErrorKind
	Status   int    // Upstream status for KindUpstreamRejected
	Message  string // Provider supplied message where available
	Attempts int
	Elapsed  time.Duration
	Cause    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempt(s) in %s", msg, e.Attempts, e.Elapsed.Round(time.Millisecond))
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the user may simply try again shortly.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindBusy, KindTimeout, KindNetwork, KindNoContent:
		return true
	}
	return false
}

// Operational reports whether the failure is a configuration or credential
// problem on our side rather than something the user did.
func (e *Error) Operational() bool {
	switch e.Kind {
	case KindConfigMissing:
		return true
	case KindUpstreamRejected:
		switch e.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			return true
		}
	}
	return false
}

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ErrBusy is returned when another evaluation holds the gate.
var ErrBusy = &Error{Kind: KindBusy, Message: "another evaluation is in progress"}

// IsKind checks whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
