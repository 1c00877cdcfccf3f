package lrclib

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorKind tags an upstream failure so callers can choose a message without
// looking at error text.
type ErrorKind int

const (
	KindOther       ErrorKind = iota // anything not covered below
	KindTimeout                      // connect or read timeout
	KindUnreachable                  // host could not be resolved or dialed
	KindNotFound                     // LRCLIB has no such track
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Kind    ErrorKind
	Op      string // "search" or "get"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := "lrclib " + e.Op + ": " + e.Message
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error
func NewError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsNotFound reports whether err classifies as KindNotFound.
func IsNotFound(err error) bool {
	return Classify(err) == KindNotFound
}

// Classify maps any error to an ErrorKind. Errors produced by this package
// carry their kind; for foreign errors the transport error chain is
// inspected, and as a last resort an error text mentioning HTTP 404 is
// treated as not found.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindOther
	}

	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}

	if kind, ok := transportKind(err); ok {
		return kind
	}

	if strings.Contains(err.Error(), "404") {
		return KindNotFound
	}
	return KindOther
}

// transportKind recognises timeouts and unreachable hosts in a net/http
// error chain.
func transportKind(err error) (ErrorKind, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnreachable, true
	}

	return KindOther, false
}
