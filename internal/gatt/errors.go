package gatt

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the closed set of failures the client surfaces.
type ErrorKind string

const (
	NotConnected    ErrorKind = "not_connected"
	Timeout         ErrorKind = "timeout"
	NoResponse      ErrorKind = "no_response"
	StreamClosed    ErrorKind = "stream_closed"
	InvalidArgument ErrorKind = "invalid_argument"
)

// ClientError is the error type for all client operation failures. Callers
// match on kind via errors.Is against the package sentinels.
type ClientError struct {
	Kind ErrorKind
	Msg  string
}

func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is allows errors.Is to compare ClientError values by kind.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors, one per kind.
var (
	ErrNotConnected    = &ClientError{Kind: NotConnected}
	ErrTimeout         = &ClientError{Kind: Timeout}
	ErrNoResponse      = &ClientError{Kind: NoResponse}
	ErrStreamClosed    = &ClientError{Kind: StreamClosed}
	ErrInvalidArgument = &ClientError{Kind: InvalidArgument}
)

// clientErrorf builds a ClientError with a formatted message.
func clientErrorf(kind ErrorKind, format string, args ...any) error {
	return &ClientError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a ClientError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var cerr *ClientError
	if errors.As(err, &cerr) {
		return cerr.Kind == kind
	}
	return false
}
