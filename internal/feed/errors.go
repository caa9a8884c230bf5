package feed

import (
	"errors"
	"fmt"
)

// Error kinds reported by Kind.
const (
	KindNetwork    = "network"
	KindHTTPStatus = "http_status"
	KindDecode     = "decode"
	KindUnknown    = "unknown"
)

// NetworkError covers connection failures, timeouts and truncated bodies.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return fmt.Sprintf("feed: network: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for any non-2xx response.
type HTTPStatusError struct{ Code int }

func (e *HTTPStatusError) Error() string { return fmt.Sprintf("feed: unexpected status %d", e.Code) }

// DecodeError is returned when the body is not the expected JSON document.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return fmt.Sprintf("feed: decode: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// UnknownError wraps anything that does not fit the other classes.
type UnknownError struct{ Err error }

func (e *UnknownError) Error() string { return fmt.Sprintf("feed: %v", e.Err) }
func (e *UnknownError) Unwrap() error { return e.Err }

// Kind classifies err into one of the Kind* constants. Errors that did not
// come from this package are reported as KindUnknown.
func Kind(err error) string {
	var (
		ne *NetworkError
		he *HTTPStatusError
		de *DecodeError
	)
	switch {
	case errors.As(err, &ne):
		return KindNetwork
	case errors.As(err, &he):
		return KindHTTPStatus
	case errors.As(err, &de):
		return KindDecode
	default:
		return KindUnknown
	}
}
