package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sells-group/haggle/internal/resilience"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "fetch_timeout"
	KindTransport   ErrorKind = "fetch_transport_error"
	KindNonSuccess  ErrorKind = "fetch_non_success_status"
	KindBlocked     ErrorKind = "fetch_blocked"
	KindCircuitOpen ErrorKind = "fetch_circuit_open"
	KindUnknown     ErrorKind = "fetch_unknown"
)

// Error is a classified fetch failure.
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetcher: %s: status %d from %s", e.Kind, e.StatusCode, e.URL)
	case e.Err != nil:
		return fmt.Sprintf("fetcher: %s: %s: %v", e.Kind, e.URL, e.Err)
	default:
		return fmt.Sprintf("fetcher: %s: %s", e.Kind, e.URL)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind from err. Errors not produced by this package
// are classified by inspection.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return KindCircuitOpen
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindUnknown
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classify wraps a transport-level error from the HTTP client.
func classify(url string, err error) *Error {
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindTransport, URL: url, Err: err}
}
