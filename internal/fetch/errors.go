package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Fetch errors.
var (
	// ErrTooLarge is returned by Download when the response exceeds the
	// size ceiling, whether announced via Content-Length or discovered
	// mid-stream.
	ErrTooLarge = errors.New("response too large")

	// ErrUnsupportedProxy is returned when the proxy URL scheme is not
	// http, https or socks5.
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme")
)

// StatusError reports a non-success HTTP status. It carries the code so the
// crawl engine can decide between retrying and failing the page.
type StatusError struct {
	Code int
	URL  string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Retryable reports whether the status is worth another attempt. Rate
// limiting and server-side errors are transient; 4xx rejections are not.
// Notably a 401 mid-run means the session died, and re-authenticating
// under running workers is not something this tool does, so it is final.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case 408, 429:
		return true
	}
	return e.Code >= 500 && e.Code <= 599
}

// IsRetryable classifies an error from Page or Download as transient.
// Timeouts and truncated reads are transient; context cancellation and
// non-retryable statuses are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, ErrTooLarge) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// A connection that died mid-body shows up as an unexpected EOF.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
