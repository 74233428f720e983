package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// TransientError marks a provider failure that may succeed on retry:
// network failures, rate limiting and 5xx responses.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// classifyStatus wraps err as transient when status calls for a retry.
// A zero status means no HTTP status was available; then only network
// failures are retried, not decoding or request-building errors.
func classifyStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if status == 0 {
		if isNetworkError(err) {
			return &TransientError{Err: err}
		}
		return err
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return &TransientError{StatusCode: status, Err: err}
	}
	return err
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
