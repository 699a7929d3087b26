package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// transient is implemented by errors that a later identical call may not hit.
type transient interface {
	Transient() bool
}

// RateLimitError is an HTTP 429. RetryAfter is zero when the provider gave
// no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry in %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error   { return e.Err }
func (e *RateLimitError) Transient() bool { return true }

// UnavailableError covers transport failures, timeouts and 5xx replies.
type UnavailableError struct {
	Status int // 0 when no HTTP response arrived
	Err    error
}

func (e *UnavailableError) Error() string {
	switch {
	case e.Err == nil:
		return "provider unavailable"
	case e.Status > 0:
		return fmt.Sprintf("provider unavailable (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("provider unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error   { return e.Err }
func (e *UnavailableError) Transient() bool { return true }

// RejectedError is a 4xx other than 429: bad key, unknown model, malformed
// request. Repeating the call gives the same answer.
type RejectedError struct {
	Status int
	Err    error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("request rejected (HTTP %d): %v", e.Status, e.Err)
}

func (e *RejectedError) Unwrap() error   { return e.Err }
func (e *RejectedError) Transient() bool { return false }

// InvalidResponseError carries output that is not JSON or breaks the
// request schema. Content holds the raw output for logging.
type InvalidResponseError struct {
	Content json.RawMessage
	Err     error
}

func (e *InvalidResponseError) Error() string {
	if e.Err == nil {
		return "response does not match schema"
	}
	return "response does not match schema: " + e.Err.Error()
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// WithRetry allows only one such retry per call.
func (e *InvalidResponseError) Transient() bool { return true }

// TruncatedError is structured output cut off at MaxTokens. Asking again
// with the same budget fails the same way.
type TruncatedError struct {
	Content json.RawMessage
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("structured output truncated at max tokens after %d bytes", len(e.Content))
}

func (e *TruncatedError) Transient() bool { return false }

// classifyStatus turns an SDK error carrying an HTTP status into one of the
// typed errors above.
func classifyStatus(code int, err error) error {
	switch {
	case code == http.StatusTooManyRequests:
		return &RateLimitError{Err: err}
	case code == http.StatusRequestTimeout, code >= 500, code <= 0:
		return &UnavailableError{Status: max(code, 0), Err: err}
	case code >= 400:
		return &RejectedError{Status: code, Err: err}
	}
	return &UnavailableError{Status: code, Err: err}
}
