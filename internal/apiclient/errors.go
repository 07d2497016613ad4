package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired is returned when the access token was rejected and the
// refresh credential could not renew it. Tokens and cached data have been
// cleared by the time it is returned.
var ErrSessionExpired = errors.New("session expired")

// ErrNotLoggedIn is returned by calls that need a session when no token is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// ErrRetriesExhausted wraps the last failure after every retry failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// HTTPError captures an unexpected status code and the server's message.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// newHTTPError builds an HTTPError, extracting the API's {"error": "..."} body.
func newHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: status, Body: body}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Error
	}
	return e
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// retryable reports whether err is a network-level failure worth another
// attempt: transport errors, timeouts, 5xx and 429. Other 4xx answers are
// final.
func retryable(err error) bool {
	if err == nil || errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrNotLoggedIn) || errors.Is(err, context.Canceled) {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= http.StatusInternalServerError || he.StatusCode == http.StatusTooManyRequests
	}
	return true
}
