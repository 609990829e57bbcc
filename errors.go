package germanminer

import (
	"errors"
	"fmt"

	"github.com/devDariush/germanminer-go/internal/gmapi"
)

var (
	// ErrMissingAPIKey is returned by NewClient when no API key is provided
	// and none can be discovered from the environment.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingIdentifier is returned when a player operation needs at least
	// one of playername or UUID and neither is set. No request is made.
	ErrMissingIdentifier = errors.New("player has neither playername nor uuid")

	// ErrInvalidUUID is returned for UUID inputs that cannot be parsed. No
	// request is made.
	ErrInvalidUUID = errors.New("invalid uuid")

	// ErrRequestFailed wraps every RequestError.
	ErrRequestFailed = errors.New("request failed")

	// ErrQuotaExceeded wraps every QuotaExceededError.
	ErrQuotaExceeded = errors.New("request quota exceeded")

	// ErrInvalidResponse wraps every ValidationError.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrThrottled is returned when the optional local rate limiter rejects a
	// request before it is sent. See Options.RequestsPerSecond.
	ErrThrottled = gmapi.ErrThrottled
)

// RequestError is returned when the API responds with a non-success HTTP
// status or a failure envelope. It carries the server-provided message.
type RequestError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed: %s", e.Status)
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

// QuotaExceededError is returned by the client-side quota guard when the last
// cached snapshot shows the limit reached. It is advisory: the server enforces
// the limit independently and reports that as a RequestError.
type QuotaExceededError struct {
	Requests int
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("request quota exceeded: %d/%d requests used", e.Requests, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// ValidationError is returned when a response payload does not match the
// expected shape. The resource being loaded is left untouched.
type ValidationError struct {
	Endpoint string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid response from %s: %s", e.Endpoint, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidResponse
}
