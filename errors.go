package itemapprove

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error types
const (
	// ErrorTypeNetwork means no response was received (DNS, connection, timeout).
	ErrorTypeNetwork = "Network"
	// ErrorTypeHTTPStatus means the server answered with a non-2xx status.
	ErrorTypeHTTPStatus = "HttpStatus"
	// ErrorTypeBusiness means a 2xx response whose payload reports a failure.
	ErrorTypeBusiness = "Business"
	// ErrorTypeCancelled means the request was superseded, evicted or aborted.
	ErrorTypeCancelled = "Cancelled"
	// ErrorTypeValidation covers configuration and request-construction errors.
	ErrorTypeValidation = "Validation"
)

// Sentinel errors carried as the Cause of a RequestError.
var (
	// ErrSuperseded is the cause of a Cancelled error when a newer call with
	// the same key replaced the request.
	ErrSuperseded = errors.New("itemapprove: superseded by a newer request")

	// ErrCancelled is the cause when CancelAll aborted the request.
	ErrCancelled = errors.New("itemapprove: cancelled")

	// ErrEvicted is the cause when background eviction dropped the request.
	ErrEvicted = errors.New("itemapprove: evicted")

	// ErrClosed is the cause for calls made after Close.
	ErrClosed = errors.New("itemapprove: orchestrator closed")

	// ErrTimeout is the cause of a Network error when the per-request timeout
	// elapsed.
	ErrTimeout = errors.New("itemapprove: request timeout")
)

// RequestError is the classified failure returned by every orchestrator call.
type RequestError struct {
	Type       string
	Message    string
	Cause      error
	StatusCode int
	// Code is the business code (inside_code, falling back to code) for
	// Business errors.
	Code int
	// Response is the decoded payload for HttpStatus and Business errors.
	Response  *Response
	RequestID string
	Method    string
	URL       string
	Key       string
	Timestamp time.Time
	Duration  time.Duration
}

// Error implements error interface.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*RequestError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *RequestError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Key != "" {
		info += fmt.Sprintf("Key: %s\n", e.Key)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Type == ErrorTypeBusiness {
		info += fmt.Sprintf("Business Code: %d\n", e.Code)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// AsRequestError extracts a *RequestError from err's chain.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	ok := errors.As(err, &reqErr)
	return reqErr, ok
}

// IsCancelled reports whether err is a Cancelled error. Callers treat these
// as stale results and ignore them.
func IsCancelled(err error) bool {
	reqErr, ok := AsRequestError(err)
	return ok && reqErr.Type == ErrorTypeCancelled
}

// IsBusiness reports whether err is a Business error.
func IsBusiness(err error) bool {
	reqErr, ok := AsRequestError(err)
	return ok && reqErr.Type == ErrorTypeBusiness
}

// IsNetwork reports whether err is a Network error, the only kind a caller
// may reasonably retry.
func IsNetwork(err error) bool {
	reqErr, ok := AsRequestError(err)
	return ok && reqErr.Type == ErrorTypeNetwork
}

// IsUnauthorized reports whether err is an HTTP 401.
func IsUnauthorized(err error) bool {
	reqErr, ok := AsRequestError(err)
	return ok && reqErr.Type == ErrorTypeHTTPStatus && reqErr.StatusCode == http.StatusUnauthorized
}

var statusMessages = map[int]string{
	http.StatusOK:                  "The server returned the requested data.",
	http.StatusCreated:             "The data was created or modified.",
	http.StatusAccepted:            "The request was queued for background processing.",
	http.StatusNoContent:           "The data was deleted.",
	http.StatusBadRequest:          "The request was malformed; the server did not create or modify any data.",
	http.StatusUnauthorized:        "You are not signed in or your session has expired.",
	http.StatusForbidden:           "You are signed in but access to this resource is forbidden.",
	http.StatusNotFound:            "The requested resource does not exist.",
	http.StatusMethodNotAllowed:    "The request method is not allowed.",
	http.StatusNotAcceptable:       "The requested format is not available.",
	http.StatusRequestTimeout:      "The server timed out waiting for the request.",
	http.StatusGone:                "The requested resource was permanently deleted.",
	http.StatusUnprocessableEntity: "A validation error occurred while saving the data.",
	http.StatusTooManyRequests:     "Too many requests; please slow down.",
	http.StatusInternalServerError: "The server encountered an error; please check the server.",
	http.StatusBadGateway:          "Gateway error.",
	http.StatusServiceUnavailable:  "The service is unavailable; the server is overloaded or under maintenance.",
	http.StatusGatewayTimeout:      "Gateway timeout.",
}

// StatusMessage returns the user-facing text for an HTTP status code.
func StatusMessage(code int) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("The request failed with status %d.", code)
}
