package itemapprove

import (
	"context"
	"net/http"
	"time"
)

// Params are query parameters. Slice values are sent in bracket notation
// (key[]=a&key[]=b) and nested maps as key[sub]=v.
type Params map[string]any

// Middleware wraps dispatch of a fully shaped request.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RequestStage shapes an outbound request before dispatch. Stages run in the
// order they were configured, after the built-in header stages.
type RequestStage func(ctx context.Context, req *http.Request) error

// ResponseStage inspects or rewrites a decoded response before business
// classification. Returning an error fails the call; a *RequestError is
// passed through as is, anything else becomes a Business error.
type ResponseStage func(req *http.Request, resp *Response) error

// BusinessFailure reports whether a transport-level success carries a
// logical failure.
type BusinessFailure func(resp *Response) bool

// Option represents a configuration option
type Option func(*Orchestrator)

// RequestState is the lifecycle position of a tracked request key.
type RequestState int

const (
	StateIdle RequestState = iota
	StateDebouncing
	StateInFlight
)

func (s RequestState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

type contextKey string

const (
	CallControlKey contextKey = "itemapprove_call_control"
)

// CallControl holds per-call overrides carried on the request context.
type CallControl struct {
	// Debounce overrides the orchestrator default when non-nil.
	Debounce *time.Duration
	// Immediate bypasses debouncing entirely.
	Immediate bool
	// SkipErrorHandler suppresses the failure notification. Session expiry
	// handling still runs.
	SkipErrorHandler bool
}

func callControlFrom(ctx context.Context) CallControl {
	if cc, ok := ctx.Value(CallControlKey).(*CallControl); ok && cc != nil {
		return *cc
	}
	return CallControl{}
}

func withCallControl(ctx context.Context, update func(*CallControl)) context.Context {
	cc := callControlFrom(ctx)
	update(&cc)
	return context.WithValue(ctx, CallControlKey, &cc)
}

// WithContextDebounce sets the debounce delay for calls made with ctx.
// Zero disables debouncing.
func WithContextDebounce(ctx context.Context, d time.Duration) context.Context {
	return withCallControl(ctx, func(cc *CallControl) { cc.Debounce = &d })
}

// WithContextImmediate dispatches calls made with ctx without waiting for the
// debounce delay.
func WithContextImmediate(ctx context.Context) context.Context {
	return withCallControl(ctx, func(cc *CallControl) { cc.Immediate = true })
}

// WithContextSkipErrorHandler suppresses failure notifications for calls made
// with ctx. The error is still returned.
func WithContextSkipErrorHandler(ctx context.Context) context.Context {
	return withCallControl(ctx, func(cc *CallControl) { cc.SkipErrorHandler = true })
}
