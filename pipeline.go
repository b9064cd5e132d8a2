package itemapprove

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	requestIDKey   contextKey = "itemapprove_request_id"
	tokenLookupKey            = "token"

	// RequestIDHeader carries the request ID to the backend.
	RequestIDHeader = "X-Request-ID"
)

func withRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the ID of the request being shaped, for use in
// custom request stages and middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// buildRequestPipeline composes the built-in header stages followed by the
// configured ones. It runs once at construction.
func (o *Orchestrator) buildRequestPipeline() []RequestStage {
	stages := []RequestStage{
		contentTypeStage,
		o.identityStage,
		o.authStage,
		requestIDStage,
	}
	return append(stages, o.requestStages...)
}

func contentTypeStage(_ context.Context, req *http.Request) error {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return nil
}

func (o *Orchestrator) identityStage(_ context.Context, req *http.Request) error {
	if o.identity != "" {
		req.Header.Set(o.identityHeader, o.identity)
	}
	return nil
}

// authStage reads the bearer token. Concurrent requests share one lookup so a
// burst of calls does not hammer a remote token store.
func (o *Orchestrator) authStage(ctx context.Context, req *http.Request) error {
	if o.tokens == nil {
		return nil
	}
	token, err, _ := o.tokenLookups.Do(ctx, tokenLookupKey, func() (string, error) {
		// the lookup is shared, so one caller's cancellation must not fail the rest
		return o.tokens.Token(context.WithoutCancel(ctx))
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RequestError{Type: ErrorTypeNetwork, Message: "token lookup failed", Cause: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func requestIDStage(ctx context.Context, req *http.Request) error {
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	return nil
}

// dispatch shapes, sends and classifies one request. ctx is the request's
// cancellable context; the timeout is layered below it so the two causes
// stay distinguishable.
func (o *Orchestrator) dispatch(ctx context.Context, c *call) (*Response, *RequestError) {
	dctx, cancel := context.WithTimeoutCause(ctx, o.timeout, ErrTimeout)
	defer cancel()

	req, err := o.newHTTPRequest(dctx, c)
	if err != nil {
		return nil, o.newError(c, ErrorTypeValidation, "request could not be built", err)
	}

	for _, stage := range o.pipeline {
		if err := stage(dctx, req); err != nil {
			return nil, o.stageError(ctx, dctx, c, err)
		}
	}

	o.metrics.RecordRequestStart(c.method, c.endpoint)
	httpResp, err := o.executeMiddleware(req)
	var body []byte
	if err == nil {
		body, err = io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
	}
	o.metrics.RecordRequestEnd(c.method, c.endpoint)

	statusCode := 0
	if httpResp != nil {
		statusCode = httpResp.StatusCode
	}
	o.metrics.RecordRequest(c.method, c.endpoint, statusCode, time.Since(c.start))

	return o.classify(ctx, dctx, c, req, httpResp, body, err)
}

func (o *Orchestrator) newHTTPRequest(ctx context.Context, c *call) (*http.Request, error) {
	target := c.url
	if q := c.query; q != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + q
	}

	var body io.Reader
	if c.body != nil {
		body = strings.NewReader(c.payload)
	}
	return http.NewRequestWithContext(ctx, c.method, target, body)
}

func (o *Orchestrator) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(o.middleware) == 0 {
		return o.httpClient.Do(req)
	}

	current := RoundTripperFunc(o.httpClient.Do)

	for i := len(o.middleware) - 1; i >= 0; i-- {
		middleware := o.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// classify is the single point where an outcome becomes a Response or a
// RequestError. A cancelled request context wins over whatever the transport
// produced, so a late response of a superseded call is never delivered.
func (o *Orchestrator) classify(ctx, dctx context.Context, c *call, req *http.Request, httpResp *http.Response, body []byte, transportErr error) (*Response, *RequestError) {
	if ctx.Err() != nil {
		return nil, o.cancelledError(c, ctx)
	}

	if transportErr != nil {
		if errors.Is(context.Cause(dctx), ErrTimeout) {
			return nil, o.newError(c, ErrorTypeNetwork, "request timed out", fmt.Errorf("%w after %v: %w", ErrTimeout, o.timeout, transportErr))
		}
		return nil, o.newError(c, ErrorTypeNetwork, "network request failed", transportErr)
	}

	resp := parseResponse(httpResp.StatusCode, httpResp.Header, body)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		reqErr := o.newError(c, ErrorTypeHTTPStatus, StatusMessage(httpResp.StatusCode), nil)
		reqErr.StatusCode = httpResp.StatusCode
		reqErr.Response = resp
		return nil, reqErr
	}

	for _, stage := range o.responseStages {
		if err := stage(req, resp); err != nil {
			var reqErr *RequestError
			if errors.As(err, &reqErr) {
				return nil, o.fillError(c, reqErr)
			}
			reqErr = o.newError(c, ErrorTypeBusiness, err.Error(), err)
			reqErr.StatusCode = resp.StatusCode
			reqErr.Code = businessCode(resp)
			reqErr.Response = resp
			return nil, reqErr
		}
	}

	if o.businessFailure(resp) {
		msg := resp.Msg
		if msg == "" {
			msg = "The request was not successful."
		}
		reqErr := o.newError(c, ErrorTypeBusiness, msg, nil)
		reqErr.StatusCode = resp.StatusCode
		reqErr.Code = businessCode(resp)
		reqErr.Response = resp
		return nil, reqErr
	}

	return resp, nil
}

func (o *Orchestrator) stageError(ctx, dctx context.Context, c *call, err error) *RequestError {
	if ctx.Err() != nil {
		return o.cancelledError(c, ctx)
	}
	if errors.Is(context.Cause(dctx), ErrTimeout) {
		return o.newError(c, ErrorTypeNetwork, "request timed out", ErrTimeout)
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return o.fillError(c, reqErr)
	}
	return o.newError(c, ErrorTypeValidation, "request stage failed", err)
}

func (o *Orchestrator) cancelledError(c *call, ctx context.Context) *RequestError {
	cause := context.Cause(ctx)
	msg := "request cancelled"
	switch {
	case cause == nil:
		cause = ErrCancelled
	case errors.Is(cause, ErrSuperseded):
		msg = "superseded by a newer request"
	case errors.Is(cause, ErrEvicted):
		msg = "evicted from request tracking"
	case errors.Is(cause, ErrClosed):
		msg = "orchestrator closed"
	}
	return o.newError(c, ErrorTypeCancelled, msg, cause)
}

func (o *Orchestrator) newError(c *call, errorType, message string, cause error) *RequestError {
	return o.fillError(c, &RequestError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	})
}

func (o *Orchestrator) fillError(c *call, reqErr *RequestError) *RequestError {
	reqErr.RequestID = c.requestID
	reqErr.Method = c.method
	reqErr.URL = c.url
	reqErr.Key = c.key
	reqErr.Timestamp = time.Now()
	reqErr.Duration = time.Since(c.start)
	return reqErr
}

// endpointOf reduces a URL to host + path for metric labels.
func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}
	return builder.String()
}
