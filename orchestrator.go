package itemapprove

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Yuexixi123/ItemApprove-sub001/internal/querystring"
	"github.com/Yuexixi123/ItemApprove-sub001/internal/singleflight"
)

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultTimeout        = 15 * time.Second
	DefaultMaxTracked     = 1000
	DefaultEvictInterval  = 5 * time.Minute
	DefaultRedirectDelay  = 1500 * time.Millisecond
	DefaultIdentityHeader = "X-User"
	DefaultLoginURL       = "/user/login"
)

// Orchestrator mediates every outbound call of the console: it keys, debounces
// and de-duplicates requests (last write wins), shapes headers, dispatches,
// and classifies the outcome. It is safe for concurrent use. Each instance
// owns its own tracking state.
type Orchestrator struct {
	httpClient      *http.Client
	baseURL         string
	timeout         time.Duration
	debounce        time.Duration
	identityHeader  string
	identity        string
	tokens          TokenStore
	tokenLookups    *singleflight.Group[string]
	tokenClears     *singleflight.Group[struct{}]
	notifier        Notifier
	session         *sessionGuard
	businessFailure BusinessFailure
	requestStages   []RequestStage
	responseStages  []ResponseStage
	middleware      []Middleware
	pipeline        []RequestStage
	tracker         *RequestTracker
	maxTracked      int
	evictInterval   time.Duration
	metrics         *MetricsCollector
	debug           *DebugConfig
	logger          Logger
	validationError error

	closeOnce   sync.Once
	stop        chan struct{}
	janitorDone chan struct{}
}

// call carries one Send through the pipeline.
type call struct {
	method    string
	url       string
	endpoint  string
	key       string
	requestID string
	query     string
	body      any
	payload   string
	start     time.Time
}

// New constructs an Orchestrator using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
// Background eviction starts only for a valid configuration; call Close to
// stop it.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		httpClient:      &http.Client{},
		timeout:         DefaultTimeout,
		debounce:        DefaultDebounce,
		identityHeader:  DefaultIdentityHeader,
		tokens:          NewMemoryTokenStore(""),
		tokenLookups:    singleflight.New[string](),
		tokenClears:     singleflight.New[struct{}](),
		session:         &sessionGuard{loginURL: DefaultLoginURL, delay: DefaultRedirectDelay},
		businessFailure: DefaultBusinessFailure,
		tracker:         NewRequestTracker(),
		maxTracked:      DefaultMaxTracked,
		evictInterval:   DefaultEvictInterval,
		debug:           DefaultDebugConfig(),
		stop:            make(chan struct{}),
	}

	for _, option := range options {
		option(o)
	}

	if o.notifier == nil {
		o.notifier = LogNotifier{Logger: o.log()}
	}
	if o.session.handler == nil {
		o.session.handler = SessionExpiredFunc(func(_ context.Context, loginURL string) {
			o.log().Warn("Session expired, login required", "loginURL", loginURL)
		})
	}
	o.pipeline = o.buildRequestPipeline()

	if err := o.ValidateConfiguration(); err != nil {
		o.validationError = err
	}

	if o.validationError == nil && o.evictInterval > 0 {
		o.janitorDone = make(chan struct{})
		go o.runJanitor()
	}

	return o
}

// Get sends a GET with query params.
func (o *Orchestrator) Get(ctx context.Context, path string, params Params) (*Response, error) {
	return o.Send(ctx, http.MethodGet, path, params, nil)
}

// Post sends a POST with a JSON body.
func (o *Orchestrator) Post(ctx context.Context, path string, body any) (*Response, error) {
	return o.Send(ctx, http.MethodPost, path, nil, body)
}

// Put sends a PUT with a JSON body.
func (o *Orchestrator) Put(ctx context.Context, path string, body any) (*Response, error) {
	return o.Send(ctx, http.MethodPut, path, nil, body)
}

// Delete sends a DELETE with query params.
func (o *Orchestrator) Delete(ctx context.Context, path string, params Params) (*Response, error) {
	return o.Send(ctx, http.MethodDelete, path, params, nil)
}

// GetJSON sends a GET and decodes the response data into v.
func (o *Orchestrator) GetJSON(ctx context.Context, path string, params Params, v any) error {
	resp, err := o.Get(ctx, path, params)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// PostJSON sends a POST and decodes the response data into v.
func (o *Orchestrator) PostJSON(ctx context.Context, path string, body, v any) error {
	resp, err := o.Post(ctx, path, body)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// Send issues one request. Body may be nil, a string or []byte sent
// verbatim, or any value that is JSON encoded.
//
// A call with the same method, URL, params and body as a request that is
// still debouncing or in flight supersedes it; the older call returns a
// Cancelled error. Failures other than Cancelled produce one notification
// unless the context carries WithContextSkipErrorHandler, and are returned
// as *RequestError.
func (o *Orchestrator) Send(ctx context.Context, method, path string, params Params, body any) (*Response, error) {
	return o.send(ctx, method, path, querystring.Encode(params), body)
}

// SendValues is Send for callers holding url.Values. Multi-valued keys are
// sent in bracket notation, so a request built from url.Values{"tag": {"a"}}
// shares its key with one built from Params{"tag": "a"}.
func (o *Orchestrator) SendValues(ctx context.Context, method, path string, values url.Values, body any) (*Response, error) {
	return o.send(ctx, method, path, querystring.EncodeValues(values), body)
}

func (o *Orchestrator) send(ctx context.Context, method, path, query string, body any) (*Response, error) {
	ctrl := callControlFrom(ctx)
	c := &call{
		method:    strings.ToUpper(method),
		url:       o.resolveURL(path),
		requestID: o.newRequestID(),
		query:     query,
		body:      body,
		start:     time.Now(),
	}
	c.endpoint = endpointOf(c.url)

	if o.validationError != nil {
		return nil, o.fail(ctx, ctrl, c, o.newError(c, ErrorTypeValidation, "invalid orchestrator configuration", o.validationError))
	}

	payload, err := querystring.Body(body)
	if err != nil {
		return nil, o.fail(ctx, ctrl, c, o.newError(c, ErrorTypeValidation, "request body could not be serialized", err))
	}
	c.payload = payload
	c.key = querystring.Key(c.method, c.url, c.query, payload)

	reqCtx, cancel := context.WithCancelCause(withRequestID(ctx, c.requestID))
	defer cancel(nil)

	p, prevState, err := o.tracker.begin(c.key, cancel)
	if err != nil {
		return nil, o.fail(ctx, ctrl, c, o.newError(c, ErrorTypeCancelled, "orchestrator closed", err))
	}
	defer func() {
		o.tracker.finish(p)
		o.metrics.RecordTrackedKeys(o.tracker.Len())
	}()
	o.metrics.RecordTrackedKeys(o.tracker.Len())

	if prevState != StateIdle {
		o.metrics.RecordSuperseded(c.method, c.endpoint, prevState)
		if d := o.debug; d != nil && d.Enabled && d.LogCancellation && o.logger != nil {
			o.logger.Debug("Superseded previous request", "requestID", c.requestID, "key", c.key, "previousState", prevState)
		}
	}

	if delay := o.debounceFor(ctrl); delay > 0 {
		if d := o.debug; d != nil && d.Enabled && d.LogDebounce && o.logger != nil {
			o.logger.Debug("Debouncing request", "requestID", c.requestID, "key", c.key, "delay", delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-reqCtx.Done():
			timer.Stop()
			return nil, o.fail(ctx, ctrl, c, o.cancelledError(c, reqCtx))
		}
	}

	if !o.tracker.transition(p, StateInFlight) {
		return nil, o.fail(ctx, ctrl, c, o.cancelledError(c, reqCtx))
	}

	if d := o.debug; d != nil && d.Enabled && d.LogRequests && o.logger != nil {
		o.logger.Debug("Starting request", "requestID", c.requestID, "method", c.method, "url", c.url, "endpoint", c.endpoint)
	}

	resp, reqErr := o.dispatch(reqCtx, c)
	if reqErr != nil {
		return nil, o.fail(ctx, ctrl, c, reqErr)
	}

	if d := o.debug; d != nil && d.Enabled && d.LogRequests && o.logger != nil {
		o.logger.Debug("Request completed", "requestID", c.requestID, "status", resp.StatusCode, "duration", time.Since(c.start))
	}
	return resp, nil
}

// fail applies the failure policy: Cancelled errors are returned silently,
// 401s expire the session, and everything else is notified once unless
// suppressed.
func (o *Orchestrator) fail(ctx context.Context, ctrl CallControl, c *call, reqErr *RequestError) error {
	reqErr.Duration = time.Since(c.start)
	o.metrics.RecordError(reqErr.Type, c.method, c.endpoint)

	if reqErr.Type == ErrorTypeCancelled {
		if d := o.debug; d != nil && d.Enabled && d.LogCancellation && o.logger != nil {
			o.logger.Debug("Request cancelled", "requestID", c.requestID, "key", c.key, "cause", reqErr.Cause)
		}
		return reqErr
	}

	if d := o.debug; d != nil && d.Enabled && d.LogRequests && o.logger != nil {
		o.logger.Warn("Request failed", "requestID", c.requestID, "type", reqErr.Type, "status", reqErr.StatusCode, "error", reqErr.Error())
	}

	if reqErr.Type == ErrorTypeHTTPStatus && reqErr.StatusCode == http.StatusUnauthorized {
		o.expireSession(ctx, c.requestID)
	}

	if !ctrl.SkipErrorHandler {
		o.notifier.Notify(context.WithoutCancel(ctx), NotificationFor(reqErr))
		o.metrics.RecordNotification(reqErr.Type)
	}
	return reqErr
}

// CancelAll aborts every tracked request and debounce wait. It is
// idempotent and leaves the orchestrator usable.
func (o *Orchestrator) CancelAll() {
	n := o.tracker.CancelAll(ErrCancelled)
	o.metrics.RecordTrackedKeys(o.tracker.Len())

	if d := o.debug; d != nil && d.Enabled && d.LogCancellation && o.logger != nil && n > 0 {
		o.logger.Debug("Cancelled all requests", "count", n)
	}
}

// Close stops background eviction, cancels a pending login redirect and
// aborts every tracked request. Later calls fail with a Cancelled error
// wrapping ErrClosed.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		close(o.stop)
		if o.janitorDone != nil {
			<-o.janitorDone
		}
		o.session.stop()
		o.tracker.close(ErrClosed)
		o.metrics.RecordTrackedKeys(0)
	})
	return nil
}

// Tracked returns the number of request keys currently debouncing or in flight.
func (o *Orchestrator) Tracked() int {
	return o.tracker.Len()
}

// State returns the lifecycle state of a request key.
func (o *Orchestrator) State(method, path string, params Params, body any) RequestState {
	payload, err := querystring.Body(body)
	if err != nil {
		return StateIdle
	}
	return o.tracker.State(querystring.Key(method, o.resolveURL(path), querystring.Encode(params), payload))
}

// IsValid reports whether configuration validation passed at construction.
func (o *Orchestrator) IsValid() bool {
	return o.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (o *Orchestrator) ValidationError() error {
	return o.validationError
}

func (o *Orchestrator) runJanitor() {
	defer close(o.janitorDone)

	ticker := time.NewTicker(o.evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.evictOverflow()
		}
	}
}

// evictOverflow cancels the oldest half of the tracked requests once more
// than maxTracked keys are tracked.
func (o *Orchestrator) evictOverflow() int {
	n := o.tracker.EvictOldest(o.maxTracked, ErrEvicted)
	if n == 0 {
		return 0
	}
	o.metrics.RecordEvicted(n)
	o.metrics.RecordTrackedKeys(o.tracker.Len())

	if d := o.debug; d != nil && d.Enabled && d.LogEviction && o.logger != nil {
		o.logger.Info("Evicted tracked requests", "count", n, "remaining", o.tracker.Len(), "ceiling", o.maxTracked)
	}
	return n
}

func (o *Orchestrator) debounceFor(ctrl CallControl) time.Duration {
	if ctrl.Immediate {
		return 0
	}
	if ctrl.Debounce != nil {
		return *ctrl.Debounce
	}
	return o.debounce
}

func (o *Orchestrator) newRequestID() string {
	if o.debug != nil && o.debug.RequestIDGen != nil {
		return o.debug.RequestIDGen()
	}
	return ""
}

func (o *Orchestrator) log() Logger {
	if o.logger == nil {
		return nopLogger{}
	}
	return o.logger
}

func (o *Orchestrator) resolveURL(path string) string {
	if o.baseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return o.baseURL + "/" + strings.TrimLeft(path, "/")
}
