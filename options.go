package itemapprove

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WithBaseURL sets the prefix relative request paths are resolved against.
func WithBaseURL(baseURL string) Option {
	return func(o *Orchestrator) {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) {
		o.httpClient = client
	}
}

// WithTimeout sets the per-request ceiling. Exceeding it is a Network error.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithDebounce sets the default debounce delay. Zero dispatches immediately.
func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.debounce = d
	}
}

// WithIdentity sets the caller identity sent in the identity header.
func WithIdentity(identity string) Option {
	return func(o *Orchestrator) {
		o.identity = identity
	}
}

// WithIdentityHeader sets both the identity header name and its value.
func WithIdentityHeader(header, identity string) Option {
	return func(o *Orchestrator) {
		o.identityHeader = header
		o.identity = identity
	}
}

// WithTokenStore sets where the bearer token is read from and cleared on 401.
func WithTokenStore(store TokenStore) Option {
	return func(o *Orchestrator) {
		o.tokens = store
	}
}

// WithNotifier sets the sink for user-visible failure notifications.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithSessionExpiredHandler sets what performs the login redirect after a 401.
func WithSessionExpiredHandler(h SessionExpiredHandler) Option {
	return func(o *Orchestrator) {
		o.session.handler = h
	}
}

// WithLoginURL sets the login entry point passed to the session handler.
func WithLoginURL(loginURL string) Option {
	return func(o *Orchestrator) {
		o.session.loginURL = loginURL
	}
}

// WithRedirectDelay sets how long after a 401 the login redirect fires.
func WithRedirectDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.session.delay = d
	}
}

// WithMaxTracked sets the tracked-key ceiling enforced by background eviction.
func WithMaxTracked(n int) Option {
	return func(o *Orchestrator) {
		o.maxTracked = n
	}
}

// WithEvictInterval sets how often background eviction runs. Zero disables it.
func WithEvictInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.evictInterval = d
	}
}

// WithBusinessFailure replaces the rule that decides whether a 2xx payload is
// a logical failure.
func WithBusinessFailure(fn BusinessFailure) Option {
	return func(o *Orchestrator) {
		o.businessFailure = fn
	}
}

// WithRequestStage appends request-shaping stages after the built-in headers.
func WithRequestStage(stages ...RequestStage) Option {
	return func(o *Orchestrator) {
		o.requestStages = append(o.requestStages, stages...)
	}
}

// WithResponseStage appends stages that run on decoded responses before
// business classification.
func WithResponseStage(stages ...ResponseStage) Option {
	return func(o *Orchestrator) {
		o.responseStages = append(o.responseStages, stages...)
	}
}

// WithMiddleware adds middleware around dispatch
func WithMiddleware(middleware ...Middleware) Option {
	return func(o *Orchestrator) {
		o.middleware = append(o.middleware, middleware...)
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(o *Orchestrator) {
		o.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(o *Orchestrator) {
		o.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(o *Orchestrator) {
		if o.debug == nil {
			o.debug = DefaultDebugConfig()
		}
		o.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(o *Orchestrator) {
		o.debug = config
	}
}

// WithLogger sets the logger for debug output and default notifications
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a text logger on stderr
func WithSimpleLogger() Option {
	return func(o *Orchestrator) {
		if o.debug == nil {
			o.debug = DefaultDebugConfig()
		}
		o.debug.Enabled = true
		o.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if o.debug == nil {
			o.debug = DefaultDebugConfig()
		}
		o.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the orchestrator configuration and returns
// an error if invalid
func (o *Orchestrator) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, o.validateTransportConfig()...)
	errors = append(errors, o.validateDebounceConfig()...)
	errors = append(errors, o.validateTrackingConfig()...)
	errors = append(errors, o.validateSessionConfig()...)
	errors = append(errors, o.validateDebugConfig()...)
	errors = append(errors, o.validatePipelineConfig()...)
	errors = append(errors, o.validateExtremeValues()...)

	if len(errors) > 0 {
		return &RequestError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (o *Orchestrator) validateTransportConfig() []string {
	var errors []string

	if o.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}
	if o.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}
	if o.identity != "" && o.identityHeader == "" {
		errors = append(errors, "identity header name must be set when an identity is configured")
	}

	return errors
}

func (o *Orchestrator) validateDebounceConfig() []string {
	var errors []string

	if o.debounce < 0 {
		errors = append(errors, "debounce must be non-negative")
	}

	return errors
}

func (o *Orchestrator) validateTrackingConfig() []string {
	var errors []string

	if o.maxTracked <= 0 {
		errors = append(errors, "maxTracked must be positive")
	}
	if o.evictInterval < 0 {
		errors = append(errors, "evictInterval must be non-negative")
	}

	return errors
}

func (o *Orchestrator) validateSessionConfig() []string {
	var errors []string

	if o.session.delay < 0 {
		errors = append(errors, "redirect delay must be non-negative")
	}

	return errors
}

func (o *Orchestrator) validateDebugConfig() []string {
	var errors []string

	if o.debug != nil && o.debug.Enabled {
		if o.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if o.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}

func (o *Orchestrator) validatePipelineConfig() []string {
	var errors []string

	for i, stage := range o.requestStages {
		if stage == nil {
			errors = append(errors, fmt.Sprintf("requestStage[%d] cannot be nil", i))
		}
	}
	for i, stage := range o.responseStages {
		if stage == nil {
			errors = append(errors, fmt.Sprintf("responseStage[%d] cannot be nil", i))
		}
	}
	for i, middleware := range o.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}
	if o.businessFailure == nil {
		errors = append(errors, "business failure rule cannot be nil")
	}

	return errors
}

// validateExtremeValues rejects values that are legal but almost certainly
// mistakes.
func (o *Orchestrator) validateExtremeValues() []string {
	var errors []string

	if o.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}
	if o.debounce > time.Minute {
		errors = append(errors, "debounce > 1m delays every call noticeably")
	}
	if o.evictInterval > 0 && o.evictInterval < time.Millisecond {
		errors = append(errors, "evictInterval < 1ms may cause excessive CPU usage")
	}

	return errors
}
