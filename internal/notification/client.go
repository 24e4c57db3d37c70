package notification

import (
	"context"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/errors"
	"github.com/australis-energy/leadgate/internal/httpclient"
	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/observability/metrics"
)

const (
	componentName = "notification"
	serviceName   = "communications"

	modeSync       = "sync"
	modeOptimistic = "optimistic"
)

// EndpointResolver supplies the communications function location.
// *conf.Settings implements it.
type EndpointResolver interface {
	CommunicationsEndpoint() conf.Endpoint
}

// StaticEndpoint resolves to a fixed endpoint.
type StaticEndpoint conf.Endpoint

func (e StaticEndpoint) CommunicationsEndpoint() conf.Endpoint {
	return conf.Endpoint(e)
}

// ExhaustionReporter receives optimistic deliveries that were given up.
type ExhaustionReporter interface {
	ReportExhaustion(ctx context.Context, ex Exhaustion)
}

// Config holds client settings.
type Config struct {
	Endpoints   EndpointResolver
	ProductName string
	Timeout     time.Duration // per attempt
	Retry       RetryPolicy
	MaxInFlight int
}

// ConfigFromSettings maps application settings to a client Config.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		Endpoints:   settings,
		ProductName: settings.ProductName,
		Timeout:     settings.Communications.Timeout,
		Retry: RetryPolicy{
			MaxRetries: settings.Dispatch.MaxRetries,
			BaseDelay:  settings.Dispatch.BaseDelay,
		},
		MaxInFlight: settings.Dispatch.MaxInFlight,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithHTTPClient sets the outbound client used by the default transport.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. The client logs under the "notification" module.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records dispatch metrics.
func WithMetrics(m *metrics.DispatchMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithChallengeProvider sets the provider consulted when a submission
// carries no challenge token.
func WithChallengeProvider(p ChallengeProvider) Option {
	return func(c *Client) { c.challenge = p }
}

// WithExhaustionReporter adds an operator-facing exhaustion reporter.
func WithExhaustionReporter(r ExhaustionReporter) Option {
	return func(c *Client) {
		if r != nil {
			c.reporters = append(c.reporters, r)
		}
	}
}

func withTimer(after timerFunc) Option {
	return func(c *Client) { c.after = after }
}

// Client sends notifications to the communications function. It is safe
// for concurrent use.
type Client struct {
	endpoints  EndpointResolver
	builder    *Builder
	transport  Transport
	httpClient *httpclient.Client
	ownsHTTP   bool
	challenge  ChallengeProvider
	log        logger.Logger
	metrics    *metrics.DispatchMetrics
	reporters  []ExhaustionReporter
	after      timerFunc
	scheduler  *scheduler

	delivered atomic.Int64
}

// NewClient creates a client from cfg. Zero-valued settings take defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		endpoints: cfg.Endpoints,
		builder:   NewBuilder(cfg.ProductName),
		challenge: NoChallenge{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.endpoints == nil {
		c.endpoints = StaticEndpoint{}
	}
	if c.log == nil {
		c.log = logger.NewSlogLogger(os.Stderr, logger.LogLevelInfo, nil)
	}
	c.log = c.log.Module(componentName)

	if c.transport == nil {
		if c.httpClient == nil {
			c.httpClient = httpclient.New(&httpclient.Config{DefaultTimeout: cfg.Timeout})
			c.ownsHTTP = true
		}
		if c.metrics != nil {
			m := c.metrics
			c.httpClient.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, _ error, elapsed time.Duration) {
				code := 0
				if resp != nil {
					code = resp.StatusCode
				}
				m.RecordRemoteRequest(serviceName, code, elapsed)
			})
		}
		c.transport = NewHTTPTransport(c.httpClient)
	}

	policy := cfg.Retry
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy = DefaultRetryPolicy()
	}

	c.scheduler = newScheduler(policy, cfg.MaxInFlight, c.after)
	c.scheduler.attempt = c.backgroundAttempt
	c.scheduler.onRetry = c.retryScheduled
	c.scheduler.onExhausted = c.exhausted
	c.scheduler.onInFlight = func(n int) {
		if c.metrics != nil {
			c.metrics.SetInFlight(n)
		}
	}
	return c
}

// Build renders and validates a submission without sending it.
func (c *Client) Build(category Category, fields Fields) (*Request, error) {
	return c.builder.Build(category, fields)
}

// prepare resolves the endpoint and builds the request. The endpoint is
// checked first so an unconfigured client never inspects the inputs.
func (c *Client) prepare(ctx context.Context, category Category, fields Fields) (*Request, conf.Endpoint, error) {
	endpoint := c.endpoints.CommunicationsEndpoint()
	if !endpoint.IsConfigured() {
		return nil, endpoint, &ConfigurationError{Setting: "communications.url"}
	}

	req, err := c.builder.Build(category, fields)
	if err != nil {
		return nil, endpoint, err
	}

	if req.ChallengeToken == "" {
		if token, ok := c.challenge.ObtainToken(ctx, challengeAction(category)); ok {
			req.ChallengeToken = token
		}
	}
	return req, endpoint, nil
}

// Send delivers one submission and waits for the remote acknowledgement.
// Every failure is reported in the Result.
func (c *Client) Send(ctx context.Context, category Category, fields Fields) Result {
	log := c.log.WithContext(ctx).With(logger.String("category", string(category)), logger.String("mode", modeSync))

	req, endpoint, err := c.prepare(ctx, category, fields)
	if err != nil {
		c.recordDispatch(category, modeSync, metrics.StatusRejected)
		log.Warn("notification rejected before sending", logger.Error(err))
		return failureResult(err)
	}

	// the caller may stop waiting but the attempt runs to completion
	start := time.Now()
	ack, err := c.transport.Deliver(context.WithoutCancel(ctx), endpoint, req)
	c.recordAttempt(category, err)
	if err != nil {
		c.recordDispatch(category, modeSync, metrics.StatusFailure)
		log.Warn("notification delivery failed",
			logger.Error(err),
			logger.Duration("elapsed", time.Since(start)))
		return failureResult(err)
	}

	c.delivered.Add(1)
	c.recordDispatch(category, modeSync, metrics.StatusSuccess)
	log.Info("notification delivered",
		logger.String("operation_id", ack.OperationID),
		logger.Duration("elapsed", time.Since(start)))
	return successResult(ack)
}

// SendOptimistic reports success as soon as the submission is built and
// delivers it in the background with retries. Only configuration and
// validation failures reach the caller; a delivery that is finally given
// up is reported to operators.
func (c *Client) SendOptimistic(ctx context.Context, category Category, fields Fields) Result {
	log := c.log.WithContext(ctx).With(logger.String("category", string(category)), logger.String("mode", modeOptimistic))

	req, endpoint, err := c.prepare(ctx, category, fields)
	if err != nil {
		c.recordDispatch(category, modeOptimistic, metrics.StatusRejected)
		log.Warn("notification rejected before sending", logger.Error(err))
		return failureResult(err)
	}

	t := &task{
		id:       uuid.NewString(),
		ctx:      context.WithoutCancel(ctx),
		req:      req,
		endpoint: endpoint,
	}
	c.recordDispatch(category, modeOptimistic, metrics.StatusSuccess)
	if err := c.scheduler.submit(t); err == nil {
		log.Debug("notification queued", logger.String("task_id", t.id))
	}
	return Result{Success: true, Message: messageAccepted}
}

func (c *Client) backgroundAttempt(ctx context.Context, t *task) error {
	ack, err := c.transport.Deliver(ctx, t.endpoint, t.req)
	c.recordAttempt(t.req.Category, err)

	log := c.log.WithContext(ctx).With(
		logger.String("task_id", t.id),
		logger.String("category", string(t.req.Category)))
	if err != nil {
		log.Warn("background delivery attempt failed", logger.Error(err))
		return err
	}

	c.delivered.Add(1)
	log.Info("notification delivered", logger.String("operation_id", ack.OperationID))
	return nil
}

func (c *Client) retryScheduled(t *task, attempt int, delay time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordRetry(string(t.req.Category))
	}
	c.log.WithContext(t.ctx).Debug("retry scheduled",
		logger.String("task_id", t.id),
		logger.Int("attempt", attempt),
		logger.Duration("delay", delay))
}

// exhausted fans the exhaustion signal out to logs, metrics, error
// telemetry and any registered reporters.
func (c *Client) exhausted(ctx context.Context, ex Exhaustion) {
	c.log.WithContext(ctx).Error("notification delivery given up",
		logger.String("task_id", ex.TaskID),
		logger.String("category", string(ex.Category)),
		logger.String("reason", ex.Reason),
		logger.Int("attempts", ex.Attempts),
		logger.Error(ex.Err))

	if c.metrics != nil {
		c.metrics.RecordExhausted(string(ex.Category), ex.Reason)
	}

	cause := ex.Err
	if cause == nil {
		cause = errors.NewStd("no delivery attempt was made")
	}
	errors.New(cause).
		Component(componentName).
		Category(errors.CategoryRetry).
		Priority(errors.PriorityHigh).
		Context("category", string(ex.Category)).
		Context("reason", ex.Reason).
		Context("attempts", ex.Attempts).
		Context("task_id", ex.TaskID).
		Report().
		Build()

	for _, r := range c.reporters {
		r.ReportExhaustion(ctx, ex)
	}
}

func (c *Client) recordDispatch(category Category, mode, status string) {
	if c.metrics != nil {
		c.metrics.RecordDispatch(string(category), mode, status)
	}
}

func (c *Client) recordAttempt(category Category, err error) {
	if c.metrics == nil {
		return
	}
	outcome := metrics.StatusSuccess
	if err != nil {
		outcome = string(errors.CategoryOf(err))
	}
	c.metrics.RecordAttempt(string(category), outcome)
}

// healthChecker is implemented by transports that can probe the endpoint.
type healthChecker interface {
	HealthCheck(ctx context.Context, endpoint conf.Endpoint) HealthStatus
}

// HealthCheck probes the communications function.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	if hc, ok := c.transport.(healthChecker); ok {
		return hc.HealthCheck(ctx, c.endpoints.CommunicationsEndpoint())
	}
	return HealthStatus{Status: HealthError, Timestamp: time.Now().UTC(), Error: "health check not supported by transport"}
}

// Delivered returns the number of acknowledged deliveries since start.
// It is advisory only.
func (c *Client) Delivered() int64 {
	return c.delivered.Load()
}

// Pending returns the number of optimistic deliveries not yet finished.
func (c *Client) Pending() int {
	return c.scheduler.inFlight()
}

// Close stops accepting optimistic submissions and waits for pending
// deliveries until ctx is done. Deliveries still waiting for a retry are
// then abandoned and reported.
func (c *Client) Close(ctx context.Context) error {
	err := c.scheduler.close(ctx)
	if c.ownsHTTP {
		c.httpClient.Close()
	}
	return err
}
