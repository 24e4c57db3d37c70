// Package geoservices is a typed client for the remote geospatial
// calculation function. Geometry is treated as opaque GeoJSON.
package geoservices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/errors"
	"github.com/australis-energy/leadgate/internal/httpclient"
	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/observability/metrics"
)

const (
	componentName = "geoservices"

	// FunctionKeyHeader carries the access key.
	FunctionKeyHeader = "x-functions-key"

	DefaultTimeout      = 60 * time.Second
	DefaultTypesTTL     = 10 * time.Minute
	DefaultPollAttempts = 30
	DefaultPollInterval = 2 * time.Second

	typesCacheKey    = "calculation-types"
	maxErrorBodySize = 1 << 10
)

// ErrCalculationTimeout is returned when polling gives up before the
// calculation finishes.
var ErrCalculationTimeout = errors.NewStd("calculation timed out")

// RequestError is a non-success response from the service.
type RequestError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("geoservices request failed: %d - %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *RequestError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryHTTP
}

// Config holds client settings.
type Config struct {
	Endpoint     conf.Endpoint
	Timeout      time.Duration
	TypesTTL     time.Duration
	PollAttempts int
	PollInterval time.Duration
}

// ConfigFromSettings maps application settings to a client Config.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		Endpoint:     settings.GeoServicesEndpoint(),
		Timeout:      settings.GeoServices.Timeout,
		TypesTTL:     settings.GeoServices.TypesTTL,
		PollAttempts: settings.GeoServices.PollAttempts,
		PollInterval: settings.GeoServices.PollInterval,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the outbound HTTP client.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records outbound request metrics.
func WithMetrics(m *metrics.DispatchMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client calls the geoservices function. It is safe for concurrent use.
type Client struct {
	endpoint     conf.Endpoint
	http         *httpclient.Client
	log          logger.Logger
	metrics      *metrics.DispatchMetrics
	types        *cache.Cache
	pollAttempts int
	pollInterval time.Duration
}

// NewClient creates a client from cfg. Zero-valued settings take defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{endpoint: cfg.Endpoint}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.NewNopLogger()
	}
	c.log = c.log.Module(componentName)

	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = httpclient.New(&httpclient.Config{DefaultTimeout: timeout})
	}
	if c.metrics != nil {
		m := c.metrics
		c.http.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, _ error, elapsed time.Duration) {
			code := 0
			if resp != nil {
				code = resp.StatusCode
			}
			m.RecordRemoteRequest(componentName, code, elapsed)
		})
	}

	ttl := cfg.TypesTTL
	if ttl <= 0 {
		ttl = DefaultTypesTTL
	}
	// single key, expiry is checked on read so no janitor is needed
	c.types = cache.New(ttl, 0)

	c.pollAttempts = cfg.PollAttempts
	if c.pollAttempts <= 0 {
		c.pollAttempts = DefaultPollAttempts
	}
	c.pollInterval = cfg.PollInterval
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	return c
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.endpoint.IsConfigured()
}

// StartCalculation submits a calculation.
func (c *Client) StartCalculation(ctx context.Context, req *CalculationRequest) (*CalculationResponse, error) {
	if err := validateCalculation(req); err != nil {
		return nil, err
	}
	var out CalculationResponse
	if err := c.do(ctx, http.MethodPost, "/api/calculate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CalculationStatus fetches the state of a calculation.
func (c *Client) CalculationStatus(ctx context.Context, executionID string) (*CalculationStatus, error) {
	if strings.TrimSpace(executionID) == "" {
		return nil, validationError("execution id is required")
	}
	var out CalculationStatus
	if err := c.do(ctx, http.MethodGet, "/api/status/"+url.PathEscape(executionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CalculationTypes lists the available calculation types. Results are
// cached for the configured TTL.
func (c *Client) CalculationTypes(ctx context.Context) ([]CalculationType, error) {
	if cached, found := c.types.Get(typesCacheKey); found {
		if types, ok := cached.([]CalculationType); ok {
			return slices.Clone(types), nil
		}
	}

	var out []CalculationType
	if err := c.do(ctx, http.MethodGet, "/api/calculation-types", nil, &out); err != nil {
		return nil, err
	}
	c.types.Set(typesCacheKey, out, cache.DefaultExpiration)
	return slices.Clone(out), nil
}

// InvalidateCache drops cached calculation types.
func (c *Client) InvalidateCache() {
	c.types.Flush()
}

// ValidateGeometry asks the service to check a site geometry.
func (c *Client) ValidateGeometry(ctx context.Context, geometry json.RawMessage) (*GeometryValidation, error) {
	if err := validateGeometry(geometry); err != nil {
		return nil, err
	}
	var out GeometryValidation
	if err := c.do(ctx, http.MethodPost, "/api/validate-geometry", geometryRequest{Geometry: geometry}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Constraints returns constraint layers intersecting geometry.
func (c *Client) Constraints(ctx context.Context, geometry json.RawMessage) (*ConstraintsResponse, error) {
	if err := validateGeometry(geometry); err != nil {
		return nil, err
	}
	var out ConstraintsResponse
	if err := c.do(ctx, http.MethodPost, "/api/constraints", geometryRequest{Geometry: geometry}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls the service health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollForCompletion checks the calculation up to maxAttempts times, waiting
// interval between checks, until it completes or fails. Zero arguments take
// the configured defaults.
func (c *Client) PollForCompletion(ctx context.Context, executionID string, maxAttempts int, interval time.Duration) (*CalculationStatus, error) {
	if maxAttempts <= 0 {
		maxAttempts = c.pollAttempts
	}
	if interval <= 0 {
		interval = c.pollInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		status, err := c.CalculationStatus(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if status.Done() {
			return status, nil
		}
		if attempt >= maxAttempts {
			break
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, errors.New(ErrCalculationTimeout).
		Component(componentName).
		Category(errors.CategoryTimeout).
		Context("execution_id", executionID).
		Context("attempts", maxAttempts).
		Build()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.endpoint.IsConfigured() {
		return errors.Newf("GeoServices function URL is not configured").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	target := strings.TrimRight(c.endpoint.URL, "/") + path

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.endpoint.Key != "" {
		req.Header.Set(FunctionKeyHeader, c.endpoint.Key)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.log.WithContext(ctx).Warn("geoservices request failed",
			logger.String("path", path),
			logger.Error(err))
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Context("path", path).
			Build()
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		reqErr := &RequestError{Path: path, StatusCode: resp.StatusCode, Body: string(data)}
		c.log.WithContext(ctx).Warn("geoservices request failed",
			logger.String("path", path),
			logger.Int("status_code", resp.StatusCode))
		return reqErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(fmt.Errorf("failed to decode %s response: %w", path, err)).
			Component(componentName).
			Category(errors.CategoryHTTP).
			Build()
	}
	return nil
}

func validationError(msg string) error {
	return errors.Newf("%s", msg).
		Component(componentName).
		Category(errors.CategoryValidation).
		Build()
}

func validateGeometry(geometry json.RawMessage) error {
	if len(bytes.TrimSpace(geometry)) == 0 {
		return validationError("geometry is required")
	}
	if !json.Valid(geometry) {
		return validationError("geometry is not valid JSON")
	}
	return nil
}

func validateCalculation(req *CalculationRequest) error {
	if req == nil {
		return validationError("calculation request is required")
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		return validationError("projectId is required")
	}
	switch req.CalculationType {
	case CalculationSolar, CalculationWind, CalculationBattery, CalculationAll:
	default:
		return validationError(fmt.Sprintf("unsupported calculation type %q", req.CalculationType))
	}
	return validateGeometry(req.SiteGeometry)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}
