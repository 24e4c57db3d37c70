// Package api provides the v1 JSON endpoints used by the marketing site
// forms and the client dashboard.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	mw "github.com/australis-energy/leadgate/internal/api/middleware"
	"github.com/australis-energy/leadgate/internal/errors"
	"github.com/australis-energy/leadgate/internal/geoservices"
	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/notification"
	"github.com/australis-energy/leadgate/internal/observability/metrics"
)

// Prefix is the route prefix of every v1 endpoint.
const Prefix = "/api/v1"

// Notifier dispatches form submissions. *notification.Client implements it.
type Notifier interface {
	Send(ctx context.Context, category notification.Category, fields notification.Fields) notification.Result
	SendOptimistic(ctx context.Context, category notification.Category, fields notification.Fields) notification.Result
	HealthCheck(ctx context.Context) notification.HealthStatus
}

// GeoServices is the geospatial calculation client. *geoservices.Client implements it.
type GeoServices interface {
	Configured() bool
	StartCalculation(ctx context.Context, req *geoservices.CalculationRequest) (*geoservices.CalculationResponse, error)
	CalculationStatus(ctx context.Context, executionID string) (*geoservices.CalculationStatus, error)
	PollForCompletion(ctx context.Context, executionID string, maxAttempts int, interval time.Duration) (*geoservices.CalculationStatus, error)
	CalculationTypes(ctx context.Context) ([]geoservices.CalculationType, error)
	ValidateGeometry(ctx context.Context, geometry json.RawMessage) (*geoservices.GeometryValidation, error)
	Constraints(ctx context.Context, geometry json.RawMessage) (*geoservices.ConstraintsResponse, error)
	Health(ctx context.Context) (*geoservices.HealthResponse, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	notifier    Notifier
	geo         GeoServices
	log         logger.Logger
	httpMetrics *metrics.HTTPMetrics
	limiter     *mw.IPRateLimiter
	startTime   time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets the notification dispatcher.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithGeoServices enables the geoservices proxy routes.
func WithGeoServices(g GeoServices) Option {
	return func(c *Controller) { c.geo = g }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithHTTPMetrics records rate limiter rejections.
func WithHTTPMetrics(m *metrics.HTTPMetrics) Option {
	return func(c *Controller) { c.httpMetrics = m }
}

// WithRateLimiter limits form submissions per client IP.
func WithRateLimiter(l *mw.IPRateLimiter) Option {
	return func(c *Controller) { c.limiter = l }
}

// New creates a controller and registers its routes on e.
func New(e *echo.Echo, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Group:     e.Group(Prefix),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewNopLogger()
	}
	c.log = c.log.Module("api")

	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.Health)

	if c.notifier != nil {
		c.initFormRoutes()
	}
	if c.geo != nil {
		c.initGeoRoutes()
	}
}

// ErrorResponse is the body of non-form error responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError logs err and writes an ErrorResponse.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Message:   message,
		Code:      code,
		RequestID: ctx.Response().Header().Get(echo.HeaderXRequestID),
	}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Error = message
	}

	log := c.log.WithContext(ctx.Request().Context())
	fields := []logger.Field{
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Warn("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// statusForError maps a categorized error to an HTTP status.
func statusForError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryConfiguration:
		return http.StatusServiceUnavailable
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryCancellation:
		return http.StatusRequestTimeout
	case errors.CategoryNetwork, errors.CategoryHTTP, errors.CategoryRemoteRejection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
