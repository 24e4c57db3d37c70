package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/australis-energy/leadgate/internal/api/middleware"
	v1 "github.com/australis-energy/leadgate/internal/api/v1"
	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/observability"
)

// MetricsPath serves the Prometheus registry.
const MetricsPath = "/metrics"

// Server is the HTTP server of the gateway. It owns the Echo instance,
// the middleware stack and the v1 routes.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	notifier v1.Notifier
	geo      v1.GeoServices
	metrics  *observability.Metrics

	apiController *v1.Controller
	limiter       *mw.IPRateLimiter
	httpServer    *http.Server
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithNotifier enables the form routes.
func WithNotifier(n v1.Notifier) ServerOption {
	return func(s *Server) { s.notifier = n }
}

// WithGeoServices enables the geoservices proxy routes.
func WithGeoServices(g v1.GeoServices) ServerOption {
	return func(s *Server) { s.geo = g }
}

// WithMetrics enables HTTP metrics and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{config: config}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewNopLogger()
	}
	s.log = s.log.Module("server")

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Handler:      s.echo,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	s.log.Info("HTTP server initialized",
		logger.String("listen", config.Listen),
		logger.Bool("rate_limit", config.RateLimit.Enabled),
		logger.Bool("geoservices", s.geo != nil))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLogger(s.log))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins

	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.echo.GET(MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}

	opts := []v1.Option{v1.WithLogger(s.log)}
	if s.notifier != nil {
		opts = append(opts, v1.WithNotifier(s.notifier))
	}
	if s.geo != nil {
		opts = append(opts, v1.WithGeoServices(s.geo))
	}
	if s.metrics != nil {
		opts = append(opts, v1.WithHTTPMetrics(s.metrics.HTTP))
	}
	if rl := s.config.RateLimit; rl.Enabled {
		s.limiter = mw.NewIPRateLimiter(rl.RequestsPerMinute, rl.Burst, rl.IdleExpiry)
		opts = append(opts, v1.WithRateLimiter(s.limiter))
	}

	s.apiController = v1.New(s.echo, opts...)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("starting HTTP server", logger.String("address", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	<-serveErr

	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
