// Package serve implements the serve command, which runs the HTTP gateway.
package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/australis-energy/leadgate/internal/alerting"
	"github.com/australis-energy/leadgate/internal/api"
	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/geoservices"
	"github.com/australis-energy/leadgate/internal/httpclient"
	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/notification"
	"github.com/australis-energy/leadgate/internal/observability"
	"github.com/australis-energy/leadgate/internal/runtime"
	"github.com/australis-energy/leadgate/internal/telemetry"
)

// Command creates the serve command.
func Command(rt *runtime.Context) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long:  "Serve the form submission and geoservices endpoints until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				rt.Settings.WebServer.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return Run(ctx, rt)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides webserver.listen")

	return cmd
}

// Run wires the gateway components and serves until ctx is done. Pending
// optimistic deliveries get the shutdown timeout to finish.
func Run(ctx context.Context, rt *runtime.Context) error {
	settings := rt.Settings
	log := rt.Logger("main")

	flush, err := telemetry.Init(settings.Sentry, rt.Build.GetVersion())
	if err != nil {
		return err
	}
	defer flush()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	notifier, err := newNotifier(rt, settings, metrics)
	if err != nil {
		return err
	}

	geo := geoservices.NewClient(geoservices.ConfigFromSettings(settings),
		geoservices.WithHTTPClient(newHTTPClient(rt, settings.GeoServices.Timeout)),
		geoservices.WithLogger(rt.Logger("geoservices")),
		geoservices.WithMetrics(metrics.Dispatch))
	defer geo.Close()

	opts := []api.ServerOption{
		api.WithLogger(rt.Logger("api")),
		api.WithNotifier(notifier),
		api.WithMetrics(metrics),
	}
	if geo.Configured() {
		opts = append(opts, api.WithGeoServices(geo))
	} else {
		log.Info("geoservices URL not configured, geo routes disabled")
	}

	server, err := api.New(settings, opts...)
	if err != nil {
		return err
	}

	if !settings.CommunicationsEndpoint().IsConfigured() {
		log.Warn("communications URL not configured, form submissions will be rejected")
	}

	log.Info("leadgate starting",
		logger.String("version", rt.Build.GetVersion()),
		logger.String("listen", settings.WebServer.Listen))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	serveErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settings.WebServer.ShutdownTimeout)
	defer cancel()
	pending := notifier.Pending()
	if err := notifier.Close(drainCtx); err != nil {
		log.Warn("pending notifications abandoned at shutdown",
			logger.Int("pending", pending),
			logger.Error(err))
	}

	log.Info("leadgate stopped", logger.Int64("delivered", notifier.Delivered()))
	return serveErr
}

// newHTTPClient returns an outbound client that identifies as this build.
func newHTTPClient(rt *runtime.Context, timeout time.Duration) *httpclient.Client {
	return httpclient.New(&httpclient.Config{
		DefaultTimeout: timeout,
		UserAgent:      rt.Build.UserAgent(),
	})
}

func newNotifier(rt *runtime.Context, settings *conf.Settings, metrics *observability.Metrics) (*notification.Client, error) {
	opts := []notification.Option{
		notification.WithHTTPClient(newHTTPClient(rt, settings.Communications.Timeout)),
		notification.WithLogger(rt.Logger("notification")),
		notification.WithMetrics(metrics.Dispatch),
	}

	if settings.Alerting.Enabled {
		alerter, err := alerting.New(settings.Alerting, alerting.WithLogger(rt.Logger("alerting")))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize alerting: %w", err)
		}
		opts = append(opts, notification.WithExhaustionReporter(alerter))
	}

	return notification.NewClient(notification.ConfigFromSettings(settings), opts...), nil
}
