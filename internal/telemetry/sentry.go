// Package telemetry initializes Sentry error reporting and connects it to
// the enhanced error pipeline.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/errors"
	"github.com/australis-energy/leadgate/internal/privacy"
)

const flushTimeout = 2 * time.Second

// Init starts the Sentry client and registers it as the error reporter.
// The returned flush func must run before exit. Disabled settings return a
// no-op flush.
func Init(settings conf.SentrySettings, release string) (func(), error) {
	if !settings.Enabled {
		return func() {}, nil
	}
	if settings.DSN == "" {
		return nil, errors.Newf("sentry is enabled but no DSN is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sampleRate := settings.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		Environment:      settings.Environment,
		ServerName:       "",
		Release:          "leadgate@" + release,
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	return func() {
		sentry.Flush(flushTimeout)
	}, nil
}

// beforeSend drops request data and host identity and scrubs messages.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.ServerName = ""
	event.Request = nil
	event.User = sentry.User{}
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	return event
}
