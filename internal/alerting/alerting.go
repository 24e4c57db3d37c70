// Package alerting sends operator alerts through shoutrrr when optimistic
// notification delivery is given up.
package alerting

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"golang.org/x/time/rate"

	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/errors"
	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/notification"
)

const (
	defaultTitle   = "leadgate: notification delivery failed"
	defaultTimeout = 10 * time.Second

	// at most one alert every 30s after an initial burst
	alertInterval = 30 * time.Second
	alertBurst    = 5
)

// Sender delivers a message to every configured service.
// *router.ServiceRouter implements it.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Alerter implements notification.ExhaustionReporter.
type Alerter struct {
	sender  Sender
	title   string
	log     logger.Logger
	limiter *rate.Limiter

	mu         sync.Mutex
	suppressed int // alerts dropped since the last one sent
}

// Option configures an Alerter.
type Option func(*Alerter)

// WithSender replaces the shoutrrr router, e.g. in tests.
func WithSender(s Sender) Option {
	return func(a *Alerter) { a.sender = s }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Alerter) { a.log = l }
}

// WithLimit overrides the alert rate limit.
func WithLimit(every time.Duration, burst int) Option {
	return func(a *Alerter) { a.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

// New builds an Alerter for the configured service URLs.
func New(settings conf.AlertingSettings, opts ...Option) (*Alerter, error) {
	a := &Alerter{
		title:   strings.TrimSpace(settings.Title),
		limiter: rate.NewLimiter(rate.Every(alertInterval), alertBurst),
	}
	if a.title == "" {
		a.title = defaultTitle
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.NewNopLogger()
	}
	a.log = a.log.Module("alerting")

	if a.sender == nil {
		urls := slices.DeleteFunc(slices.Clone(settings.URLs), func(u string) bool {
			return strings.TrimSpace(u) == ""
		})
		if len(urls) == 0 {
			return nil, errors.Newf("at least one alerting URL is required").
				Component("alerting").
				Category(errors.CategoryConfiguration).
				Build()
		}
		sender, err := shoutrrr.CreateSender(urls...)
		if err != nil {
			// service URLs carry credentials
			return nil, errors.Newf("invalid alerting URL: %s", redactURLs(err.Error(), urls)).
				Component("alerting").
				Category(errors.CategoryConfiguration).
				Build()
		}
		sender.Timeout = defaultTimeout
		sender.SetLogger(log.New(io.Discard, "", 0))
		a.sender = sender
	}
	return a, nil
}

// ReportExhaustion sends one alert, subject to the rate limit.
func (a *Alerter) ReportExhaustion(ctx context.Context, ex notification.Exhaustion) {
	log := a.log.WithContext(ctx)

	a.mu.Lock()
	if !a.limiter.Allow() {
		a.suppressed++
		a.mu.Unlock()
		log.Debug("alert suppressed by rate limit", logger.String("task_id", ex.TaskID))
		return
	}
	suppressed := a.suppressed
	a.suppressed = 0
	a.mu.Unlock()

	body := formatAlert(ex, suppressed)

	params := stypes.Params{}
	params.SetTitle(a.title)
	for _, err := range a.sender.Send(body, &params) {
		if err != nil {
			log.Warn("failed to send operator alert", logger.Error(err))
		}
	}
}

func formatAlert(ex notification.Exhaustion, suppressed int) string {
	var b strings.Builder
	b.WriteString("Notification delivery was given up.\n\n")
	fmt.Fprintf(&b, "Category: %s\n", ex.Category)
	fmt.Fprintf(&b, "Reason: %s\n", ex.Reason)
	fmt.Fprintf(&b, "Attempts: %d\n", ex.Attempts)
	fmt.Fprintf(&b, "Task: %s\n", ex.TaskID)
	if ex.Err != nil {
		fmt.Fprintf(&b, "Last error: %s\n", ex.Err)
	}
	if suppressed > 0 {
		fmt.Fprintf(&b, "\n%d earlier alert(s) were suppressed.\n", suppressed)
	}
	return b.String()
}

// redactURLs replaces each service URL in msg with its scheme.
func redactURLs(msg string, urls []string) string {
	for _, u := range urls {
		scheme, _, found := strings.Cut(u, "://")
		if !found {
			scheme = "url"
		}
		msg = strings.ReplaceAll(msg, u, scheme+"://[REDACTED]")
	}
	return msg
}
