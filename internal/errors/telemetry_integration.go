// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/australis-energy/leadgate/internal/privacy"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
	capture func(*sentry.Event)
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{
		enabled: enabled,
		capture: func(event *sentry.Event) { sentry.CaptureEvent(event) },
	}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy protection
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	event := buildSentryEvent(ee)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		scope.SetFingerprint([]string{event.Exception[0].Type, ee.Component, string(ee.Category)})
		sr.capture(event)
	})

	ee.MarkReported()
}

// buildSentryEvent converts an EnhancedError to a scrubbed Sentry event.
func buildSentryEvent(ee *EnhancedError) *sentry.Event {
	title := generateErrorTitle(ee)
	message := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))

	event := sentry.NewEvent()
	event.Message = message
	event.Level = getErrorLevel(ee.Category)
	event.Tags = map[string]string{
		"component":  ee.Component,
		"category":   string(ee.Category),
		"error_type": fmt.Sprintf("%T", ee.Err),
	}
	event.Exception = []sentry.Exception{{Type: title, Value: message}}

	extra := make(map[string]any, len(ee.Context))
	for key, value := range ee.GetContext() {
		if s, ok := value.(string); ok {
			value = scrubMessageForPrivacy(s)
		}
		extra[key] = value
	}
	event.Extra = extra

	return event
}

// generateErrorTitle builds "<Component> <Category> <Operation>" for grouping
func generateErrorTitle(ee *EnhancedError) string {
	var titleParts []string

	if ee.Component != "" && ee.Component != ComponentUnknown {
		titleParts = append(titleParts, titleCase(ee.Component))
	}

	if categoryTitle := formatCategoryForTitle(ee.Category); categoryTitle != "" {
		titleParts = append(titleParts, categoryTitle)
	}

	if operation, ok := ee.Context["operation"].(string); ok && operation != "" {
		titleParts = append(titleParts, formatOperationForTitle(operation))
	}

	if len(titleParts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}

	return strings.Join(titleParts, " ")
}

func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryValidation:
		return "Validation Error"
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryNetwork:
		return "Network Error"
	case CategoryRemoteRejection:
		return "Remote Rejection"
	case CategoryRetry:
		return "Retries Exhausted"
	case CategoryTimeout:
		return "Timeout"
	default:
		return string(category)
	}
}

func formatOperationForTitle(operation string) string {
	words := strings.Fields(strings.ReplaceAll(operation, "_", " "))
	for i, word := range words {
		words[i] = titleCase(word)
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	// a Caser is stateful, so one is built per call
	return cases.Title(language.English, cases.NoLower).String(s)
}

// getErrorLevel returns appropriate Sentry level based on category
func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryRemoteRejection:
		return sentry.LevelWarning // often transient
	case CategoryValidation, CategoryCancellation:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

var (
	globalTelemetryReporter TelemetryReporter
	reporterMu              sync.RWMutex
)

// SetTelemetryReporter sets the global telemetry reporter
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return globalTelemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	if reporter := GetTelemetryReporter(); reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

// scrubMessageForPrivacy removes query strings, e-mail addresses and keys
// before anything leaves the process.
func scrubMessageForPrivacy(message string) string {
	return privacy.ScrubMessage(message)
}
