// conf/validate.go

package conf

import (
	"fmt"
	"strings"

	"github.com/australis-energy/leadgate/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ErrorCategory implements errors.CategorizedError.
func (ve ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryConfiguration
}

// ValidateSettings validates the entire Settings struct.
// Empty function URLs are allowed here; dispatch reports them as configuration errors.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if strings.TrimSpace(settings.ProductName) == "" {
		ve.Errors = append(ve.Errors, "product_name must not be empty")
	}

	if err := validateCommunicationsSettings(&settings.Communications); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateGeoServicesSettings(&settings.GeoServices); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDispatchSettings(&settings.Dispatch); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}
	if settings.Sentry.SampleRate < 0 || settings.Sentry.SampleRate > 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("sentry.sample_rate must be between 0 and 1, got %g", settings.Sentry.SampleRate))
	}

	if settings.Alerting.Enabled && len(settings.Alerting.URLs) == 0 {
		ve.Errors = append(ve.Errors, "alerting.urls must list at least one service URL when alerting is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateCommunicationsSettings(s *CommunicationsSettings) error {
	var errs []string

	if s.URL != "" {
		if err := validateFunctionURL(s.URL); err != nil {
			errs = append(errs, fmt.Sprintf("communications.url: %v", err))
		}
	}
	if s.Timeout <= 0 {
		errs = append(errs, "communications.timeout must be positive")
	}

	return joinErrors(errs)
}

func validateGeoServicesSettings(s *GeoServicesSettings) error {
	var errs []string

	if s.URL != "" {
		if err := validateFunctionURL(s.URL); err != nil {
			errs = append(errs, fmt.Sprintf("geoservices.url: %v", err))
		}
	}
	if s.Timeout <= 0 {
		errs = append(errs, "geoservices.timeout must be positive")
	}
	if s.PollAttempts < 1 {
		errs = append(errs, "geoservices.poll_attempts must be at least 1")
	}
	if s.PollInterval <= 0 {
		errs = append(errs, "geoservices.poll_interval must be positive")
	}

	return joinErrors(errs)
}

func validateDispatchSettings(s *DispatchSettings) error {
	var errs []string

	if s.MaxRetries < 0 {
		errs = append(errs, "dispatch.max_retries must be non-negative")
	}
	if s.BaseDelay <= 0 {
		errs = append(errs, "dispatch.base_delay must be positive")
	}
	if s.MaxInFlight < 1 {
		errs = append(errs, "dispatch.max_in_flight must be at least 1")
	}

	return joinErrors(errs)
}

func validateWebServerSettings(s *WebServerSettings) error {
	var errs []string

	if s.Listen == "" {
		errs = append(errs, "webserver.listen must not be empty")
	}
	if s.RateLimit.Enabled {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "webserver.rate_limit.requests_per_minute must be positive")
		}
		if s.RateLimit.Burst < 1 {
			errs = append(errs, "webserver.rate_limit.burst must be at least 1")
		}
	}

	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}
