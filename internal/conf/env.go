// conf/env.go environment variable bindings
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every automatically bound variable, e.g. LEADGATE_DISPATCH_MAX_RETRIES.
const EnvPrefix = "LEADGATE"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Legacy    string             // Older name still honoured, checked after EnvVar
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the explicitly validated environment bindings.
// Keys not listed here are still reachable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		// Remote functions, with the names the website build used
		{"communications.url", "LEADGATE_COMMUNICATIONS_URL", "VITE_COMMUNICATIONS_FUNCTION_URL", validateEnvURL},
		{"communications.key", "LEADGATE_COMMUNICATIONS_KEY", "VITE_COMMUNICATIONS_FUNCTION_KEY", nil},
		{"communications.timeout", "LEADGATE_COMMUNICATIONS_TIMEOUT", "", validateEnvDuration},
		{"geoservices.url", "LEADGATE_GEOSERVICES_URL", "VITE_GEOSERVICES_FUNCTION_URL", validateEnvURL},
		{"geoservices.key", "LEADGATE_GEOSERVICES_KEY", "VITE_GEOSERVICES_FUNCTION_KEY", nil},

		// Dispatch tuning
		{"dispatch.max_retries", "LEADGATE_DISPATCH_MAX_RETRIES", "", validateEnvNonNegativeInt},
		{"dispatch.base_delay", "LEADGATE_DISPATCH_BASE_DELAY", "", validateEnvDuration},
		{"dispatch.max_in_flight", "LEADGATE_DISPATCH_MAX_IN_FLIGHT", "", validateEnvNonNegativeInt},

		// Telemetry and alerts
		{"sentry.dsn", "LEADGATE_SENTRY_DSN", "SENTRY_DSN", nil},
		{"sentry.enabled", "LEADGATE_SENTRY_ENABLED", "", validateEnvBool},
		{"alerting.enabled", "LEADGATE_ALERTING_ENABLED", "", validateEnvBool},

		{"debug", "LEADGATE_DEBUG", "", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		names := []string{binding.ConfigKey, binding.EnvVar}
		if binding.Legacy != "" {
			names = append(names, binding.Legacy)
		}

		if err := v.BindEnv(names...); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range names[1:] {
			if envValue := os.Getenv(name); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", name, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must be non-negative, got %d", n)
	}
	return nil
}

func validateEnvURL(value string) error {
	return validateFunctionURL(value)
}

// validateFunctionURL accepts absolute http(s) URLs with a host.
func validateFunctionURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}
