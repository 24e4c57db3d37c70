// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/australis-energy/leadgate/internal/logger"
)

// Defaults shared with other packages.
const (
	DefaultProductName           = "Australis Energy"
	DefaultCommunicationsTimeout = 30 * time.Second
	DefaultMaxRetries            = 3
	DefaultBaseDelay             = 2 * time.Second
	DefaultMaxInFlight           = 1024
	DefaultListen                = ":8080"
)

// setDefaultConfig sets default values for every configuration key.
// Every key must appear here so AutomaticEnv can override it.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("product_name", DefaultProductName)

	// Logging
	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	// Communications function
	v.SetDefault("communications.url", "")
	v.SetDefault("communications.key", "")
	v.SetDefault("communications.key_file", "")
	v.SetDefault("communications.timeout", DefaultCommunicationsTimeout)

	// GeoServices function
	v.SetDefault("geoservices.url", "")
	v.SetDefault("geoservices.key", "")
	v.SetDefault("geoservices.key_file", "")
	v.SetDefault("geoservices.timeout", 60*time.Second)
	v.SetDefault("geoservices.types_ttl", 10*time.Minute)
	v.SetDefault("geoservices.poll_attempts", 30)
	v.SetDefault("geoservices.poll_interval", 2*time.Second)

	// Optimistic dispatch
	v.SetDefault("dispatch.max_retries", DefaultMaxRetries)
	v.SetDefault("dispatch.base_delay", DefaultBaseDelay)
	v.SetDefault("dispatch.max_in_flight", DefaultMaxInFlight)

	// Web server
	v.SetDefault("webserver.listen", DefaultListen)
	v.SetDefault("webserver.allowed_origins", []string{"*"})
	v.SetDefault("webserver.shutdown_timeout", 20*time.Second)
	v.SetDefault("webserver.rate_limit.enabled", true)
	v.SetDefault("webserver.rate_limit.requests_per_minute", 10.0)
	v.SetDefault("webserver.rate_limit.burst", 5)
	v.SetDefault("webserver.rate_limit.idle_expiry", 10*time.Minute)

	// Error telemetry
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.sample_rate", 1.0)

	// Operator alerts
	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.urls", []string{})
	v.SetDefault("alerting.title", "leadgate: notification delivery failed")
}
