// Package conf loads gateway settings from a YAML file and the environment.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/australis-energy/leadgate/internal/errors"
	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/secrets"
)

// Settings is the root configuration structure.
type Settings struct {
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
	ProductName string `mapstructure:"product_name" yaml:"product_name"` // shown in notification subjects

	Logging        logger.LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Communications CommunicationsSettings `mapstructure:"communications" yaml:"communications"`
	GeoServices    GeoServicesSettings    `mapstructure:"geoservices" yaml:"geoservices"`
	Dispatch       DispatchSettings       `mapstructure:"dispatch" yaml:"dispatch"`
	WebServer      WebServerSettings      `mapstructure:"webserver" yaml:"webserver"`
	Sentry         SentrySettings         `mapstructure:"sentry" yaml:"sentry"`
	Alerting       AlertingSettings       `mapstructure:"alerting" yaml:"alerting"`

	// Warnings are non-fatal problems found while loading
	Warnings []string `mapstructure:"-" yaml:"-"`
}

// CommunicationsSettings locates the remote email-sending function.
type CommunicationsSettings struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Key     string        `mapstructure:"key" yaml:"key"`           // appended as ?code=<key>
	KeyFile string        `mapstructure:"key_file" yaml:"key_file"` // overrides key when set
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`   // per-attempt HTTP timeout
}

// GeoServicesSettings locates the remote geospatial calculation function.
type GeoServicesSettings struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	Key          string        `mapstructure:"key" yaml:"key"` // sent as x-functions-key
	KeyFile      string        `mapstructure:"key_file" yaml:"key_file"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TypesTTL     time.Duration `mapstructure:"types_ttl" yaml:"types_ttl"` // calculation-types cache lifetime
	PollAttempts int           `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// DispatchSettings tunes optimistic delivery.
type DispatchSettings struct {
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxInFlight int           `mapstructure:"max_in_flight" yaml:"max_in_flight"`
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Listen          string          `mapstructure:"listen" yaml:"listen"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig bounds form submissions per client IP.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	IdleExpiry        time.Duration `mapstructure:"idle_expiry" yaml:"idle_expiry"` // limiter eviction after inactivity
}

// SentrySettings enables error telemetry.
type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// AlertingSettings configures operator alerts sent through shoutrrr.
type AlertingSettings struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	URLs    []string `mapstructure:"urls" yaml:"urls"` // shoutrrr service URLs
	Title   string   `mapstructure:"title" yaml:"title"`
}

// Endpoint is a resolved remote function location.
type Endpoint struct {
	URL string
	Key string
}

// IsConfigured reports whether a URL is present.
func (e Endpoint) IsConfigured() bool {
	return strings.TrimSpace(e.URL) != ""
}

// CommunicationsEndpoint returns the email function location.
func (s *Settings) CommunicationsEndpoint() Endpoint {
	return Endpoint{URL: strings.TrimSpace(s.Communications.URL), Key: s.Communications.Key}
}

// GeoServicesEndpoint returns the geospatial function location.
func (s *Settings) GeoServicesEndpoint() Endpoint {
	return Endpoint{URL: strings.TrimSpace(s.GeoServices.URL), Key: s.GeoServices.Key}
}

// Load reads configFile (or the default search paths when empty) plus the
// environment and validates the result. Callers own the returned settings.
// A missing config file is not an error; environment variables alone suffice.
func Load(configFile string) (*Settings, error) {
	v := viper.New()

	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := resolveKeys(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// resolveKeys replaces function keys with the contents of their key files
// and expands ${VAR} references.
func resolveKeys(settings *Settings) error {
	keys := []struct {
		name string
		file string
		key  *string
	}{
		{"communications.key", settings.Communications.KeyFile, &settings.Communications.Key},
		{"geoservices.key", settings.GeoServices.KeyFile, &settings.GeoServices.Key},
	}

	for _, k := range keys {
		resolved, err := secrets.Resolve(k.file, *k.key)
		var perm *secrets.PermissiveFileError
		switch {
		case errors.As(err, &perm):
			settings.Warnings = append(settings.Warnings, fmt.Sprintf("%s: %v", k.name, err))
		case err != nil:
			return fmt.Errorf("error resolving %s: %w", k.name, err)
		}
		*k.key = resolved
	}
	return nil
}

// initViper applies defaults, environment bindings and the config file to v.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "bind_env").
			Build()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.New(fmt.Errorf("error reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}

	return nil
}

// GetDefaultConfigPaths lists the directories searched for config.yaml.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "windows" {
			paths = append(paths, filepath.Join(homeDir, "AppData", "Roaming", "leadgate"))
		} else {
			paths = append(paths, filepath.Join(homeDir, ".config", "leadgate"))
		}
	}

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/leadgate")
	}

	return paths
}

// DefaultSettings returns the settings produced by defaults alone.
func DefaultSettings() (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	return settings, nil
}

// WriteDefaultConfig writes the default settings as YAML to configPath.
// An existing file is left untouched unless overwrite is set.
func WriteDefaultConfig(configPath string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file %s already exists", configPath)
		}
	}

	settings, err := DefaultSettings()
	if err != nil {
		return err
	}

	return SaveYAMLConfig(configPath, settings)
}

// SaveYAMLConfig marshals settings and atomically replaces configPath.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(fmt.Errorf("error creating config directory: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			Build()
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// config holds the function keys
	if err := os.Chmod(tempFileName, 0o600); err != nil {
		return fmt.Errorf("error setting config permissions: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
