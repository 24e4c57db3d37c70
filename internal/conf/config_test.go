package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/australis-energy/leadgate/internal/errors"
)

// writeConfig writes YAML content to a temp config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	settings, err := DefaultSettings()
	require.NoError(t, err)

	assert.Equal(t, DefaultProductName, settings.ProductName)
	assert.Equal(t, 30*time.Second, settings.Communications.Timeout)
	assert.Equal(t, 3, settings.Dispatch.MaxRetries)
	assert.Equal(t, 2*time.Second, settings.Dispatch.BaseDelay)
	assert.Equal(t, 1024, settings.Dispatch.MaxInFlight)
	assert.Equal(t, 10*time.Minute, settings.GeoServices.TypesTTL)
	assert.Equal(t, 30, settings.GeoServices.PollAttempts)
	assert.Equal(t, ":8080", settings.WebServer.Listen)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Empty(t, settings.Communications.URL)

	assert.NoError(t, ValidateSettings(settings))
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
product_name: Test Product
communications:
  url: https://fn.example.net/api/send
  key: file-key
  timeout: 5s
dispatch:
  max_in_flight: 16
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Test Product", settings.ProductName)
	assert.Equal(t, Endpoint{URL: "https://fn.example.net/api/send", Key: "file-key"}, settings.CommunicationsEndpoint())
	assert.Equal(t, 5*time.Second, settings.Communications.Timeout)
	assert.Equal(t, 16, settings.Dispatch.MaxInFlight)
	assert.Equal(t, 3, settings.Dispatch.MaxRetries, "unset keys keep their defaults")

	again, err := Load(path)
	require.NoError(t, err)
	assert.NotSame(t, settings, again, "each Load returns its own settings")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
communications:
  url: https://file.example.net/api
`)
	t.Setenv("LEADGATE_COMMUNICATIONS_URL", "https://env.example.net/api")
	t.Setenv("LEADGATE_DISPATCH_BASE_DELAY", "500ms")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.net/api", settings.Communications.URL)
	assert.Equal(t, 500*time.Millisecond, settings.Dispatch.BaseDelay)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	path := writeConfig(t, "debug: false\n")
	t.Setenv("VITE_COMMUNICATIONS_FUNCTION_URL", "https://legacy.example.net/api/send")
	t.Setenv("VITE_COMMUNICATIONS_FUNCTION_KEY", "legacy-key")
	t.Setenv("VITE_GEOSERVICES_FUNCTION_URL", "https://geo.example.net")
	t.Setenv("VITE_GEOSERVICES_FUNCTION_KEY", "geo-key")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Endpoint{URL: "https://legacy.example.net/api/send", Key: "legacy-key"}, settings.CommunicationsEndpoint())
	assert.Equal(t, Endpoint{URL: "https://geo.example.net", Key: "geo-key"}, settings.GeoServicesEndpoint())
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	path := writeConfig(t, "debug: false\n")
	t.Setenv("LEADGATE_COMMUNICATIONS_KEY", "new-key")
	t.Setenv("VITE_COMMUNICATIONS_FUNCTION_KEY", "legacy-key")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "new-key", settings.Communications.Key)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	path := writeConfig(t, "debug: false\n")
	t.Setenv("LEADGATE_DISPATCH_MAX_RETRIES", "many")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEADGATE_DISPATCH_MAX_RETRIES")
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
communications:
  url: ftp://fn.example.net
dispatch:
  max_in_flight: 0
`)

	_, err := Load(path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEndpoint_IsConfigured(t *testing.T) {
	t.Parallel()

	assert.False(t, Endpoint{}.IsConfigured())
	assert.False(t, Endpoint{URL: "   "}.IsConfigured())
	assert.True(t, Endpoint{URL: "https://fn.example.net"}.IsConfigured())
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "product_name: Australis Energy")
	assert.Contains(t, string(data), "base_delay: 2s")

	err = WriteDefaultConfig(path, false)
	require.Error(t, err, "existing file must not be overwritten")
	require.NoError(t, WriteDefaultConfig(path, true))
}

func TestLoad_KeyFileOverridesKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "comms-key")
	require.NoError(t, os.WriteFile(keyPath, []byte("from-file\n"), 0o600))

	path := writeConfig(t, `
communications:
  url: https://fn.example.net/api/send
  key: inline-key
  key_file: `+keyPath+`
geoservices:
  key: ${LEADGATE_TEST_GEO_KEY}
`)
	t.Setenv("LEADGATE_TEST_GEO_KEY", "geo-secret")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", settings.Communications.Key)
	assert.Equal(t, "geo-secret", settings.GeoServices.Key)
	assert.Empty(t, settings.Warnings)
}

func TestLoad_PermissiveKeyFileWarns(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "comms-key")
	require.NoError(t, os.WriteFile(keyPath, []byte("k"), 0o644))
	require.NoError(t, os.Chmod(keyPath, 0o644))

	t.Setenv("LEADGATE_COMMUNICATIONS_KEY_FILE", keyPath)

	settings, err := Load(writeConfig(t, "product_name: Test\n"))
	require.NoError(t, err)

	assert.Equal(t, "k", settings.Communications.Key)
	require.Len(t, settings.Warnings, 1)
	assert.Contains(t, settings.Warnings[0], "communications.key")
}

func TestLoad_MissingKeyFile(t *testing.T) {
	t.Setenv("LEADGATE_GEOSERVICES_KEY_FILE", filepath.Join(t.TempDir(), "absent"))

	_, err := Load(writeConfig(t, "product_name: Test\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geoservices.key")
}
