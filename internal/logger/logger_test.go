package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_ModuleAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC)

	log.Module("notification").Module("dispatch").Info("delivered",
		String("category", "contact"),
		Int("attempt", 2),
		Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "module=notification.dispatch")
	assert.Contains(t, out, "category=contact")
	assert.Contains(t, out, "attempt=2")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, "msg=delivered")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, time.UTC)

	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Log(LogLevelInfo, "hidden explicit")
	log.Warn("visible warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warn")
}

func TestSlogLogger_TraceLevelLabel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelTrace, time.UTC)
	log.Trace("very detailed")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestWithContext_AddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	ctx := WithTraceID(context.Background(), "req-123")
	log.WithContext(ctx).Info("with trace")
	log.WithContext(context.Background()).Info("without trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=req-123")
	assert.NotContains(t, lines[1], "trace_id")
	assert.Equal(t, "req-123", TraceIDFromContext(ctx))
}

func TestWith_DoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	parent := NewSlogLogger(&buf, LogLevelInfo, time.UTC)
	child := parent.With(String("operation_id", "op-1"))

	child.Info("child")
	parent.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "operation_id=op-1")
	assert.NotContains(t, lines[1], "operation_id")
}

func TestSlogLogger_RedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.Info("posting to https://fn.example.net/api?code=topsecret",
		String("endpoint", "https://fn.example.net/api?code=topsecret"),
		String("challenge_token", "03AGdBq24abc"))

	out := buf.String()
	assert.NotContains(t, out, "topsecret")
	assert.NotContains(t, out, "03AGdBq24abc")
}

func TestCentralLogger_FileOutputIsJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "leadgate.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "info"},
	})
	require.NoError(t, err)

	cl.Module("api").Info("listening", String("addr", ":8080"))
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "listening", entry["msg"])
	assert.Equal(t, "api", entry["module"])
	assert.Equal(t, ":8080", entry["addr"])
}

func TestCentralLogger_ModuleLevels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "leadgate.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"geoservices": "debug"},
	})
	require.NoError(t, err)

	cl.Module("geoservices").Debug("geo debug")
	cl.Module("notification").Debug("notification debug")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "geo debug")
	assert.NotContains(t, string(data), "notification debug")
}

func TestNewCentralLogger_InvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

func TestNewCentralLogger_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(nil)
	require.Error(t, err)
}
