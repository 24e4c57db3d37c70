package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/notification"
	"github.com/australis-energy/leadgate/internal/observability"
)

func newFunctionServer(t *testing.T, response string) (*httptest.Server, <-chan map[string]string) {
	t.Helper()
	bodies := make(chan map[string]string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		bodies <- body

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, bodies
}

func newTestSettings(t *testing.T, functionURL string) *conf.Settings {
	t.Helper()
	settings, err := conf.DefaultSettings()
	require.NoError(t, err)
	settings.Communications.URL = functionURL
	settings.WebServer.Listen = "127.0.0.1:0"
	return settings
}

func newTestServer(t *testing.T, settings *conf.Settings) (*Server, *observability.Metrics) {
	t.Helper()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	client := notification.NewClient(notification.ConfigFromSettings(settings),
		notification.WithMetrics(m.Dispatch))
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	srv, err := New(settings, WithNotifier(client), WithMetrics(m))
	require.NoError(t, err)
	return srv, m
}

func TestServer_SubmitFormEndToEnd(t *testing.T) {
	t.Parallel()

	fn, bodies := newFunctionServer(t, `{"ok":true,"operationId":"op-7"}`)
	srv, m := newTestServer(t, newTestSettings(t, fn.URL))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms/contact",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com","subject":"Hi","message":"Hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var result notification.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "op-7", result.OperationID)

	select {
	case body := <-bodies:
		assert.Equal(t, "contact", body["type"])
		assert.Equal(t, "ada@example.com", body["email"])
	case <-time.After(5 * time.Second):
		t.Fatal("function server received no request")
	}

	assert.InDelta(t, 1, m.Dispatch.Delivered(), 0)
}

func TestServer_UnconfiguredFunction(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestSettings(t, ""))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms/contact",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com","subject":"Hi","message":"Hello"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Communications function URL is not configured")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestSettings(t, ""))

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, MetricsPath, http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leadgate_http_requests_total")
}

func TestServer_RateLimitFromSettings(t *testing.T) {
	t.Parallel()

	fn, _ := newFunctionServer(t, `{"ok":true}`)
	settings := newTestSettings(t, fn.URL)
	settings.WebServer.RateLimit = conf.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	srv, _ := newTestServer(t, settings)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/forms/newsletter", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}

func TestServer_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestSettings(t, ""))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Listen = "no-port"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RateLimit = conf.RateLimitConfig{Enabled: true}
	assert.Error(t, cfg.Validate())
}
