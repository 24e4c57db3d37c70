package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func closeResponseBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		t.Logf("failed to close response body: %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil config uses defaults", func(t *testing.T) {
		t.Parallel()
		client := New(nil)
		assert.Equal(t, DefaultTimeout, client.DefaultTimeout())
		assert.Equal(t, defaultUserAgent, client.userAgent)
	})

	t.Run("custom config", func(t *testing.T) {
		t.Parallel()
		client := New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "TestAgent/1.0"})
		assert.Equal(t, 5*time.Second, client.DefaultTimeout())
		assert.Equal(t, "TestAgent/1.0", client.userAgent)
	})

	t.Run("custom transport is used", func(t *testing.T) {
		t.Parallel()
		transport := httpmock.NewMockTransport()
		client := New(&Config{Transport: transport})
		assert.Same(t, transport, client.HTTPClient().Transport)
	})
}

func TestDo_InjectsUserAgentUnlessSet(t *testing.T) {
	t.Parallel()

	var received []string
	var mu sync.Mutex
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received = append(received, r.Header.Get("User-Agent"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, &Config{UserAgent: "leadgate-test/2.0"})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	closeResponseBody(t, resp)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "explicit/1.0")
	resp, err = client.Do(t.Context(), req)
	require.NoError(t, err)
	closeResponseBody(t, resp)

	assert.Equal(t, []string{"leadgate-test/2.0", "explicit/1.0"}, received)
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	resp, err := client.Get(ctx, server.URL)
	defer closeResponseBody(t, resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_DefaultTimeoutApplies(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, &Config{DefaultTimeout: 50 * time.Millisecond})

	resp, err := client.Get(t.Context(), server.URL)
	defer closeResponseBody(t, resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_ContextDeadlineOverridesDefault(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, &Config{DefaultTimeout: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDo_BodyReadableAfterReturn(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	client := newTestClient(t, nil)

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "timeout context must stay alive until the body is closed")
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestDo_ConcurrentRequests(t *testing.T) {
	t.Parallel()

	var requestCount atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, nil)

	const concurrency = 25
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for range concurrency {
		wg.Go(func() {
			resp, err := client.Get(t.Context(), server.URL)
			if err != nil {
				errs <- err
				return
			}
			_ = resp.Body.Close()
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(concurrency), requestCount.Load())
}

func TestDo_Hooks(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	client := newTestClient(t, nil)

	var beforeURL string
	var afterStatus int
	var afterElapsed time.Duration
	client.SetBeforeRequestHook(func(r *http.Request) { beforeURL = r.URL.String() })
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		require.NoError(t, err)
		afterStatus = resp.StatusCode
		afterElapsed = elapsed
	})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, server.URL, beforeURL)
	assert.Equal(t, http.StatusAccepted, afterStatus)
	assert.Positive(t, afterElapsed)
}

func TestDo_AfterHookSeesTransportError(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://fn.example.net/down",
		httpmock.NewErrorResponder(io.ErrUnexpectedEOF))

	client := newTestClient(t, &Config{Transport: transport})

	var hookErr error
	client.SetAfterResponseHook(func(_ *http.Request, _ *http.Response, err error, _ time.Duration) {
		hookErr = err
	})

	resp, err := client.Get(t.Context(), "https://fn.example.net/down")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, hookErr, io.ErrUnexpectedEOF)
}

func TestPost_MarshalsJSON(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	var got map[string]string
	var contentType string
	transport.RegisterResponder(http.MethodPost, "https://fn.example.net/api/send",
		func(req *http.Request) (*http.Response, error) {
			contentType = req.Header.Get("Content-Type")
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"ok":true}`), nil
		})

	client := newTestClient(t, &Config{Transport: transport})

	resp, err := client.Post(t.Context(), "https://fn.example.net/api/send", "", map[string]string{"name": "Jane"})
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, map[string]string{"name": "Jane"}, got)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestPost_RawBodyKeepsContentType(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello", string(body))
		w.WriteHeader(http.StatusCreated)
	})
	client := newTestClient(t, nil)

	resp, err := client.Post(t.Context(), server.URL, "text/plain", "hello")
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	client := New(nil)
	client.Close()
	client.Close()
}
