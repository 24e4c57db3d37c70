package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/australis-energy/leadgate/internal/api/middleware"
	"github.com/australis-energy/leadgate/internal/errors"
	"github.com/australis-energy/leadgate/internal/geoservices"
	"github.com/australis-energy/leadgate/internal/notification"
	"github.com/australis-energy/leadgate/internal/observability/metrics"
)

type sendCall struct {
	category   notification.Category
	fields     notification.Fields
	optimistic bool
}

type fakeNotifier struct {
	mu     sync.Mutex
	calls  []sendCall
	result notification.Result
	health notification.HealthStatus
}

func (f *fakeNotifier) record(category notification.Category, fields notification.Fields, optimistic bool) notification.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sendCall{category: category, fields: fields, optimistic: optimistic})
	return f.result
}

func (f *fakeNotifier) Send(_ context.Context, category notification.Category, fields notification.Fields) notification.Result {
	return f.record(category, fields, false)
}

func (f *fakeNotifier) SendOptimistic(_ context.Context, category notification.Category, fields notification.Fields) notification.Result {
	return f.record(category, fields, true)
}

func (f *fakeNotifier) HealthCheck(context.Context) notification.HealthStatus {
	return f.health
}

func (f *fakeNotifier) lastCall(t *testing.T) sendCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type fakeGeo struct {
	configured bool
	err        error
	status     *geoservices.CalculationStatus
	polled     bool
	lastReq    *geoservices.CalculationRequest
}

func (f *fakeGeo) Configured() bool { return f.configured }

func (f *fakeGeo) StartCalculation(_ context.Context, req *geoservices.CalculationRequest) (*geoservices.CalculationResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &geoservices.CalculationResponse{Success: true, ExecutionID: "exec-1"}, nil
}

func (f *fakeGeo) CalculationStatus(context.Context, string) (*geoservices.CalculationStatus, error) {
	return f.status, f.err
}

func (f *fakeGeo) PollForCompletion(context.Context, string, int, time.Duration) (*geoservices.CalculationStatus, error) {
	f.polled = true
	return f.status, f.err
}

func (f *fakeGeo) CalculationTypes(context.Context) ([]geoservices.CalculationType, error) {
	return []geoservices.CalculationType{{Type: geoservices.CalculationSolar, Name: "Solar"}}, f.err
}

func (f *fakeGeo) ValidateGeometry(context.Context, json.RawMessage) (*geoservices.GeometryValidation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &geoservices.GeometryValidation{Valid: true}, nil
}

func (f *fakeGeo) Constraints(context.Context, json.RawMessage) (*geoservices.ConstraintsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &geoservices.ConstraintsResponse{}, nil
}

func (f *fakeGeo) Health(context.Context) (*geoservices.HealthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &geoservices.HealthResponse{Status: notification.HealthHealthy}, nil
}

func newTestController(t *testing.T, opts ...Option) *echo.Echo {
	t.Helper()
	e := echo.New()
	New(e, opts...)
	return e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "192.0.2.1:4000"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) notification.Result {
	t.Helper()
	var r notification.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	return r
}

const contactBody = `{"name":"Ada","email":"ada@example.com","subject":"Hi","message":"Hello"}`

func TestSubmitForm_Success(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{result: notification.Result{Success: true, Message: "Message sent successfully"}}
	e := newTestController(t, WithNotifier(n))

	rec := doRequest(e, http.MethodPost, "/api/v1/forms/contact", contactBody)
	require.Equal(t, http.StatusOK, rec.Code)

	r := decodeResult(t, rec)
	assert.True(t, r.Success)
	assert.Equal(t, "Message sent successfully", r.Message)

	call := n.lastCall(t)
	assert.Equal(t, notification.CategoryContact, call.category)
	assert.False(t, call.optimistic)
	assert.Equal(t, "Ada", call.fields[notification.FieldName])
	assert.Equal(t, "ada@example.com", call.fields[notification.FieldEmail])
}

func TestSubmitForm_OptimisticMode(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{result: notification.Result{Success: true, Message: "Message accepted for delivery"}}
	e := newTestController(t, WithNotifier(n))

	rec := doRequest(e, http.MethodPost, "/api/v1/forms/newsletter?mode=optimistic", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, n.lastCall(t).optimistic)
}

func TestSubmitForm_ScalarFieldsBecomeStrings(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{result: notification.Result{Success: true}}
	e := newTestController(t, WithNotifier(n))

	body := `{"name":"Ada","email":"ada@example.com","experience":12,"consent":true,"companyRole":null}`
	rec := doRequest(e, http.MethodPost, "/api/v1/forms/expert-panel-application", body)
	require.Equal(t, http.StatusOK, rec.Code)

	fields := n.lastCall(t).fields
	assert.Equal(t, "12", fields[notification.FieldExperience])
	assert.Equal(t, "true", fields["consent"])
	assert.NotContains(t, fields, notification.FieldCompanyRole)
}

func TestSubmitForm_BadRequests(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{result: notification.Result{Success: true}}
	e := newTestController(t, WithNotifier(n))

	tests := []struct {
		name     string
		target   string
		body     string
		wantCode int
	}{
		{"unknown category", "/api/v1/forms/careers", contactBody, http.StatusNotFound},
		{"malformed json", "/api/v1/forms/contact", `{"name":`, http.StatusBadRequest},
		{"nested value", "/api/v1/forms/contact", `{"name":{"first":"Ada"}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			r := decodeResult(t, rec)
			assert.False(t, r.Success)
			assert.NotEmpty(t, r.Error)
		})
	}

	assert.Empty(t, n.calls, "invalid requests never reach the notifier")
}

func TestSubmitForm_FailureStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"validation", &notification.ValidationError{Reason: "Invalid email format"}, http.StatusBadRequest},
		{"configuration", &notification.ConfigurationError{}, http.StatusServiceUnavailable},
		{"transport", &notification.TransportError{StatusCode: 500, Body: "oops"}, http.StatusBadGateway},
		{"rejection", &notification.RemoteRejection{Reason: "boom"}, http.StatusBadGateway},
		{"uncategorized", errors.NewStd("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := &fakeNotifier{result: notification.Result{Error: tt.err.Error(), Err: tt.err}}
			e := newTestController(t, WithNotifier(n))

			rec := doRequest(e, http.MethodPost, "/api/v1/forms/contact", contactBody)
			assert.Equal(t, tt.wantCode, rec.Code)

			r := decodeResult(t, rec)
			assert.False(t, r.Success)
			assert.Equal(t, tt.err.Error(), r.Error)
		})
	}
}

func TestSubmitForm_RateLimited(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	n := &fakeNotifier{result: notification.Result{Success: true}}
	e := newTestController(t,
		WithNotifier(n),
		WithHTTPMetrics(m),
		WithRateLimiter(mw.NewIPRateLimiter(1, 1, time.Minute)))

	assert.Equal(t, http.StatusOK, doRequest(e, http.MethodPost, "/api/v1/forms/contact", contactBody).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(e, http.MethodPost, "/api/v1/forms/contact", contactBody).Code)

	assert.Len(t, n.calls, 1)
	assert.Equal(t, 1, testutil.CollectAndCount(m, "leadgate_http_rate_limited_total"))
}

func TestFormCategories(t *testing.T) {
	t.Parallel()

	e := newTestController(t, WithNotifier(&fakeNotifier{}))
	rec := doRequest(e, http.MethodGet, "/api/v1/forms/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Categories, string(notification.CategoryExpertPanelInterest))
	assert.Len(t, body.Categories, len(notification.Categories()))
}

func TestFormRoutesRequireNotifier(t *testing.T) {
	t.Parallel()

	e := newTestController(t)
	rec := doRequest(e, http.MethodPost, "/api/v1/forms/contact", contactBody)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("shallow", func(t *testing.T) {
		t.Parallel()
		n := &fakeNotifier{health: notification.HealthStatus{Status: notification.HealthError}}
		e := newTestController(t, WithNotifier(n))

		rec := doRequest(e, http.MethodGet, "/api/v1/health", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, notification.HealthHealthy, resp.Status)
		assert.Nil(t, resp.Communications, "shallow checks skip upstream probes")
	})

	t.Run("deep healthy", func(t *testing.T) {
		t.Parallel()
		n := &fakeNotifier{health: notification.HealthStatus{Status: notification.HealthHealthy}}
		e := newTestController(t, WithNotifier(n), WithGeoServices(&fakeGeo{configured: true}))

		rec := doRequest(e, http.MethodGet, "/api/v1/health?deep=true", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Communications)
		assert.Equal(t, notification.HealthHealthy, resp.Communications.Status)
		assert.Equal(t, notification.HealthHealthy, resp.GeoServices)
	})

	t.Run("deep unhealthy", func(t *testing.T) {
		t.Parallel()
		n := &fakeNotifier{health: notification.HealthStatus{Status: notification.HealthUnhealthy}}
		e := newTestController(t, WithNotifier(n))

		rec := doRequest(e, http.MethodGet, "/api/v1/health?deep=true", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGeo_StartCalculation(t *testing.T) {
	t.Parallel()

	geo := &fakeGeo{configured: true}
	e := newTestController(t, WithGeoServices(geo))

	body := `{"projectId":"p1","calculationType":"solar","siteGeometry":{"type":"Point","coordinates":[1,2]}}`
	rec := doRequest(e, http.MethodPost, "/api/v1/geo/calculate", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp geoservices.CalculationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "exec-1", resp.ExecutionID)

	require.NotNil(t, geo.lastReq)
	assert.Equal(t, "p1", geo.lastReq.ProjectID)
	assert.JSONEq(t, `{"type":"Point","coordinates":[1,2]}`, string(geo.lastReq.SiteGeometry))
}

func TestGeo_CalculationStatusWait(t *testing.T) {
	t.Parallel()

	geo := &fakeGeo{status: &geoservices.CalculationStatus{ExecutionID: "exec-1", Status: geoservices.StatusCompleted}}
	e := newTestController(t, WithGeoServices(geo))

	rec := doRequest(e, http.MethodGet, "/api/v1/geo/status/exec-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, geo.polled)

	rec = doRequest(e, http.MethodGet, "/api/v1/geo/status/exec-1?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, geo.polled)
}

func TestGeo_ErrorStatusMapping(t *testing.T) {
	t.Parallel()

	timeout := errors.New(geoservices.ErrCalculationTimeout).
		Component("geoservices").
		Category(errors.CategoryTimeout).
		Build()

	tests := []struct {
		name     string
		err      error
		method   string
		target   string
		body     string
		wantCode int
	}{
		{"upstream status", &geoservices.RequestError{StatusCode: 500, Body: "down"}, http.MethodGet, "/api/v1/geo/calculation-types", "", http.StatusBadGateway},
		{"poll timeout", timeout, http.MethodGet, "/api/v1/geo/status/exec-1?wait=true", "", http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, http.MethodGet, "/api/v1/geo/health", "", http.StatusGatewayTimeout},
		{"bad body", nil, http.MethodPost, "/api/v1/geo/constraints", `{"geometry":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestController(t, WithGeoServices(&fakeGeo{err: tt.err}))
			rec := doRequest(e, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestGeo_ValidateGeometry(t *testing.T) {
	t.Parallel()

	e := newTestController(t, WithGeoServices(&fakeGeo{}))
	rec := doRequest(e, http.MethodPost, "/api/v1/geo/validate-geometry", `{"geometry":{"type":"Point","coordinates":[0,0]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":true}`, rec.Body.String())
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusRequestTimeout, statusForError(errors.New(context.Canceled).Category(errors.CategoryCancellation).Build()))
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(&notification.ConfigurationError{}))
	assert.Equal(t, http.StatusInternalServerError, statusForError(nil))
}
