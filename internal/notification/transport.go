package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/httpclient"
)

const (
	maxErrorBodySize    = 1 << 10
	maxResponseBodySize = 64 << 10
)

// Transport performs exactly one delivery attempt.
type Transport interface {
	Deliver(ctx context.Context, endpoint conf.Endpoint, req *Request) (*Acknowledgement, error)
}

// HTTPTransport posts requests to the communications function.
type HTTPTransport struct {
	client *httpclient.Client
}

// NewHTTPTransport returns a transport using client. A nil client gets the
// shared defaults.
func NewHTTPTransport(client *httpclient.Client) *HTTPTransport {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &HTTPTransport{client: client}
}

// Deliver posts req once. It succeeds only on a 2xx response whose body
// acknowledges the request.
func (t *HTTPTransport) Deliver(ctx context.Context, endpoint conf.Endpoint, req *Request) (*Acknowledgement, error) {
	if !endpoint.IsConfigured() {
		return nil, &ConfigurationError{Setting: "communications.url"}
	}

	resp, err := t.client.Post(ctx, functionURL(endpoint), "application/json", req.wire())
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var ack Acknowledgement
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&ack); err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("invalid response body: %w", err)}
	}
	if !ack.OK {
		return nil, &RemoteRejection{Reason: ack.Error, Status: ack.Status}
	}
	return &ack, nil
}

// functionURL appends the access key as the code query parameter.
func functionURL(endpoint conf.Endpoint) string {
	if endpoint.Key == "" {
		return endpoint.URL
	}
	sep := "?"
	if strings.Contains(endpoint.URL, "?") {
		sep = "&"
	}
	return endpoint.URL + sep + "code=" + url.QueryEscape(endpoint.Key)
}

// Health states reported by HealthCheck.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthError     = "error"
)

// HealthStatus is the outcome of a communications health probe.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// HealthCheck issues a GET to the endpoint base URL.
func (t *HTTPTransport) HealthCheck(ctx context.Context, endpoint conf.Endpoint) HealthStatus {
	status := HealthStatus{Timestamp: time.Now().UTC()}
	if !endpoint.IsConfigured() {
		status.Status = HealthError
		status.Error = (&ConfigurationError{}).Error()
		return status
	}

	resp, err := t.client.Get(ctx, endpoint.URL)
	if err != nil {
		status.Status = HealthError
		status.Error = causeText(err)
		return status
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		status.Status = HealthHealthy
	} else {
		status.Status = HealthUnhealthy
		status.Error = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return status
}
