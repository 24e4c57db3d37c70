package notification

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/australis-energy/leadgate/internal/errors"
)

// ConfigurationError means the communications endpoint is not configured.
// It is raised before any network activity.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return "Communications function URL is not configured"
}

func (e *ConfigurationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryConfiguration
}

// ValidationError means a request failed the field or email check.
type ValidationError struct {
	Fields []string // empty field names, if any
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryValidation
}

// TransportError covers network failures, non-success statuses and
// unparseable responses.
type TransportError struct {
	StatusCode int    // 0 when no response was received
	Body       string // truncated response body
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Communications function request failed: %d - %s", e.StatusCode, strings.TrimSpace(e.Body))
	}
	return "Communications function request failed: " + causeText(e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func (e *TransportError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryNetwork
}

// causeText drops the request URL from net/http errors so the access key
// never reaches a caller.
func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// RemoteRejection means the remote function answered but did not
// acknowledge the request.
type RemoteRejection struct {
	Reason string
	Status string
}

const defaultRejectionReason = "remote service rejected the request"

func (e *RemoteRejection) Error() string {
	if e.Reason == "" {
		return defaultRejectionReason
	}
	return e.Reason
}

func (e *RemoteRejection) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryRemoteRejection
}
