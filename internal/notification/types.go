// Package notification dispatches lead-capture form submissions to the
// remote communications function.
//
// A submission is turned into a Request by a per-category template, checked,
// and posted as JSON to the configured endpoint. Send waits for the remote
// acknowledgement. SendOptimistic reports success immediately and delivers in
// the background with exponential backoff, signalling operators when delivery
// is finally given up.
package notification

import (
	"fmt"
	"slices"
	"strings"
)

// Category identifies the kind of form that produced a submission.
type Category string

const (
	CategoryContact                Category = "contact"
	CategorySupport                Category = "support"
	CategoryNewsletter             Category = "newsletter"
	CategoryExpertPanelInterest    Category = "expert-panel-interest"
	CategoryExpertPanelApplication Category = "expert-panel-application"
	CategoryWaitingList            Category = "waiting-list"
	CategoryDemoRequest            Category = "demo-request"
	CategoryCTA                    Category = "cta"
	CategoryGeneric                Category = "generic"
)

// Categories lists every supported category in display order.
func Categories() []Category {
	return []Category{
		CategoryContact,
		CategorySupport,
		CategoryNewsletter,
		CategoryExpertPanelInterest,
		CategoryExpertPanelApplication,
		CategoryWaitingList,
		CategoryDemoRequest,
		CategoryCTA,
		CategoryGeneric,
	}
}

// ParseCategory returns the category named s.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Categories(), c) {
		return c, nil
	}
	return "", fmt.Errorf("unknown notification category %q", s)
}

// Family is the routing type forwarded to the remote function. Both expert
// panel categories share one family.
func (c Category) Family() string {
	switch c {
	case CategoryExpertPanelInterest, CategoryExpertPanelApplication:
		return "expert-panel"
	default:
		return string(c)
	}
}

// Field names accepted in Fields.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldSubject         = "subject"
	FieldMessage         = "message"
	FieldDescription     = "description"
	FieldPriority        = "priority"
	FieldExpertise       = "expertise"
	FieldExperience      = "experience"
	FieldCompanyRole     = "companyRole"
	FieldChallengeAnswer = "challengeAnswer"
	FieldTo              = "to"
	FieldChallengeToken  = "recaptchaToken"
)

// Fields holds raw form inputs keyed by field name.
type Fields map[string]string

// Get returns the trimmed value for key.
func (f Fields) Get(key string) string {
	return strings.TrimSpace(f[key])
}

// Request is a fully built notification ready for transmission.
type Request struct {
	Category       Category
	Name           string
	Email          string
	Subject        string
	Body           string
	To             string // optional recipient override
	ChallengeToken string
}

// wireRequest is the JSON body posted to the communications function.
type wireRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
	Type           string `json:"type,omitempty"`
	To             string `json:"to,omitempty"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
}

func (r *Request) wire() wireRequest {
	w := wireRequest{
		Name:           r.Name,
		Email:          r.Email,
		Subject:        r.Subject,
		Message:        r.Body,
		To:             r.To,
		RecaptchaToken: r.ChallengeToken,
	}
	if r.Category != "" {
		w.Type = r.Category.Family()
	}
	return w
}

// Acknowledgement is the decoded response of the communications function.
type Acknowledgement struct {
	OK          bool   `json:"ok"`
	OperationID string `json:"operationId,omitempty"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Result is the caller-visible outcome of a dispatch. It is shaped for the
// toast banners rendered by the forms.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	OperationID string `json:"operationId,omitempty"`

	// Err is the typed cause of a failure
	Err error `json:"-"`
}

const (
	messageSent     = "Message sent successfully"
	messageAccepted = "Message accepted for delivery"
)

func successResult(ack *Acknowledgement) Result {
	r := Result{Success: true, Message: messageSent}
	if ack != nil && ack.OperationID != "" {
		r.OperationID = ack.OperationID
		r.Message = fmt.Sprintf("%s (operation %s)", messageSent, ack.OperationID)
	}
	return r
}

func failureResult(err error) Result {
	return Result{Success: false, Error: err.Error(), Err: err}
}
