package notification

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	missingFieldsReason = "Missing required fields: name, email, subject, and message are required"
	invalidEmailReason  = "Invalid email format"
)

// Validate performs the only two checks made before transmission: all four
// content fields are present and the email address is well formed.
func Validate(req *Request) error {
	if req == nil {
		return &ValidationError{Reason: missingFieldsReason}
	}

	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, FieldEmail)
	}
	if strings.TrimSpace(req.Subject) == "" {
		missing = append(missing, FieldSubject)
	}
	if strings.TrimSpace(req.Body) == "" {
		missing = append(missing, FieldMessage)
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: missingFieldsReason}
	}

	if !IsValidEmail(req.Email) {
		return &ValidationError{Fields: []string{FieldEmail}, Reason: invalidEmailReason}
	}
	return nil
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
