package logger

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// SensitiveDataPatterns match secrets embedded in free text. The first
// capture group is kept and everything after it is replaced.
var SensitiveDataPatterns = []*regexp.Regexp{
	// Bearer tokens
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),

	// Function access codes carried in the query string
	regexp.MustCompile(`(?i)([?&](?:code|key)=)([^&\s"]+)`),

	// Function key header
	regexp.MustCompile(`(?i)(x-functions-key[\s:=]+)([^;,\s"]+)`),

	// Challenge tokens inside serialized payloads
	regexp.MustCompile(`(?i)("?recaptchaToken"?\s*[:=]\s*"?)([^",\s}]{5,})`),

	// Cookies
	regexp.MustCompile(`(?i)((?:session|csrf|sid)=)([^;,\s]{5,})`),
}

// SensitiveKeywords mark field keys whose string values are always redacted
var SensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "function_key",
	"functions_key", "access_code", "authorization", "cookie", "session", "csrf",
}

// RedactSensitiveData replaces sensitive information with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	for _, pattern := range SensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "${1}"+redactedPlaceholder)
	}

	return input
}

// IsSensitiveKey reports whether a field key names a secret.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range SensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}

// RedactSensitiveFields returns a copy of fields with secret values replaced.
func RedactSensitiveFields(fields []Field) []Field {
	result := make([]Field, len(fields))
	copy(result, fields)

	for i := range result {
		value, ok := result[i].Value.(string)
		if !ok || value == "" {
			continue
		}
		if IsSensitiveKey(result[i].Key) {
			result[i].Value = redactedPlaceholder
			continue
		}
		result[i].Value = RedactSensitiveData(value)
	}

	return result
}
