// Package privacy scrubs personal data and access keys from text before it
// leaves the process in telemetry events or operator alerts.
package privacy

import (
	"net/url"
	"regexp"
)

var (
	urlQueryPattern = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	emailPattern    = regexp.MustCompile(`[^\s@"<>]+@[^\s@"<>]+\.[A-Za-z]{2,}`)
	keyPatterns     = []*regexp.Regexp{
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)code[=:]\S+`),
		regexp.MustCompile(`(?i)token[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// ScrubMessage removes URL query strings, e-mail addresses and key-like
// tokens from message.
func ScrubMessage(message string) string {
	scrubbed := urlQueryPattern.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = emailPattern.ReplaceAllString(scrubbed, "[EMAIL_REDACTED]")
	for _, pattern := range keyPatterns {
		scrubbed = pattern.ReplaceAllString(scrubbed, "[API_KEY_REDACTED]")
	}
	return scrubbed
}

// RedactURL keeps the scheme, host and path of rawURL and drops user
// info, query and fragment. Unparseable input is replaced entirely.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "[REDACTED_URL]"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
