package privacy

// SanitizedError reports a scrubbed message while keeping the original
// error reachable through Unwrap.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError returns err with its message passed through ScrubMessage.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{original: err, sanitizedMsg: ScrubMessage(err.Error())}
}
