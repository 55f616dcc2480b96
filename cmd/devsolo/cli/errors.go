package cli

// SilentError signals main that the failure was already reported to the
// user, so the message must not print twice.
type SilentError struct {
	err error
}

// NewSilentError wraps an already-reported error.
func NewSilentError(err error) *SilentError {
	return &SilentError{err: err}
}

func (e *SilentError) Error() string { return e.err.Error() }
func (e *SilentError) Unwrap() error { return e.err }
