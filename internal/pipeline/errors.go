package pipeline

// ValidationError marks caller input or system misconfiguration problems.
// Unlike provider faults it is always surfaced as a hard error (HTTP 400) and
// never retried or degraded.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Code returns the wire error code for the validation class.
func (e *ValidationError) Code() string {
	return "VALIDATION_ERROR"
}
