package search

import "fmt"

// ErrorKind classifies a provider failure by cause.
type ErrorKind string

const (
	KindBadCredentials ErrorKind = "bad_credentials"
	KindRateLimited    ErrorKind = "rate_limited"
	KindTimeout        ErrorKind = "timeout"
	KindNetwork        ErrorKind = "network"
	KindUpstream       ErrorKind = "upstream"
	KindUnavailable    ErrorKind = "unavailable"
	KindUnexpected     ErrorKind = "unexpected"
)

// ProviderError is the single error type surfaced by search providers. It
// carries the originating service and a human-readable message.
type ProviderError struct {
	Service string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
