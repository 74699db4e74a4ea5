package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies an analysis backend failure by cause.
type ErrorKind string

const (
	KindBadCredentials ErrorKind = "bad_credentials"
	KindRateLimited    ErrorKind = "rate_limited"
	KindTimeout        ErrorKind = "timeout"
	KindNetwork        ErrorKind = "network"
	KindUpstream       ErrorKind = "upstream"
	KindUnexpected     ErrorKind = "unexpected"
)

// ProviderError is the single error type surfaced by analysis backends,
// mirroring the search provider taxonomy.
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

func classifyStatus(service string, status int) *ProviderError {
	switch status {
	case http.StatusUnauthorized:
		return &ProviderError{Service: service, Kind: KindBadCredentials, Message: "API key is invalid"}
	case http.StatusTooManyRequests:
		return &ProviderError{Service: service, Kind: KindRateLimited, Message: "API rate limit exceeded"}
	default:
		return &ProviderError{Service: service, Kind: KindUpstream, Message: fmt.Sprintf("API request failed with status %d", status)}
	}
}

func classifyTransport(service string, err error) *ProviderError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ProviderError{Service: service, Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &ProviderError{Service: service, Kind: KindNetwork, Message: "network error", Err: err}
}
