package search

import (
	"context"
	"time"

	"top3hunter/internal/logger"
)

// Client runs searches against the primary provider and degrades to the
// fallback when it fails. Only a double failure reaches the caller as an
// error; everything else yields a usable, possibly degraded, result list.
type Client struct {
	primary  Provider
	fallback Provider
}

// NewClient builds a search client from an explicit primary and fallback.
func NewClient(primary, fallback Provider) *Client {
	return &Client{primary: primary, fallback: fallback}
}

// NewSerperClient builds the production pairing: Serper primary, DuckDuckGo
// HTML fallback, both bounded by the same timeout.
func NewSerperClient(apiKey string, timeout time.Duration) *Client {
	return NewClient(
		NewSerperProvider(apiKey, timeout),
		NewDuckDuckGoProvider(timeout),
	)
}

// SearchWithFallback queries the primary provider and falls back on any
// provider failure. An empty result list is a valid outcome, not an error.
func (c *Client) SearchWithFallback(ctx context.Context, keyword string, opts Options) ([]Result, error) {
	results, err := c.primary.Search(ctx, keyword, opts)
	if err == nil {
		return results, nil
	}
	logger.Warn("primary search provider failed", "provider", c.primary.Name(), "error", err.Error())

	if c.fallback == nil {
		return nil, err
	}

	results, fbErr := c.fallback.Search(ctx, keyword, opts)
	if fbErr != nil {
		logger.Error("fallback search also failed", fbErr, "provider", c.fallback.Name())
		return nil, &ProviderError{Service: "Search Service", Kind: KindUnavailable, Message: "all search services unavailable"}
	}
	return results, nil
}
