// Package search wraps the external web search providers feeding the
// recommendation pipeline: Serper as the paid primary, a DuckDuckGo HTML
// scrape as the degraded fallback.
package search

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Provider defines the unified interface for search providers.
type Provider interface {
	// Search returns results ordered by provider-assigned relevance.
	Search(ctx context.Context, keyword string, opts Options) ([]Result, error)

	// Name returns the name of the search provider.
	Name() string
}

// Options holds per-search configuration.
type Options struct {
	MaxResults int    // Maximum number of results to return
	Language   string // Language hint (e.g. "en", "zh-cn")
	Region     string // Country hint (e.g. "us", "cn")
}

// Result represents a unified search result. A knowledge-graph entry, when the
// provider returns one, is prepended with Position 0.
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
	Favicon  string `json:"favicon,omitempty"`
	Date     string `json:"date,omitempty"`
	Source   string `json:"source,omitempty"` // Provider-specific source identifier
}

// MaxKeywordLength is the longest accepted search keyword, in characters.
// Multibyte keywords count runes, not bytes.
const MaxKeywordLength = 200

const forbiddenChars = "<>|{}[]\\^`"

// ValidateQuery reports whether a keyword is safe to send to the providers:
// non-empty after trimming, at most 200 characters, and free of characters
// that could break out of the query string.
func ValidateQuery(query string) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	if utf8.RuneCountInString(query) > MaxKeywordLength {
		return false
	}
	return !strings.ContainsAny(query, forbiddenChars)
}
