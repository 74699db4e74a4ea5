// Package llm abstracts the analysis backends that turn raw search results
// into ranked product recommendations via forced tool-calling. Backends share
// one contract; each owns its wire format.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"top3hunter/internal/core"
	"top3hunter/internal/logger"
	"top3hunter/internal/search"
)

// Supported backend names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// ErrUnsupportedProvider is returned when an unknown backend name is selected.
// The check happens at construction, before any network call.
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// Placeholder tokens substituted into the user prompt template.
const (
	keywordPlaceholder = "[USER_KEYWORD]"
	resultsPlaceholder = "[SEARCH_RESULTS]"
)

// AnalyzeRequest carries everything a backend needs for one analysis call.
type AnalyzeRequest struct {
	Keyword            string
	SearchResults      []search.Result
	SystemPrompt       string
	UserPromptTemplate string
	Tool               core.ToolDefinition
}

// Backend is the per-provider analysis contract. Implementations issue one
// bounded HTTP call, force the model to invoke the named tool, and parse the
// invocation. A model that did not invoke the tool yields an empty list, not
// an error.
type Backend interface {
	Analyze(ctx context.Context, req AnalyzeRequest) ([]core.ProductRecommendation, error)
	Name() string
}

// IsSupported reports whether a backend name can be constructed.
func IsSupported(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
		return true
	}
	return false
}

// Service manages a single backend and applies the orchestration-level
// degradation policy: backend faults and empty parses become one synthetic
// recommendation instead of errors.
type Service struct {
	backend Backend
}

// NewService selects and constructs a backend. An unsupported provider name
// fails immediately, before any network attempt.
func NewService(provider, apiKey, model string, timeout time.Duration) (*Service, error) {
	var backend Backend
	switch strings.ToLower(provider) {
	case ProviderAnthropic:
		backend = NewAnthropicBackend(apiKey, model, timeout)
	case ProviderOpenAI:
		backend = NewOpenAIBackend(apiKey, model, timeout)
	case ProviderGemini:
		backend = NewGeminiBackend(apiKey, model, timeout)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	return &Service{backend: backend}, nil
}

// NewServiceWithBackend wraps an explicit backend (used by tests).
func NewServiceWithBackend(backend Backend) *Service {
	return &Service{backend: backend}
}

// Analyze runs the backend and never fails: a backend error or an empty parse
// produces the degraded recommendation, more than three results are truncated
// to the first three in backend order, fewer are returned as-is.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) []core.ProductRecommendation {
	products, err := s.backend.Analyze(ctx, req)
	if err != nil {
		logger.Error("LLM analysis failed", err, "backend", s.backend.Name(), "keyword", req.Keyword)
		return DegradedRecommendations(req.Keyword)
	}
	if len(products) == 0 {
		logger.Warn("LLM returned no recommendations", "backend", s.backend.Name(), "keyword", req.Keyword)
		return DegradedRecommendations(req.Keyword)
	}

	if len(products) < core.MaxRecommendations {
		logger.Warn("LLM returned fewer recommendations than expected",
			"backend", s.backend.Name(), "count", len(products))
	}
	return core.CapRecommendations(products)
}

// DegradedRecommendations is the synthetic answer returned when analysis is
// unavailable. It tells the user to retry rather than surfacing a hard error.
func DegradedRecommendations(keyword string) []core.ProductRecommendation {
	return []core.ProductRecommendation{{
		Rank:        1,
		ProductName: fmt.Sprintf("%s product recommendations", keyword),
		Description: "The recommendation service is temporarily unavailable. Please retry shortly for a full analysis. In the meantime, comparing listings across major retailers is a good starting point.",
		SourceLink:  "https://example.com",
		Price:       "unknown",
		Rating:      3.5,
		Pros:        []string{"Compare across multiple retailers"},
		Cons:        []string{"Service temporarily unavailable"},
		BestFor:     "Shoppers willing to do their own research",
	}}
}

// renderUserPrompt substitutes the keyword and the serialized search results
// into the user prompt template using the fixed placeholder tokens.
func renderUserPrompt(template, keyword string, results []search.Result) string {
	serialized, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		serialized = []byte("[]")
	}
	prompt := strings.ReplaceAll(template, keywordPlaceholder, keyword)
	return strings.ReplaceAll(prompt, resultsPlaceholder, string(serialized))
}

// productsPayload is the tool-invocation argument shape shared by every
// backend: an object holding a products array.
type productsPayload struct {
	Products []core.ProductRecommendation `json:"products"`
}
