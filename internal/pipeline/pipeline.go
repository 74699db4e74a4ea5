// Package pipeline orchestrates one keyword search request end to end:
// validate, load cached configuration, search with fallback, analyze with the
// configured LLM backend, cap to three recommendations, cache the answer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"top3hunter/internal/configstore"
	"top3hunter/internal/core"
	"top3hunter/internal/llm"
	"top3hunter/internal/logger"
	"top3hunter/internal/search"
)

// Cache keys owned by the pipeline. ConfigCacheKey is exported so the admin
// surface can invalidate the snapshot it caches under it.
const (
	ConfigCacheKey    = "app_configs"
	responseKeyPrefix = "search:"
)

// CacheStore is the slice of the cache layer the pipeline consumes. Both
// operations are fault-swallowing: a failed read is a miss, a failed write a
// no-op.
type CacheStore interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
}

// ConfigSource supplies the full runtime configuration map.
type ConfigSource interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

// Searcher runs a search with provider fallback.
type Searcher interface {
	SearchWithFallback(ctx context.Context, keyword string, opts search.Options) ([]search.Result, error)
}

// Analyzer turns search results into capped recommendations; it never fails.
type Analyzer interface {
	Analyze(ctx context.Context, req llm.AnalyzeRequest) []core.ProductRecommendation
}

// Options tunes the pipeline's timeouts, TTLs, and search locale.
type Options struct {
	SearchTimeout time.Duration
	LLMTimeout    time.Duration
	ResponseTTL   time.Duration
	ConfigTTL     time.Duration
	MaxResults    int
	Language      string
	Region        string
}

func (o *Options) applyDefaults() {
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = 30 * time.Second
	}
	if o.LLMTimeout <= 0 {
		o.LLMTimeout = 60 * time.Second
	}
	if o.ResponseTTL <= 0 {
		o.ResponseTTL = 6 * time.Hour
	}
	if o.ConfigTTL <= 0 {
		o.ConfigTTL = time.Minute
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 10
	}
}

// Pipeline is the request orchestrator. It holds no per-request state;
// concurrent runs share only the cache, whose operations are atomic per key.
type Pipeline struct {
	cache   CacheStore
	configs ConfigSource
	opts    Options

	// Provider factories, replaceable in tests. Providers are constructed
	// per request because their credentials come from the config store.
	newSearcher func(apiKey string) Searcher
	newAnalyzer func(provider, apiKey, model string) (Analyzer, error)
}

// New wires a pipeline with the production provider factories.
func New(cacheStore CacheStore, configs ConfigSource, opts Options) *Pipeline {
	opts.applyDefaults()
	p := &Pipeline{cache: cacheStore, configs: configs, opts: opts}
	p.newSearcher = func(apiKey string) Searcher {
		return search.NewSerperClient(apiKey, opts.SearchTimeout)
	}
	p.newAnalyzer = func(provider, apiKey, model string) (Analyzer, error) {
		return llm.NewService(provider, apiKey, model, opts.LLMTimeout)
	}
	return p
}

// SetSearcherFactory overrides the search provider factory (tests).
func (p *Pipeline) SetSearcherFactory(f func(apiKey string) Searcher) { p.newSearcher = f }

// SetAnalyzerFactory overrides the analysis provider factory (tests).
func (p *Pipeline) SetAnalyzerFactory(f func(provider, apiKey, model string) (Analyzer, error)) {
	p.newAnalyzer = f
}

// Run executes the full pipeline for a keyword. Validation problems return a
// *ValidationError; provider-side faults degrade into synthetic
// recommendations instead of errors, so a nil error always carries a
// well-formed response.
func (p *Pipeline) Run(ctx context.Context, keyword string) (*core.SearchResponse, error) {
	start := time.Now()
	runID := uuid.NewString()

	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, &ValidationError{Message: "product keyword must not be empty"}
	}
	if utf8.RuneCountInString(keyword) > search.MaxKeywordLength {
		return nil, &ValidationError{Message: fmt.Sprintf("product keyword must not exceed %d characters", search.MaxKeywordLength)}
	}
	if !search.ValidateQuery(keyword) {
		return nil, &ValidationError{Message: "product keyword contains invalid characters"}
	}

	log := logger.Get().With("run_id", runID, "keyword", keyword)

	// A repeated keyword inside the TTL window replays the previous full
	// answer without touching configuration or providers.
	responseKey := responseKeyPrefix + normalizeKeyword(keyword)
	var cached core.SearchResponse
	if p.cache.Get(ctx, responseKey, &cached) {
		cached.Cached = true
		log.Info("search served from cache")
		return &cached, nil
	}

	configs := p.loadConfigs(ctx)

	serperKey := configs[configstore.KeySerperAPIKey]
	if !configuredSecret(configstore.KeySerperAPIKey, serperKey) {
		return nil, &ValidationError{Message: "search service API key is not configured, contact the administrator"}
	}
	llmKey := configs[configstore.KeyLLMAPIKey]
	if !configuredSecret(configstore.KeyLLMAPIKey, llmKey) {
		return nil, &ValidationError{Message: "analysis service API key is not configured, contact the administrator"}
	}

	provider := valueOr(configs, configstore.KeyLLMProvider, "anthropic")
	model := valueOr(configs, configstore.KeyLLMModelName, "claude-3-haiku-20240307")
	if !llm.IsSupported(provider) {
		return nil, &ValidationError{Message: fmt.Sprintf("unsupported LLM provider: %s", provider)}
	}

	systemPrompt := p.promptMaterial(configs, configstore.KeySystemPrompt)
	userPromptTemplate := p.promptMaterial(configs, configstore.KeyUserPromptTemplate)
	toolDefRaw := p.promptMaterial(configs, configstore.KeyToolDefinition)

	tool, err := core.ParseToolDefinition(toolDefRaw)
	if err != nil {
		logger.Error("tool definition is misconfigured", err)
		return nil, &ValidationError{Message: "system configuration error: tool definition is invalid"}
	}

	products := p.searchAndAnalyze(ctx, log, searchAnalyzeParams{
		keyword:            keyword,
		serperKey:          serperKey,
		llmProvider:        provider,
		llmKey:             llmKey,
		llmModel:           model,
		systemPrompt:       systemPrompt,
		userPromptTemplate: userPromptTemplate,
		tool:               tool,
	})

	products = core.CapRecommendations(products)
	elapsed := math.Round(time.Since(start).Seconds()*100) / 100
	response := &core.SearchResponse{
		Products:     products,
		TotalResults: len(products),
		SearchTime:   elapsed,
		Cached:       false,
	}

	p.cache.Set(ctx, responseKey, response, p.opts.ResponseTTL)
	log.Info("search completed", "products", response.TotalResults, "search_time", elapsed)
	return response, nil
}

type searchAnalyzeParams struct {
	keyword            string
	serperKey          string
	llmProvider        string
	llmKey             string
	llmModel           string
	systemPrompt       string
	userPromptTemplate string
	tool               core.ToolDefinition
}

// searchAndAnalyze runs the two provider legs sequentially. Any failure here
// is a user-facing degradation, never a hard error.
func (p *Pipeline) searchAndAnalyze(ctx context.Context, log *slog.Logger, params searchAnalyzeParams) []core.ProductRecommendation {
	searcher := p.newSearcher(params.serperKey)
	results, err := searcher.SearchWithFallback(ctx, params.keyword, search.Options{
		MaxResults: p.opts.MaxResults,
		Language:   p.opts.Language,
		Region:     p.opts.Region,
	})
	if err != nil {
		log.Warn("search leg failed, serving degraded result", "error", err.Error())
		return llm.DegradedRecommendations(params.keyword)
	}

	if len(results) == 0 {
		log.Warn("no search results found")
		return emptyResults(params.keyword)
	}

	analyzer, err := p.newAnalyzer(params.llmProvider, params.llmKey, params.llmModel)
	if err != nil {
		log.Warn("analyzer construction failed, serving degraded result", "error", err.Error())
		return llm.DegradedRecommendations(params.keyword)
	}

	return analyzer.Analyze(ctx, llm.AnalyzeRequest{
		Keyword:            params.keyword,
		SearchResults:      results,
		SystemPrompt:       params.systemPrompt,
		UserPromptTemplate: params.userPromptTemplate,
		Tool:               params.tool,
	})
}

// loadConfigs returns the current configuration snapshot, preferring the
// cached copy. A store fault yields an empty map; the missing-secret checks
// then surface the problem as a validation error.
func (p *Pipeline) loadConfigs(ctx context.Context) map[string]string {
	var configs map[string]string
	if p.cache.Get(ctx, ConfigCacheKey, &configs) {
		return configs
	}

	configs, err := p.configs.GetAll(ctx)
	if err != nil {
		logger.Error("failed to load configuration snapshot", err)
		return map[string]string{}
	}

	p.cache.Set(ctx, ConfigCacheKey, configs, p.opts.ConfigTTL)
	return configs
}

// promptMaterial prefers the stored value, falling back to the built-in seed
// default. Missing prompt material is not an error.
func (p *Pipeline) promptMaterial(configs map[string]string, key string) string {
	if v := configs[key]; v != "" {
		return v
	}
	logger.Warn("prompt configuration missing, using built-in default", "key", key)
	v, _ := configstore.DefaultValue(key)
	return v
}

// emptyResults is the valid, non-error answer for a keyword with zero search
// results.
func emptyResults(keyword string) []core.ProductRecommendation {
	return []core.ProductRecommendation{{
		Rank:        1,
		ProductName: fmt.Sprintf("No products found for %s", keyword),
		Description: "Sorry, no matching product recommendations were found. Try a different keyword or retry later.",
		SourceLink:  "https://example.com",
		Price:       "n/a",
		Rating:      0.0,
		Pros:        []string{},
		Cons:        []string{"No matching products found"},
		BestFor:     "Try a different search term",
	}}
}

func configuredSecret(key, value string) bool {
	if value == "" {
		return false
	}
	return value != configstore.Placeholders[key]
}

func valueOr(configs map[string]string, key, fallback string) string {
	if v := configs[key]; v != "" {
		return v
	}
	return fallback
}

// normalizeKeyword derives the response cache key: the same keyword modulo
// case and surrounding space hits the same entry.
func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
