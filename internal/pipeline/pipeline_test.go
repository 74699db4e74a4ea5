package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"top3hunter/internal/configstore"
	"top3hunter/internal/core"
	"top3hunter/internal/llm"
	"top3hunter/internal/search"
)

type fakeCache struct {
	entries map[string][]byte
	sets    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}, sets: map[string]time.Duration{}}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest any) bool {
	raw, ok := f.entries[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		return false
	}
	f.entries[key] = raw
	f.sets[key] = ttl
	return true
}

type fakeConfigs struct {
	configs map[string]string
	err     error
	calls   int
}

func (f *fakeConfigs) GetAll(ctx context.Context) (map[string]string, error) {
	f.calls++
	return f.configs, f.err
}

type fakeSearcher struct {
	results []search.Result
	err     error
	calls   int
	keyword string
}

func (f *fakeSearcher) SearchWithFallback(ctx context.Context, keyword string, opts search.Options) ([]search.Result, error) {
	f.calls++
	f.keyword = keyword
	return f.results, f.err
}

type fakeAnalyzer struct {
	products []core.ProductRecommendation
	calls    int
	lastReq  llm.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req llm.AnalyzeRequest) []core.ProductRecommendation {
	f.calls++
	f.lastReq = req
	return f.products
}

func validConfigs() map[string]string {
	return map[string]string{
		configstore.KeySerperAPIKey: "real-serper-key",
		configstore.KeyLLMAPIKey:    "real-llm-key",
		configstore.KeyLLMProvider:  "anthropic",
		configstore.KeyLLMModelName: "claude-3-haiku-20240307",
	}
}

func recommendations(n int) []core.ProductRecommendation {
	var out []core.ProductRecommendation
	for i := 1; i <= n; i++ {
		out = append(out, core.ProductRecommendation{
			Rank:        i,
			ProductName: fmt.Sprintf("Product %d", i),
			Description: "d",
			SourceLink:  fmt.Sprintf("https://p%d.example.com", i),
			Rating:      4.5,
		})
	}
	return out
}

// newTestPipeline wires a pipeline against fakes. The returned searcher and
// analyzer record their calls.
func newTestPipeline(configs map[string]string) (*Pipeline, *fakeCache, *fakeSearcher, *fakeAnalyzer) {
	cache := newFakeCache()
	searcher := &fakeSearcher{results: []search.Result{{Title: "hit", Link: "https://hit.example.com"}}}
	analyzer := &fakeAnalyzer{products: recommendations(3)}

	p := New(cache, &fakeConfigs{configs: configs}, Options{})
	p.SetSearcherFactory(func(apiKey string) Searcher { return searcher })
	p.SetAnalyzerFactory(func(provider, apiKey, model string) (Analyzer, error) { return analyzer, nil })
	return p, cache, searcher, analyzer
}

func TestRunHappyPath(t *testing.T) {
	p, cache, searcher, analyzer := newTestPipeline(validConfigs())

	resp, err := p.Run(context.Background(), "wireless headphones")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.TotalResults != 3 || len(resp.Products) != 3 {
		t.Errorf("Expected 3 products, got %d", len(resp.Products))
	}
	if resp.Cached {
		t.Error("Expected fresh response to have cached=false")
	}
	if searcher.calls != 1 || analyzer.calls != 1 {
		t.Errorf("Expected one call each, got search=%d analyze=%d", searcher.calls, analyzer.calls)
	}
	if analyzer.lastReq.Keyword != "wireless headphones" {
		t.Errorf("Expected keyword forwarded to analyzer, got %q", analyzer.lastReq.Keyword)
	}
	if analyzer.lastReq.Tool.Name != "report_top3_products" {
		t.Errorf("Expected default tool definition, got %q", analyzer.lastReq.Tool.Name)
	}
	if _, ok := cache.entries["search:wireless headphones"]; !ok {
		t.Error("Expected response cached under normalized keyword")
	}
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"too long", strings.Repeat("a", search.MaxKeywordLength+1)},
		{"too long multibyte", strings.Repeat("耳", search.MaxKeywordLength+1)},
		{"forbidden characters", "headphones <best>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, searcher, analyzer := newTestPipeline(validConfigs())

			_, err := p.Run(context.Background(), tt.keyword)
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if searcher.calls != 0 || analyzer.calls != 0 {
				t.Errorf("Expected no provider calls on invalid input, got search=%d analyze=%d",
					searcher.calls, analyzer.calls)
			}
		})
	}
}

func TestRunAcceptsMultibyteKeyword(t *testing.T) {
	p, _, searcher, _ := newTestPipeline(validConfigs())

	// 100 characters but 300 bytes; the limit counts characters
	keyword := strings.Repeat("耳", 100)
	resp, err := p.Run(context.Background(), keyword)
	if err != nil {
		t.Fatalf("Expected no error for a 100-character keyword, got %v", err)
	}
	if len(resp.Products) != 3 {
		t.Errorf("Expected 3 products, got %d", len(resp.Products))
	}
	if searcher.keyword != keyword {
		t.Errorf("Expected keyword forwarded untouched, got %q", searcher.keyword)
	}
}

func TestRunMissingOrPlaceholderSecrets(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantMsg string
	}{
		{
			"missing search key",
			func(c map[string]string) { delete(c, configstore.KeySerperAPIKey) },
			"search service",
		},
		{
			"placeholder search key",
			func(c map[string]string) {
				c[configstore.KeySerperAPIKey] = configstore.Placeholders[configstore.KeySerperAPIKey]
			},
			"search service",
		},
		{
			"missing llm key",
			func(c map[string]string) { delete(c, configstore.KeyLLMAPIKey) },
			"analysis service",
		},
		{
			"placeholder llm key",
			func(c map[string]string) {
				c[configstore.KeyLLMAPIKey] = configstore.Placeholders[configstore.KeyLLMAPIKey]
			},
			"analysis service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configs := validConfigs()
			tt.mutate(configs)
			p, _, searcher, _ := newTestPipeline(configs)

			_, err := p.Run(context.Background(), "headphones")
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if !strings.Contains(valErr.Message, tt.wantMsg) {
				t.Errorf("Expected message to mention %q, got %q", tt.wantMsg, valErr.Message)
			}
			if searcher.calls != 0 {
				t.Errorf("Expected no search call with unconfigured secrets, got %d", searcher.calls)
			}
		})
	}
}

func TestRunUnsupportedProvider(t *testing.T) {
	configs := validConfigs()
	configs[configstore.KeyLLMProvider] = "mistral"
	p, _, searcher, _ := newTestPipeline(configs)

	_, err := p.Run(context.Background(), "headphones")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if !strings.Contains(valErr.Message, "mistral") {
		t.Errorf("Expected provider name in message, got %q", valErr.Message)
	}
	if searcher.calls != 0 {
		t.Errorf("Expected provider check before the search leg, got %d search calls", searcher.calls)
	}
}

func TestRunInvalidToolDefinition(t *testing.T) {
	configs := validConfigs()
	configs[configstore.KeyToolDefinition] = `{"name": "report_top3_products"}` // missing input_schema
	p, _, _, _ := newTestPipeline(configs)

	_, err := p.Run(context.Background(), "headphones")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if !strings.Contains(valErr.Message, "tool definition") {
		t.Errorf("Expected tool definition message, got %q", valErr.Message)
	}
}

func TestRunEmptySearchResults(t *testing.T) {
	p, _, searcher, analyzer := newTestPipeline(validConfigs())
	searcher.results = nil

	resp, err := p.Run(context.Background(), "nonexistent gadget")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(resp.Products) != 1 {
		t.Fatalf("Expected 1 placeholder product, got %d", len(resp.Products))
	}
	if resp.Products[0].Rating != 0.0 {
		t.Errorf("Expected rating 0.0 for empty results, got %v", resp.Products[0].Rating)
	}
	if len(resp.Products[0].Cons) == 0 || resp.Products[0].Cons[0] != "No matching products found" {
		t.Errorf("Expected 'No matching products found' con, got %v", resp.Products[0].Cons)
	}
	if analyzer.calls != 0 {
		t.Errorf("Expected no analysis of empty results, got %d calls", analyzer.calls)
	}

	// The zero rating and the empty pros list must survive serialization
	raw, err := json.Marshal(resp.Products[0])
	if err != nil {
		t.Fatalf("Expected serializable product, got %v", err)
	}
	if !strings.Contains(string(raw), `"rating":0`) {
		t.Errorf("Expected rating 0 on the wire, got %s", raw)
	}
	if !strings.Contains(string(raw), `"pros":[]`) {
		t.Errorf("Expected empty pros array on the wire, got %s", raw)
	}
}

func TestRunSearchFailureDegrades(t *testing.T) {
	p, _, searcher, _ := newTestPipeline(validConfigs())
	searcher.results = nil
	searcher.err = &search.ProviderError{Service: "Search Service", Kind: search.KindUnavailable, Message: "all search services unavailable"}

	resp, err := p.Run(context.Background(), "headphones")
	if err != nil {
		t.Fatalf("Expected degraded response, got error %v", err)
	}
	if len(resp.Products) != 1 {
		t.Fatalf("Expected 1 degraded product, got %d", len(resp.Products))
	}
	if resp.Products[0].Rating != 3.5 {
		t.Errorf("Expected degraded rating 3.5, got %v", resp.Products[0].Rating)
	}
}

func TestRunAnalyzerConstructionFailureDegrades(t *testing.T) {
	p, _, _, _ := newTestPipeline(validConfigs())
	p.SetAnalyzerFactory(func(provider, apiKey, model string) (Analyzer, error) {
		return nil, errors.New("construction failed")
	})

	resp, err := p.Run(context.Background(), "headphones")
	if err != nil {
		t.Fatalf("Expected degraded response, got error %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].Rating != 3.5 {
		t.Errorf("Expected degraded recommendation, got %v", resp.Products)
	}
}

func TestRunCapsToThree(t *testing.T) {
	p, _, _, analyzer := newTestPipeline(validConfigs())
	analyzer.products = recommendations(5)

	resp, err := p.Run(context.Background(), "headphones")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(resp.Products) != 3 {
		t.Fatalf("Expected 3 products, got %d", len(resp.Products))
	}
	for i, prod := range resp.Products {
		if prod.ProductName != fmt.Sprintf("Product %d", i+1) {
			t.Errorf("Expected first three kept unmodified, got %q at %d", prod.ProductName, i)
		}
	}
}

func TestRunCachedReplay(t *testing.T) {
	p, _, searcher, analyzer := newTestPipeline(validConfigs())

	first, err := p.Run(context.Background(), "Wireless Headphones")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first.Cached {
		t.Error("Expected first response uncached")
	}

	// Same keyword modulo case and whitespace must replay the cached answer
	second, err := p.Run(context.Background(), "  wireless headphones ")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !second.Cached {
		t.Error("Expected second response to be served from cache")
	}
	if len(second.Products) != len(first.Products) {
		t.Errorf("Expected identical products, got %d vs %d", len(second.Products), len(first.Products))
	}
	if searcher.calls != 1 || analyzer.calls != 1 {
		t.Errorf("Expected providers untouched on replay, got search=%d analyze=%d",
			searcher.calls, analyzer.calls)
	}
}

func TestRunConfigSnapshotIsCached(t *testing.T) {
	cache := newFakeCache()
	configs := &fakeConfigs{configs: validConfigs()}
	searcher := &fakeSearcher{results: []search.Result{{Title: "hit"}}}
	analyzer := &fakeAnalyzer{products: recommendations(3)}

	p := New(cache, configs, Options{})
	p.SetSearcherFactory(func(apiKey string) Searcher { return searcher })
	p.SetAnalyzerFactory(func(provider, apiKey, model string) (Analyzer, error) { return analyzer, nil })

	if _, err := p.Run(context.Background(), "keyboards"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := p.Run(context.Background(), "monitors"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if configs.calls != 1 {
		t.Errorf("Expected one store read with a warm config cache, got %d", configs.calls)
	}
	if ttl := cache.sets["app_configs"]; ttl != time.Minute {
		t.Errorf("Expected config snapshot TTL of 1m, got %v", ttl)
	}
}

func TestRunConfigStoreFailureSurfacesAsValidation(t *testing.T) {
	cache := newFakeCache()
	p := New(cache, &fakeConfigs{err: errors.New("connection refused")}, Options{})
	p.SetSearcherFactory(func(apiKey string) Searcher { return &fakeSearcher{} })
	p.SetAnalyzerFactory(func(provider, apiKey, model string) (Analyzer, error) { return &fakeAnalyzer{}, nil })

	_, err := p.Run(context.Background(), "headphones")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
}

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Headphones", "headphones"},
		{"  USB-C Hub  ", "usb-c hub"},
		{"already lower", "already lower"},
	}
	for _, tt := range tests {
		if got := normalizeKeyword(tt.in); got != tt.want {
			t.Errorf("normalizeKeyword(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
