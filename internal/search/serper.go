package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"top3hunter/internal/logger"
)

const serperDefaultURL = "https://google.serper.dev/search"

const serperServiceName = "Serper API"

// SerperProvider implements Provider using the Serper API (serper.dev).
type SerperProvider struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

// NewSerperProvider creates a new Serper search provider with a bounded
// request timeout.
func NewSerperProvider(apiKey string, timeout time.Duration) *SerperProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerperProvider{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		baseURL: serperDefaultURL,
	}
}

// Name returns the name of this provider.
func (p *SerperProvider) Name() string {
	return serperServiceName
}

// serperRequest is the request body for the Serper API.
type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	HL  string `json:"hl,omitempty"`
	GL  string `json:"gl,omitempty"`
}

// serperResponse is the subset of the Serper response the pipeline consumes.
type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
		Favicon  string `json:"favicon,omitempty"`
		Date     string `json:"date,omitempty"`
	} `json:"organic"`
	KnowledgeGraph *struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		DescriptionLink string `json:"descriptionLink"`
	} `json:"knowledgeGraph,omitempty"`
}

// Search performs a product search using the Serper API. The keyword is
// enriched into a buying-guide query before being sent.
func (p *SerperProvider) Search(ctx context.Context, keyword string, opts Options) ([]Result, error) {
	payload := serperRequest{
		Q:   buildProductQuery(keyword),
		Num: opts.MaxResults,
		HL:  opts.Language,
		GL:  opts.Region,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Service: serperServiceName, Kind: KindUnexpected, Message: "failed to encode search request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Service: serperServiceName, Kind: KindUnexpected, Message: "failed to create search request", Err: err}
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(serperServiceName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Error("search API returned non-OK status", nil, "status", resp.StatusCode, "body", string(respBody))
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, &ProviderError{Service: serperServiceName, Kind: KindBadCredentials, Message: "search API key is invalid"}
		case http.StatusTooManyRequests:
			return nil, &ProviderError{Service: serperServiceName, Kind: KindRateLimited, Message: "search API rate limit exceeded, retry later"}
		default:
			return nil, &ProviderError{Service: serperServiceName, Kind: KindUpstream, Message: fmt.Sprintf("search API request failed with status %d", resp.StatusCode)}
		}
	}

	var data serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Service: serperServiceName, Kind: KindUnexpected, Message: "failed to parse search response", Err: err}
	}

	results := p.parseResults(data, opts.MaxResults)
	logger.Info("serper search completed", "keyword", keyword, "results_found", len(results))
	return results, nil
}

func (p *SerperProvider) parseResults(data serperResponse, maxResults int) []Result {
	results := make([]Result, 0, len(data.Organic)+1)

	for _, item := range data.Organic {
		results = append(results, Result{
			Title:    item.Title,
			Link:     item.Link,
			Snippet:  item.Snippet,
			Position: item.Position,
			Favicon:  item.Favicon,
			Date:     item.Date,
			Source:   "organic",
		})
	}

	// A knowledge-graph entry outranks everything the query matched
	if kg := data.KnowledgeGraph; kg != nil {
		results = append([]Result{{
			Title:    kg.Title,
			Link:     kg.DescriptionLink,
			Snippet:  kg.Description,
			Position: 0,
			Source:   "knowledge_graph",
		}}, results...)
	}

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// buildProductQuery enriches a bare keyword into a buying-guide query that
// pulls review and comparison pages to the top.
func buildProductQuery(keyword string) string {
	return fmt.Sprintf("best %s reviews %d buy guide comparison", keyword, time.Now().Year())
}

// classifyTransportError maps a client-side request failure onto the provider
// error taxonomy: deadline expiry is a timeout, anything else is connectivity.
func classifyTransportError(service string, err error) *ProviderError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ProviderError{Service: service, Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &ProviderError{Service: service, Kind: KindNetwork, Message: "network error", Err: err}
}
