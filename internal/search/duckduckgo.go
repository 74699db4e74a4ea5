package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"top3hunter/internal/logger"
)

const ddgServiceName = "DuckDuckGo"

// DuckDuckGoProvider is the degraded fallback: it scrapes the DuckDuckGo HTML
// endpoint, which needs no API key. Results carry no positions from the
// engine, so ranks are assigned in page order.
type DuckDuckGoProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewDuckDuckGoProvider creates the fallback search provider.
func NewDuckDuckGoProvider(timeout time.Duration) *DuckDuckGoProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DuckDuckGoProvider{
		client:    &http.Client{Timeout: timeout},
		baseURL:   "https://html.duckduckgo.com/html/",
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	}
}

// Name returns the name of this provider.
func (d *DuckDuckGoProvider) Name() string {
	return ddgServiceName
}

// Search scrapes the DuckDuckGo HTML results page.
func (d *DuckDuckGoProvider) Search(ctx context.Context, keyword string, opts Options) ([]Result, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("best %s reviews", keyword))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Service: ddgServiceName, Kind: KindUnexpected, Message: "failed to create search request", Err: err}
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ddgServiceName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &ProviderError{Service: ddgServiceName, Kind: KindRateLimited, Message: "fallback search rate limited"}
		}
		return nil, &ProviderError{Service: ddgServiceName, Kind: KindUpstream, Message: fmt.Sprintf("fallback search failed with status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &ProviderError{Service: ddgServiceName, Kind: KindUnexpected, Message: "failed to parse fallback search page", Err: err}
	}

	var results []Result
	doc.Find("div.result").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
			return false
		}

		anchor := sel.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}

		results = append(results, Result{
			Title:    strings.TrimSpace(anchor.Text()),
			Link:     resolveRedirect(href),
			Snippet:  strings.TrimSpace(sel.Find(".result__snippet").Text()),
			Position: len(results) + 1,
			Source:   "fallback",
		})
		return true
	})

	logger.Info("duckduckgo fallback search completed", "keyword", keyword, "results_found", len(results))
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<target> redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
