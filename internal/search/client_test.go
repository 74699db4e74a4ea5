package search

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name    string
	results []Result
	err     error
	calls   int
}

func (s *stubProvider) Search(ctx context.Context, keyword string, opts Options) ([]Result, error) {
	s.calls++
	return s.results, s.err
}

func (s *stubProvider) Name() string { return s.name }

func TestSearchWithFallbackPrimarySucceeds(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []Result{{Title: "a"}}}
	fallback := &stubProvider{name: "fallback"}
	client := NewClient(primary, fallback)

	results, err := client.SearchWithFallback(context.Background(), "headphones", Options{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 1 || results[0].Title != "a" {
		t.Errorf("Expected primary results, got %v", results)
	}
	if fallback.calls != 0 {
		t.Errorf("Expected fallback untouched, got %d calls", fallback.calls)
	}
}

func TestSearchWithFallbackUsesFallbackOnPrimaryFailure(t *testing.T) {
	primary := &stubProvider{
		name: "primary",
		err:  &ProviderError{Service: "Serper API", Kind: KindRateLimited, Message: "rate limited"},
	}
	fallback := &stubProvider{name: "fallback", results: []Result{{Title: "fb"}}}
	client := NewClient(primary, fallback)

	results, err := client.SearchWithFallback(context.Background(), "headphones", Options{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 1 || results[0].Title != "fb" {
		t.Errorf("Expected fallback results, got %v", results)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("Expected one call each, got primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestSearchWithFallbackDoubleFailure(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("boom")}
	fallback := &stubProvider{name: "fallback", err: errors.New("also boom")}
	client := NewClient(primary, fallback)

	_, err := client.SearchWithFallback(context.Background(), "headphones", Options{})
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected *ProviderError, got %T", err)
	}
	if provErr.Kind != KindUnavailable {
		t.Errorf("Expected kind %q, got %q", KindUnavailable, provErr.Kind)
	}
	if provErr.Message != "all search services unavailable" {
		t.Errorf("Unexpected message %q", provErr.Message)
	}
}

func TestSearchWithFallbackEmptyResultsIsNotAnError(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []Result{}}
	fallback := &stubProvider{name: "fallback", results: []Result{{Title: "fb"}}}
	client := NewClient(primary, fallback)

	results, err := client.SearchWithFallback(context.Background(), "obscure product", Options{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty results to pass through, got %v", results)
	}
	if fallback.calls != 0 {
		t.Errorf("Expected no fallback call for empty primary results, got %d", fallback.calls)
	}
}

func TestSearchWithFallbackNoFallbackConfigured(t *testing.T) {
	wantErr := &ProviderError{Service: "Serper API", Kind: KindNetwork, Message: "network error"}
	primary := &stubProvider{name: "primary", err: wantErr}
	client := NewClient(primary, nil)

	_, err := client.SearchWithFallback(context.Background(), "headphones", Options{})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected *ProviderError, got %T", err)
	}
	if provErr.Kind != KindNetwork {
		t.Errorf("Expected primary error passed through, got kind %q", provErr.Kind)
	}
}
