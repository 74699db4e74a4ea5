package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"top3hunter/internal/core"
	"top3hunter/internal/logger"
)

const (
	anthropicDefaultURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
	anthropicService    = "Claude API"
)

// AnthropicBackend talks to the Anthropic messages API using forced tool use.
type AnthropicBackend struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewAnthropicBackend creates the Claude analysis backend.
func NewAnthropicBackend(apiKey, model string, timeout time.Duration) *AnthropicBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicBackend{
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		baseURL: anthropicDefaultURL,
	}
}

// Name returns the service tag used in error messages.
func (b *AnthropicBackend) Name() string {
	return anthropicService
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicTool matches the shared tool definition one-to-one; Anthropic's
// native shape is the storage shape.
type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicRequest struct {
	Model      string              `json:"model"`
	MaxTokens  int                 `json:"max_tokens"`
	System     string              `json:"system"`
	Messages   []anthropicMessage  `json:"messages"`
	Tools      []anthropicTool     `json:"tools"`
	ToolChoice anthropicToolChoice `json:"tool_choice"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Name  string          `json:"name,omitempty"`
		Text  string          `json:"text,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
}

// Analyze sends one messages request asking Claude to invoke the reporting
// tool exclusively, then parses the tool invocation out of the response.
func (b *AnthropicBackend) Analyze(ctx context.Context, req AnalyzeRequest) ([]core.ProductRecommendation, error) {
	payload := anthropicRequest{
		Model:     b.model,
		MaxTokens: 4000,
		System:    req.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: renderUserPrompt(req.UserPromptTemplate, req.Keyword, req.SearchResults)},
		},
		Tools: []anthropicTool{{
			Name:        req.Tool.Name,
			Description: req.Tool.Description,
			InputSchema: req.Tool.InputSchema,
		}},
		ToolChoice: anthropicToolChoice{Type: "tool", Name: req.Tool.Name},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Service: anthropicService, Kind: KindUnexpected, Message: "failed to encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Service: anthropicService, Kind: KindUnexpected, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(anthropicService, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Error("anthropic API returned non-OK status", nil, "status", resp.StatusCode, "body", string(respBody))
		return nil, classifyStatus(anthropicService, resp.StatusCode)
	}

	var data anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Service: anthropicService, Kind: KindUnexpected, Message: "failed to parse response", Err: err}
	}

	return b.parseToolInvocation(data, req.Tool.Name)
}

func (b *AnthropicBackend) parseToolInvocation(data anthropicResponse, toolName string) ([]core.ProductRecommendation, error) {
	for _, item := range data.Content {
		if item.Type != "tool_use" || item.Name != toolName {
			continue
		}
		var payload productsPayload
		if err := json.Unmarshal(item.Input, &payload); err != nil {
			return nil, &ProviderError{Service: anthropicService, Kind: KindUnexpected, Message: "failed to parse tool invocation", Err: err}
		}
		return payload.Products, nil
	}

	// The model answered in free text despite the forced tool choice. An
	// empty list lets the manager decide.
	logger.Warn("anthropic response contained no tool invocation", "tool", toolName)
	return nil, nil
}
