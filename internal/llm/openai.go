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
	openAIDefaultURL = "https://api.openai.com/v1/chat/completions"
	openAIService    = "OpenAI API"
)

// OpenAIBackend talks to the chat completions API using a forced function
// tool call.
type OpenAIBackend struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewOpenAIBackend creates the OpenAI analysis backend.
func NewOpenAIBackend(apiKey, model string, timeout time.Duration) *OpenAIBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIBackend{
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		baseURL: openAIDefaultURL,
	}
}

// Name returns the service tag used in error messages.
func (b *OpenAIBackend) Name() string {
	return openAIService
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIToolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type openAIRequest struct {
	Model       string           `json:"model"`
	Messages    []openAIMessage  `json:"messages"`
	Tools       []openAITool     `json:"tools"`
	ToolChoice  openAIToolChoice `json:"tool_choice"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// translateTool renames and nests the shared tool definition into OpenAI's
// function shape. Name, description, and parameter schema carry over intact.
func translateTool(def core.ToolDefinition) openAITool {
	return openAITool{
		Type: "function",
		Function: openAIFunction{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.InputSchema,
		},
	}
}

// Analyze sends one chat completion request with the reporting function as the
// forced tool choice and parses the resulting call arguments.
func (b *OpenAIBackend) Analyze(ctx context.Context, req AnalyzeRequest) ([]core.ProductRecommendation, error) {
	choice := openAIToolChoice{Type: "function"}
	choice.Function.Name = req.Tool.Name

	payload := openAIRequest{
		Model: b.model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: renderUserPrompt(req.UserPromptTemplate, req.Keyword, req.SearchResults)},
		},
		Tools:       []openAITool{translateTool(req.Tool)},
		ToolChoice:  choice,
		Temperature: 0.3,
		MaxTokens:   4000,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Service: openAIService, Kind: KindUnexpected, Message: "failed to encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Service: openAIService, Kind: KindUnexpected, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(openAIService, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Error("openai API returned non-OK status", nil, "status", resp.StatusCode, "body", string(respBody))
		return nil, classifyStatus(openAIService, resp.StatusCode)
	}

	var data openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Service: openAIService, Kind: KindUnexpected, Message: "failed to parse response", Err: err}
	}

	return b.parseToolCalls(data, req.Tool.Name)
}

func (b *OpenAIBackend) parseToolCalls(data openAIResponse, toolName string) ([]core.ProductRecommendation, error) {
	if len(data.Choices) == 0 {
		return nil, nil
	}

	for _, call := range data.Choices[0].Message.ToolCalls {
		if call.Function.Name != toolName {
			continue
		}
		var payload productsPayload
		if err := json.Unmarshal([]byte(call.Function.Arguments), &payload); err != nil {
			return nil, &ProviderError{Service: openAIService, Kind: KindUnexpected, Message: "failed to parse tool call arguments", Err: err}
		}
		return payload.Products, nil
	}

	logger.Warn("openai response contained no tool call", "tool", toolName)
	return nil, nil
}
