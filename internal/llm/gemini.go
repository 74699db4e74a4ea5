package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"top3hunter/internal/core"
	"top3hunter/internal/logger"
)

const geminiService = "Gemini API"

// GeminiBackend talks to the Gemini API through the official SDK, forcing a
// function call via the tool config. The SDK client is created per call so
// construction stays free of I/O.
type GeminiBackend struct {
	apiKey  string
	model   string
	timeout time.Duration
}

// NewGeminiBackend creates the Gemini analysis backend.
func NewGeminiBackend(apiKey, model string, timeout time.Duration) *GeminiBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiBackend{apiKey: apiKey, model: model, timeout: timeout}
}

// Name returns the service tag used in error messages.
func (b *GeminiBackend) Name() string {
	return geminiService
}

// Analyze issues one generate-content call with the reporting function as the
// only allowed tool and parses the function call out of the first candidate.
func (b *GeminiBackend) Analyze(ctx context.Context, req AnalyzeRequest) ([]core.ProductRecommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(b.apiKey))
	if err != nil {
		return nil, &ProviderError{Service: geminiService, Kind: KindUnexpected, Message: "failed to create client", Err: err}
	}
	defer func() { _ = client.Close() }()

	model := client.GenerativeModel(b.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.SystemPrompt)},
	}
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        req.Tool.Name,
			Description: req.Tool.Description,
			Parameters:  translateSchema(req.Tool.InputSchema),
		}},
	}}
	model.ToolConfig = &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingAny,
			AllowedFunctionNames: []string{req.Tool.Name},
		},
	}

	prompt := renderUserPrompt(req.UserPromptTemplate, req.Keyword, req.SearchResults)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	return b.parseFunctionCall(resp, req.Tool.Name)
}

func (b *GeminiBackend) parseFunctionCall(resp *genai.GenerateContentResponse, toolName string) ([]core.ProductRecommendation, error) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			call, ok := part.(genai.FunctionCall)
			if !ok || call.Name != toolName {
				continue
			}

			// Args arrives as a decoded map; round-trip through JSON to
			// reuse the shared payload shape.
			raw, err := json.Marshal(call.Args)
			if err != nil {
				return nil, &ProviderError{Service: geminiService, Kind: KindUnexpected, Message: "failed to re-encode function call args", Err: err}
			}
			var payload productsPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, &ProviderError{Service: geminiService, Kind: KindUnexpected, Message: "failed to parse function call args", Err: err}
			}
			return payload.Products, nil
		}
	}

	logger.Warn("gemini response contained no function call", "tool", toolName)
	return nil, nil
}

func classifyGeminiError(err error) *ProviderError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ProviderError{Service: geminiService, Kind: KindBadCredentials, Message: "API key is invalid", Err: err}
		case http.StatusTooManyRequests:
			return &ProviderError{Service: geminiService, Kind: KindRateLimited, Message: "API rate limit exceeded", Err: err}
		default:
			return classifyStatus(geminiService, apiErr.Code)
		}
	}
	return classifyTransport(geminiService, err)
}

// translateSchema converts the shared JSON-Schema style tool parameters into
// the SDK's schema type. Only the constructs the tool definitions use are
// mapped: object/array nesting, primitive types, descriptions, enums, and
// required fields.
func translateSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{Type: translateSchemaType(schema["type"])}

	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, sub := range props {
			if subSchema, ok := sub.(map[string]any); ok {
				out.Properties[name] = translateSchema(subSchema)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = translateSchema(items)
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				out.Required = append(out.Required, name)
			}
		}
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if v, ok := e.(string); ok {
				out.Enum = append(out.Enum, v)
			}
		}
	}

	return out
}

func translateSchemaType(t any) genai.Type {
	name, _ := t.(string)
	switch name {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}
