package core

import (
	"encoding/json"
	"fmt"
)

// MaxRecommendations is the hard cap on products returned by a single search.
const MaxRecommendations = 3

// ProductRecommendation represents one ranked product produced by the analysis
// backend. Rank values are unique within a response and lie in [1,3].
type ProductRecommendation struct {
	Rank        int      `json:"rank"`
	ProductName string   `json:"product_name"`
	Description string   `json:"description"`
	SourceLink  string   `json:"source_link"`
	Price       string   `json:"price,omitempty"`
	Rating      float64  `json:"rating"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
	BestFor     string   `json:"best_for,omitempty"`
}

// SearchResponse is the full payload returned for a keyword search. The whole
// response is cached, so a replayed answer is byte-identical apart from Cached.
type SearchResponse struct {
	Products     []ProductRecommendation `json:"products"`
	TotalResults int                     `json:"total_results"`
	SearchTime   float64                 `json:"search_time"`
	Cached       bool                    `json:"cached"`
}

// ToolDefinition describes the structured output the analysis backend must
// produce. It is stored as JSON in the configuration table and translated into
// each backend's native function-calling shape without losing name,
// description, or schema.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ParseToolDefinition decodes a tool definition from its configuration-store
// JSON form. A malformed definition is a system misconfiguration, not a retry
// condition.
func ParseToolDefinition(raw string) (ToolDefinition, error) {
	var def ToolDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return ToolDefinition{}, fmt.Errorf("invalid tool definition JSON: %w", err)
	}
	if def.Name == "" {
		return ToolDefinition{}, fmt.Errorf("tool definition is missing a name")
	}
	if def.InputSchema == nil {
		return ToolDefinition{}, fmt.Errorf("tool definition %q is missing an input schema", def.Name)
	}
	return def, nil
}

// CapRecommendations enforces the response cap: more than three products are
// truncated to the first three in the order the backend returned them, fewer
// are accepted as-is.
func CapRecommendations(products []ProductRecommendation) []ProductRecommendation {
	if len(products) > MaxRecommendations {
		return products[:MaxRecommendations]
	}
	return products
}
