package configstore

// Configuration keys the pipeline reads. Keys not listed here can still live
// in the table; they are simply ignored by the pipeline.
const (
	KeySerperAPIKey       = "SERPER_API_KEY"
	KeyLLMAPIKey          = "LLM_API_KEY"
	KeyLLMProvider        = "LLM_PROVIDER"
	KeyLLMModelName       = "LLM_MODEL_NAME"
	KeySystemPrompt       = "LLM_SYSTEM_PROMPT"
	KeyUserPromptTemplate = "LLM_USER_PROMPT_TEMPLATE"
	KeyToolDefinition     = "LLM_TOOL_DEFINITION"
)

const defaultSystemPrompt = `You are a world-class product analyst and market research expert. Your task is to analyze the given real-time web search results and surface the best recommendations for a specific product across the whole web.

Based on the search results below (page titles, snippets, and links), determine the Top 3 recommendations for the product the user is looking for.

Evaluation criteria:
1. Product quality and performance, based on professional reviews and user feedback
2. Value for money: the balance of price and features
3. Brand reputation and after-sales support
4. User ratings and satisfaction
5. Innovation and technical advantages

For each recommended product, provide:
- The full, accurate product name
- The reason for the recommendation, in detail
- Key strengths (3-4 advantages)
- Potential drawbacks or caveats (1-2)
- Who the product suits best
- An authoritative source link (professional review or major retailer)

Keep the recommendations objective and grounded in the actual search result data.`

const defaultUserPromptTemplate = `Based on the following search results, find the Top 3 recommendations for the product "[USER_KEYWORD]":

Search results:
[SEARCH_RESULTS]

Analyze as instructed and recommend the 3 best products, with full and objective reasoning for each.`

const defaultToolDefinition = `{
  "name": "report_top3_products",
  "description": "Analyze search results and report the top 3 product recommendations",
  "input_schema": {
    "type": "object",
    "properties": {
      "products": {
        "type": "array",
        "items": {
          "type": "object",
          "properties": {
            "rank": {"type": "integer", "minimum": 1, "maximum": 3},
            "product_name": {"type": "string"},
            "description": {"type": "string"},
            "source_link": {"type": "string"},
            "price": {"type": "string"},
            "rating": {"type": "number", "minimum": 0, "maximum": 5},
            "pros": {
              "type": "array",
              "items": {"type": "string"}
            },
            "cons": {
              "type": "array",
              "items": {"type": "string"}
            },
            "best_for": {"type": "string"}
          },
          "required": ["rank", "product_name", "description", "source_link"]
        },
        "minItems": 3,
        "maxItems": 3
      }
    },
    "required": ["products"]
  }
}`

// Placeholder values shipped with the seed data. A key still holding its
// placeholder counts as unconfigured.
var Placeholders = map[string]string{
	KeySerperAPIKey: "your-serper-api-key-here",
	KeyLLMAPIKey:    "your-claude-or-openai-api-key-here",
}

// DefaultConfigurations is the seed data inserted by `top3hunter seed` and by
// the admin seed endpoint. Seeding never overwrites existing rows.
var DefaultConfigurations = []Entry{
	// API group
	{Key: KeySerperAPIKey, Value: Placeholders[KeySerperAPIKey], Group: GroupAPI},
	{Key: KeyLLMAPIKey, Value: Placeholders[KeyLLMAPIKey], Group: GroupAPI},
	{Key: KeyLLMProvider, Value: "anthropic", Group: GroupAPI},
	{Key: KeyLLMModelName, Value: "claude-3-haiku-20240307", Group: GroupAPI},
	{Key: "SEARCH_TIMEOUT", Value: "30", Group: GroupAPI},
	{Key: "LLM_TIMEOUT", Value: "60", Group: GroupAPI},
	{Key: "MAX_RETRIES", Value: "3", Group: GroupAPI},
	{Key: "MAX_SEARCH_RESULTS", Value: "10", Group: GroupAPI},
	{Key: "TOP_PRODUCTS_COUNT", Value: "3", Group: GroupAPI},

	// Prompt group
	{Key: KeySystemPrompt, Value: defaultSystemPrompt, Group: GroupPrompt},
	{Key: KeyUserPromptTemplate, Value: defaultUserPromptTemplate, Group: GroupPrompt},
	{Key: KeyToolDefinition, Value: defaultToolDefinition, Group: GroupPrompt},

	// UI group
	{Key: "SITE_TITLE", Value: "Top3 Hunter - product recommendation engine", Group: GroupUI},
	{Key: "SITE_DESCRIPTION", Value: "Product recommendations from real-time web search and AI analysis", Group: GroupUI},
	{Key: "CONTACT_EMAIL", Value: "support@top3hunter.com", Group: GroupUI},
	{Key: "ENABLE_RATINGS", Value: "true", Group: GroupUI},
	{Key: "ENABLE_PRICES", Value: "true", Group: GroupUI},
	{Key: "THEME_COLOR", Value: "#3b82f6", Group: GroupUI},

	// Cache group
	{Key: "CACHE_TTL_QUERY", Value: "21600", Group: GroupCache},
	{Key: "CACHE_TTL_CONFIG", Value: "60", Group: GroupCache},
	{Key: "CACHE_PREFIX", Value: "top3_hunter", Group: GroupCache},
	{Key: "ENABLE_CACHE", Value: "true", Group: GroupCache},
	{Key: "RATE_LIMIT_PER_MINUTE", Value: "30", Group: GroupCache},
}

// DefaultValue returns the seeded default for a key, used as built-in fallback
// when prompt material is missing from the table.
func DefaultValue(key string) (string, bool) {
	for _, e := range DefaultConfigurations {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}
