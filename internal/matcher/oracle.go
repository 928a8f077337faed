package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"retrievr/monitor-service/internal/model"
)

// AnalysisVersion is stamped on every stored result so scores produced by
// an older prompt can be told apart from current ones.
const AnalysisVersion = "1.0"

// Oracle scores one listing against one search profile on a 0-10 scale.
type Oracle interface {
	Score(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error)
}

// InvalidResponseError reports a reply from the model that could not be
// used: unparseable JSON, a score outside 0-10, or an unknown enum value.
// The affected pair is skipped and the listing stays eligible for
// re-analysis on a later cycle.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "invalid model response: " + e.Reason
}

const matcherSystemPrompt = `You are an expert assistant specialized in identifying stolen items on marketplaces.

Your task is to analyze marketplace listings and determine if they match descriptions of stolen items. You must be thorough but avoid false positives that could waste someone's time.

Key analysis factors:
1. **Make and Model**: Exact or close matches are strong indicators
2. **Physical Characteristics**: Color, size, condition details
3. **Unique Features**: Scratches, modifications, distinctive markings
4. **Location**: Geographic proximity to where item was stolen
5. **Price**: Unusually low prices might indicate stolen goods
6. **Seller Behavior**: Vague descriptions, poor photos, urgency to sell
7. **Timeline**: Recently listed items after theft date

Scoring Guidelines:
- 9-10: Very high confidence match (multiple strong indicators)
- 7-8: High confidence (several good indicators)
- 5-6: Moderate confidence (some indicators but missing key details)
- 3-4: Low confidence (few weak indicators)
- 1-2: Very low confidence (minimal similarity)
- 0: No match

Always provide your response in this exact JSON format:
{
    "match_score": <float between 0-10>,
    "confidence_level": "<low|medium|high>",
    "reasoning": "<detailed explanation of your analysis>",
    "key_indicators": ["<list of specific matching factors>"],
    "concerns": ["<list of potential issues or missing information>"],
    "recommendation": "<investigate|ignore|high_priority>"
}`

// matchResponse mirrors the JSON contract in the system prompt.
type matchResponse struct {
	MatchScore      float64  `json:"match_score"`
	ConfidenceLevel string   `json:"confidence_level"`
	Reasoning       string   `json:"reasoning"`
	KeyIndicators   []string `json:"key_indicators"`
	Concerns        []string `json:"concerns"`
	Recommendation  string   `json:"recommendation"`
}

// OpenAIOracle scores listings with an OpenAI chat model.
type OpenAIOracle struct {
	client openai.Client
	model  string
}

func NewOpenAIOracle(apiKey, modelName string) *OpenAIOracle {
	return &OpenAIOracle{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  modelName,
	}
}

func (o *OpenAIOracle) Score(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
	response, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(matcherSystemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(buildAnalysisPrompt(l, p)),
					},
				},
			},
		},
		Temperature: openai.Float64(0.1),
		MaxTokens:   openai.Int(1000),
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, &InvalidResponseError{Reason: "no choices returned"}
	}

	content := response.Choices[0].Message.Content
	var parsed matchResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, &InvalidResponseError{Reason: "unparseable JSON: " + err.Error()}
	}

	if err := validateResponse(parsed); err != nil {
		return nil, err
	}

	return &model.MatchReport{
		Score:          parsed.MatchScore,
		Reasoning:      parsed.Reasoning,
		Confidence:     parsed.ConfidenceLevel,
		KeyIndicators:  parsed.KeyIndicators,
		Concerns:       parsed.Concerns,
		Recommendation: parsed.Recommendation,
		ModelUsed:      o.model,
	}, nil
}

func validateResponse(r matchResponse) error {
	if r.MatchScore < 0 || r.MatchScore > 10 {
		return &InvalidResponseError{Reason: fmt.Sprintf("match_score %.2f outside 0-10", r.MatchScore)}
	}
	switch r.ConfidenceLevel {
	case "low", "medium", "high":
	default:
		return &InvalidResponseError{Reason: fmt.Sprintf("unknown confidence_level %q", r.ConfidenceLevel)}
	}
	switch r.Recommendation {
	case model.RecommendationInvestigate, model.RecommendationIgnore, model.RecommendationHighPriority:
	default:
		return &InvalidResponseError{Reason: fmt.Sprintf("unknown recommendation %q", r.Recommendation)}
	}
	if strings.TrimSpace(r.Reasoning) == "" {
		return &InvalidResponseError{Reason: "empty reasoning"}
	}
	return nil
}

func buildAnalysisPrompt(l model.Listing, p model.SearchProfile) string {
	var b strings.Builder

	b.WriteString("--- STOLEN ITEM DETAILS ---\n")
	fmt.Fprintf(&b, "Make: %s\n", orUnknown(p.ItemMake))
	fmt.Fprintf(&b, "Model: %s\n", orUnknown(p.ItemModel))
	fmt.Fprintf(&b, "Color: %s\n", orUnknown(p.Color))
	fmt.Fprintf(&b, "Size: %s\n", orUnknown(p.Size))
	fmt.Fprintf(&b, "Description: %s\n", fallback(p.Description, "No description provided"))
	fmt.Fprintf(&b, "Unique Features: %s\n", fallback(p.UniqueFeatures, "None specified"))
	fmt.Fprintf(&b, "Stolen Location: %s\n", orUnknown(p.Location))
	fmt.Fprintf(&b, "Additional Search Terms: %s\n", strings.Join(p.SearchTerms, ", "))

	b.WriteString("\n--- MARKETPLACE LISTING ---\n")
	fmt.Fprintf(&b, "Title: %s\n", fallback(l.Title, "No title"))
	fmt.Fprintf(&b, "Description: %s\n", fallback(l.Description, "No description"))
	if l.Price != nil {
		fmt.Fprintf(&b, "Price: $%.2f\n", *l.Price)
	} else {
		b.WriteString("Price: Unknown\n")
	}
	fmt.Fprintf(&b, "Location: %s\n", orUnknown(l.Location))
	fmt.Fprintf(&b, "Marketplace: %s\n", orUnknown(l.Marketplace))
	fmt.Fprintf(&b, "URL: %s\n", fallback(l.URL, "No URL"))
	fmt.Fprintf(&b, "Images Available: %d images\n", len(l.ImageURLs))

	b.WriteString("\n--- ANALYSIS TASK ---\n")
	b.WriteString("Based on the provided details, analyze the likelihood that this marketplace listing is the stolen item.\n")
	b.WriteString("Pay special attention to make, model, color, size, location proximity, and any unique features mentioned.\n")
	b.WriteString("Consider the price point and seller behavior if relevant.\n\n")
	b.WriteString("Provide your analysis in the required JSON format.\n")

	return b.String()
}

func orUnknown(s string) string {
	return fallback(s, "Unknown")
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
