package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region config

// OpenAIEvaluatorConfig holds model selection and per-token prices used to
// meter cost. Prices are per 1K tokens in the run's currency units.
type OpenAIEvaluatorConfig struct {
	Model                string  `yaml:"model"`
	PromptPricePer1K     float64 `yaml:"prompt_price_per_1k"`
	CompletionPricePer1K float64 `yaml:"completion_price_per_1k"`
	MaxPriorContext      int     `yaml:"max_prior_context"`
}

// DefaultOpenAIEvaluatorConfig returns the standard evaluator settings.
func DefaultOpenAIEvaluatorConfig() OpenAIEvaluatorConfig {
	return OpenAIEvaluatorConfig{
		Model:                openai.GPT4oMini,
		PromptPricePer1K:     0.00015,
		CompletionPricePer1K: 0.0006,
		MaxPriorContext:      5,
	}
}

// #endregion config

// #region evaluator

// chatClient is the slice of the OpenAI client the evaluator uses.
// Tests inject a scripted implementation.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIEvaluator classifies evidence with a chat model. The completion must
// follow the DECISION/RATIONALE line protocol; anything else is an error and
// the governor treats the iteration as a failure.
type OpenAIEvaluator struct {
	client chatClient
	config OpenAIEvaluatorConfig
}

// NewOpenAIEvaluator creates an evaluator against the real OpenAI API.
func NewOpenAIEvaluator(apiKey string, config OpenAIEvaluatorConfig) *OpenAIEvaluator {
	return &OpenAIEvaluator{client: openai.NewClient(apiKey), config: config}
}

// NewOpenAIEvaluatorWithClient creates an evaluator with an injected client.
// Used for testing without network access.
func NewOpenAIEvaluatorWithClient(client chatClient, config OpenAIEvaluatorConfig) *OpenAIEvaluator {
	return &OpenAIEvaluator{client: client, config: config}
}

// #endregion evaluator

// #region evaluate

const systemPrompt = `You assess whether a piece of evidence supports a research hypothesis about an organisation.
Reply with exactly two lines:
DECISION: one of ACCEPT, WEAK_ACCEPT, REJECT, NO_PROGRESS
RATIONALE: one sentence explaining the decision`

// Evaluate asks the model for a decision label on the evidence.
func (e *OpenAIEvaluator) Evaluate(ctx context.Context, entityName string, category ledger.Category, ev RawEvidence, prior []ledger.IterationRecord) (Evaluation, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: e.userPrompt(entityName, category, ev, prior)},
		},
		Temperature: 0,
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate %s/%s: %w", entityName, category, err)
	}
	if len(resp.Choices) == 0 {
		return Evaluation{}, fmt.Errorf("evaluate %s/%s: empty response", entityName, category)
	}

	decision, rationale, err := ParseDecision(resp.Choices[0].Message.Content)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate %s/%s: %w", entityName, category, err)
	}

	cost := float64(resp.Usage.PromptTokens)/1000*e.config.PromptPricePer1K +
		float64(resp.Usage.CompletionTokens)/1000*e.config.CompletionPricePer1K

	return Evaluation{Decision: decision, Rationale: rationale, Cost: cost}, nil
}

// userPrompt renders the evidence plus a bounded slice of prior context.
func (e *OpenAIEvaluator) userPrompt(entityName string, category ledger.Category, ev RawEvidence, prior []ledger.IterationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity: %s\nCategory: %s\n\nEvidence:\n%s\n%s\n", entityName, category, ev.Title, ev.Snippet)
	if ev.URL != "" {
		fmt.Fprintf(&b, "Source: %s\n", ev.URL)
	}

	n := len(prior)
	if n > e.config.MaxPriorContext {
		prior = prior[n-e.config.MaxPriorContext:]
	}
	if len(prior) > 0 {
		b.WriteString("\nPrior decisions in this category:\n")
		for _, rec := range prior {
			fmt.Fprintf(&b, "- iteration %d: %s (confidence %.2f)\n", rec.Iteration, rec.Decision, rec.Confidence)
		}
	}
	return b.String()
}

// #endregion evaluate

// #region parse

// ParseDecision extracts the decision label and rationale from a completion
// following the two-line protocol. Unknown labels are an error, never mapped
// to a default.
func ParseDecision(completion string) (ledger.Decision, string, error) {
	var decision ledger.Decision
	var rationale string

	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "DECISION:"):
			label := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "DECISION:")))
			decision = ledger.Decision(label)
		case strings.HasPrefix(line, "RATIONALE:"):
			rationale = strings.TrimSpace(strings.TrimPrefix(line, "RATIONALE:"))
		}
	}

	if decision == "" {
		return "", "", fmt.Errorf("no DECISION line in completion %q", truncate(completion, 80))
	}
	if !decision.Valid() {
		return "", "", fmt.Errorf("unknown decision label %q", decision)
	}
	return decision, rationale, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// #endregion parse
