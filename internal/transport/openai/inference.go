package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lattice-vc/scout/internal/domain"
	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/metrics"
)

// Inference calls the language model for attribute extraction, query
// rewriting and result explanations.
type Inference struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// InferenceConfig holds the inference provider settings.
type InferenceConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewInference creates an OpenAI-compatible inference client.
func NewInference(cfg *InferenceConfig) *Inference {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Inference{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

const extractSystemPrompt = `You extract structured company filters from a venture-scout search query.
Known segments and kinds:
%s
Respond with JSON only: {"filters":[{"segment":"...","logic":"AND|OR","rules":[{"op":"EQ|NEQ|GT|GTE|LT|LTE","value":"..."}]}]}.
Text segments allow EQ/NEQ only. Numeric segments take plain numbers as values
(funding amounts in US dollars). Use OR for alternatives within a segment.
Only include segments the query clearly constrains. Keep extracted text values
as the user phrased them.`

// ExtractAttributes parses the query into raw segment constraints.
// Errors wrap domain.ErrInferenceUnavailable so the pipeline can degrade to
// a filters-only search.
func (i *Inference) ExtractAttributes(ctx context.Context, query string) ([]domain.RawFilter, error) {
	system := fmt.Sprintf(extractSystemPrompt, segmentCatalog())

	content, err := i.chatJSON(ctx, "extract", system, query)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Filters []domain.RawFilter `json:"filters"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues("extract", "error").Inc()
		return nil, fmt.Errorf("malformed extraction response: %v: %w", err, domain.ErrInferenceUnavailable)
	}
	return parsed.Filters, nil
}

const rewriteSystemPrompt = `You rewrite a company search query for semantic retrieval.
Strip out constraints that are already captured as structured filters (listed
by the user message) and expand the remaining intent into a short descriptive
sentence about the kind of company sought. Respond with the rewritten query
text only, no quotes.`

// RewriteQuery produces the retrieval text: the query minus what filters
// already capture. Returns the original query on any provider failure, the
// rewrite is an enhancement, not a dependency.
func (i *Inference) RewriteQuery(ctx context.Context, query string, appliedFilters string) string {
	user := fmt.Sprintf("Query: %s\nStructured filters already applied: %s", query, appliedFilters)

	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: i.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rewriteSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		metrics.InferenceRequestsTotal.WithLabelValues("rewrite", "error").Inc()
		i.logger.Warn("query rewrite failed, using original query", zap.Error(err))
		return query
	}
	metrics.InferenceRequestsTotal.WithLabelValues("rewrite", "success").Inc()

	rewritten := strings.TrimSpace(resp.Choices[0].Message.Content)
	if rewritten == "" {
		return query
	}
	return rewritten
}

const explainSystemPrompt = `You explain, in one sentence each, why companies match a search query.
The user message holds the query, the active filters that shaped the result
set, and a numbered company list. Reference the filters where they are the
reason a company matches. Respond with JSON only:
{"explanations":["...", ...]} with exactly one string per company, in the
same order.`

// ExplainBatch generates one explanation per result in a single call.
// The returned slice is position-aligned with results.
func (i *Inference) ExplainBatch(ctx context.Context, query, appliedFilters string, results []domain.ResultSummary) ([]string, error) {
	if len(results) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\nActive filters: %s\nCompanies:\n", query, appliedFilters)
	for idx, r := range results {
		fmt.Fprintf(&b, "%d. %s: %s\n", idx+1, r.Name, r.Description)
	}

	content, err := i.chatJSON(ctx, "explain", explainSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Explanations []string `json:"explanations"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues("explain", "error").Inc()
		return nil, fmt.Errorf("malformed explanation response: %v: %w", err, domain.ErrInferenceUnavailable)
	}
	if len(parsed.Explanations) != len(results) {
		metrics.InferenceRequestsTotal.WithLabelValues("explain", "error").Inc()
		return nil, fmt.Errorf("expected %d explanations, got %d: %w",
			len(results), len(parsed.Explanations), domain.ErrInferenceUnavailable)
	}
	return parsed.Explanations, nil
}

// chatJSON runs a JSON-mode chat completion and returns the raw content.
func (i *Inference) chatJSON(ctx context.Context, operation, system, user string) (string, error) {
	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: i.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(operation, "error").Inc()
		return "", fmt.Errorf("inference %s failed: %v: %w", operation, err, domain.ErrInferenceUnavailable)
	}
	if len(resp.Choices) == 0 {
		metrics.InferenceRequestsTotal.WithLabelValues(operation, "error").Inc()
		return "", fmt.Errorf("empty %s response: %w", operation, domain.ErrInferenceUnavailable)
	}
	metrics.InferenceRequestsTotal.WithLabelValues(operation, "success").Inc()
	return resp.Choices[0].Message.Content, nil
}

func segmentCatalog() string {
	var b strings.Builder
	for _, seg := range segment.All() {
		kind, _ := segment.KindOf(seg)
		fmt.Fprintf(&b, "- %s (%s)\n", seg, kind)
	}
	return b.String()
}
