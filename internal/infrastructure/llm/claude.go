package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"DailyPodcast/internal/config"
	"DailyPodcast/internal/ports"
)

const (
	claudeDefaultModel     = "claude-sonnet-4-5"
	claudeDefaultMaxTokens = 4096
)

// ClaudeClient implements ports.TextGenerator on the Anthropic Messages API.
// Structured output is requested through the system prompt.
type ClaudeClient struct {
	client           *anthropic.Client
	model            anthropic.Model
	defaultMaxTokens int
}

var _ ports.TextGenerator = (*ClaudeClient)(nil)

func NewClaudeClient(cfg config.LLMConfig, model string, opts ...option.RequestOption) *ClaudeClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.AnthropicAPIKey)}
	if cfg.AnthropicBaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.AnthropicBaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	client := anthropic.NewClient(reqOpts...)
	if model == "" {
		model = claudeDefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = claudeDefaultMaxTokens
	}
	return &ClaudeClient{
		client:           &client,
		model:            anthropic.Model(model),
		defaultMaxTokens: maxTokens,
	}
}

func (c *ClaudeClient) GenerateText(ctx context.Context, req ports.GenerationRequest) (ports.Generation, error) {
	return c.complete(ctx, req.System, req)
}

func (c *ClaudeClient) GenerateObject(ctx context.Context, req ports.GenerationRequest, schema ports.JSONSchema, out any) (ports.Generation, error) {
	encoded, err := json.Marshal(schema.Schema)
	if err != nil {
		return ports.Generation{}, fmt.Errorf("encode %s schema: %w", schema.Name, err)
	}
	system := strings.TrimSpace(req.System + "\n\nRespond with a single JSON object only, no other text, matching this JSON schema:\n" + string(encoded))

	gen, err := c.complete(ctx, system, req)
	if err != nil {
		return gen, err
	}
	if err := json.Unmarshal([]byte(cleanJSONResponse(gen.Text)), out); err != nil {
		return gen, fmt.Errorf("decode %s object: %w", schema.Name, err)
	}
	return gen, nil
}

func (c *ClaudeClient) complete(ctx context.Context, system string, req ports.GenerationRequest) (ports.Generation, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if strings.TrimSpace(system) != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return ports.Generation{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return ports.Generation{}, fmt.Errorf("no response from anthropic")
	}

	return ports.Generation{
		Text:         text.String(),
		FinishReason: string(resp.StopReason),
		Usage: ports.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
