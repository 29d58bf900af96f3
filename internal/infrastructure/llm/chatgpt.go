package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"DailyPodcast/internal/config"
	"DailyPodcast/internal/ports"
)

// ChatGPTClient implements ports.TextGenerator backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	client           *openai.Client
	model            string
	defaultMaxTokens int
}

var _ ports.TextGenerator = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client for one model; base URL and key come from config.
func NewChatGPTClient(cfg config.LLMConfig, model string, opts ...option.RequestOption) *ChatGPTClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	client := openai.NewClient(reqOpts...)
	if model == "" {
		model = cfg.Model
	}
	return &ChatGPTClient{
		client:           &client,
		model:            model,
		defaultMaxTokens: cfg.MaxTokens,
	}
}

// GenerateText issues one chat completion.
func (c *ChatGPTClient) GenerateText(ctx context.Context, req ports.GenerationRequest) (ports.Generation, error) {
	return c.complete(ctx, c.params(req))
}

// GenerateObject constrains the completion to schema and decodes it into out.
func (c *ChatGPTClient) GenerateObject(ctx context.Context, req ports.GenerationRequest, schema ports.JSONSchema, out any) (ports.Generation, error) {
	params := c.params(req)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   schema.Name,
				Schema: schema.Schema,
			},
		},
	}

	gen, err := c.complete(ctx, params)
	if err != nil {
		return gen, err
	}
	if err := json.Unmarshal([]byte(cleanJSONResponse(gen.Text)), out); err != nil {
		return gen, fmt.Errorf("decode %s object: %w", schema.Name, err)
	}
	return gen, nil
}

func (c *ChatGPTClient) params(req ports.GenerationRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	return params
}

func (c *ChatGPTClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (ports.Generation, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ports.Generation{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ports.Generation{}, fmt.Errorf("no response from openai")
	}

	choice := resp.Choices[0]
	return ports.Generation{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: ports.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
