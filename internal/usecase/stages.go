package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
	"DailyPodcast/internal/script"
	"DailyPodcast/internal/summary"
)

const (
	defaultMaxTokens       = 4096
	defaultCompletionLimit = 16384
	scriptTokenCeiling     = 8000
)

// TextStages runs the generation calls of a run.
type TextStages struct {
	generator ports.TextGenerator
	// thinking serves the script and blog stages; it falls back to generator.
	thinking  ports.TextGenerator
	parser    *summary.Parser
	maxTokens int
	limit     int
	logger    *slog.Logger
}

// NewTextStages binds generators to the token budgets of the run.
func NewTextStages(generator, thinking ports.TextGenerator, maxTokens, completionLimit int, logger *slog.Logger) *TextStages {
	if thinking == nil {
		thinking = generator
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if completionLimit <= 0 {
		completionLimit = defaultCompletionLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextStages{
		generator: generator,
		thinking:  thinking,
		parser:    summary.DefaultParser(),
		maxTokens: maxTokens,
		limit:     completionLimit,
		logger:    logger,
	}
}

// Summarize produces one wrapped summary per story in a single call. The
// response format never fails the stage; only the call itself can.
func (t *TextStages) Summarize(ctx context.Context, contents []domain.StoryContent) ([]string, error) {
	blocks := make([]string, 0, len(contents))
	for _, c := range contents {
		blocks = append(blocks, fmt.Sprintf("<story id=%q title=%q>\n%s\n</story>", c.ID, c.Title, c.Content))
	}

	gen, err := t.generator.GenerateText(ctx, ports.GenerationRequest{
		System:    summarizeStoryPrompt + "\n\n" + summarizeTagInstruction,
		Prompt:    strings.Join(blocks, sectionSeparator),
		MaxTokens: min(2*t.maxTokens, t.limit),
	})
	if err != nil {
		return nil, fmt.Errorf("summarize stories: %w", err)
	}

	summaries, strategy := t.parser.Parse(gen.Text)
	t.logger.Info("batch summarize all stories success",
		"summaries", len(summaries),
		"strategy", strategy,
		"prompt_tokens", gen.Usage.PromptTokens,
		"completion_tokens", gen.Usage.CompletionTokens,
		"finish_reason", gen.FinishReason,
	)
	return summary.Wrap(summaries), nil
}

// GenerateScript asks for a structured dialogue and validates every line.
func (t *TextStages) GenerateScript(ctx context.Context, date string, stories []domain.Story, summaries []string) (domain.PodcastScript, error) {
	metadata, err := json.Marshal(stories)
	if err != nil {
		return domain.PodcastScript{}, fmt.Errorf("encode story metadata: %w", err)
	}

	prompt := fmt.Sprintf("Date: %s\n\n<story-metadata>%s</story-metadata>\n\n<story-summaries>\n%s\n</story-summaries>",
		date, metadata, strings.Join(summaries, sectionSeparator))

	var raw domain.PodcastScript
	gen, err := t.thinking.GenerateObject(ctx, ports.GenerationRequest{
		System:    podcastScriptPrompt,
		Prompt:    prompt,
		MaxTokens: min(2*t.maxTokens, scriptTokenCeiling, t.limit),
	}, script.Schema(), &raw)
	if err != nil {
		return domain.PodcastScript{}, fmt.Errorf("generate podcast script: %w", err)
	}
	t.logger.Info("generate podcast script success",
		"prompt_tokens", gen.Usage.PromptTokens,
		"completion_tokens", gen.Usage.CompletionTokens,
		"finish_reason", gen.FinishReason,
	)

	valid, state, err := script.Validate(raw)
	if err != nil {
		t.logger.Error("podcast script rejected", "state", state, "lines", len(raw.Dialogue), "error", err)
		return domain.PodcastScript{}, err
	}
	t.logger.Info("podcast script line count", "lines", len(valid.Dialogue), "state", state)
	return valid, nil
}

// CreateBlog writes the daily blog post.
func (t *TextStages) CreateBlog(ctx context.Context, stories []domain.Story, summaries []string) (string, error) {
	metadata, err := json.Marshal(stories)
	if err != nil {
		return "", fmt.Errorf("encode story metadata: %w", err)
	}

	gen, err := t.thinking.GenerateText(ctx, ports.GenerationRequest{
		System:    summarizeBlogPrompt,
		Prompt:    fmt.Sprintf("<stories>%s</stories>%s%s", metadata, sectionSeparator, strings.Join(summaries, sectionSeparator)),
		MaxTokens: min(t.maxTokens, t.limit),
	})
	if err != nil {
		return "", fmt.Errorf("create blog content: %w", err)
	}
	t.logger.Info("create blog content success", "chars", len(gen.Text), "finish_reason", gen.FinishReason)
	return gen.Text, nil
}

// CreateIntro writes the episode intro from the flattened dialogue. The
// provider's default token budget applies.
func (t *TextStages) CreateIntro(ctx context.Context, podcastContent string) (string, error) {
	gen, err := t.generator.GenerateText(ctx, ports.GenerationRequest{
		System: introPrompt,
		Prompt: podcastContent,
	})
	if err != nil {
		return "", fmt.Errorf("create intro content: %w", err)
	}
	t.logger.Info("create intro content success", "chars", len(gen.Text), "finish_reason", gen.FinishReason)
	return gen.Text, nil
}
