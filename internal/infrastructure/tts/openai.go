package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"DailyPodcast/internal/config"
	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

const openAIDefaultModel = "gpt-4o-mini-tts"

// OpenAISpeech synthesizes lines with the /audio/speech endpoint.
type OpenAISpeech struct {
	client       *openai.Client
	model        string
	instructions string
	voices       Voices
}

var _ ports.Synthesizer = (*OpenAISpeech)(nil)

func NewOpenAISpeech(cfg config.TTSConfig, opts ...option.RequestOption) *OpenAISpeech {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	reqOpts = append(reqOpts, opts...)
	client := openai.NewClient(reqOpts...)

	model := cfg.OpenAIModel
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAISpeech{
		client:       &client,
		model:        model,
		instructions: cfg.OpenAIInstructions,
		voices:       Voices{Man: cfg.ManVoiceID, Woman: cfg.WomanVoiceID}.withDefaults("onyx", "nova"),
	}
}

func (s *OpenAISpeech) Synthesize(ctx context.Context, text string, speaker domain.Speaker) ([]byte, error) {
	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voices.For(speaker)),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if s.instructions != "" {
		params.Instructions = openai.String(s.instructions)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai speech: %w", err)
	}
	return audio, nil
}
