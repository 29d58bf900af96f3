package tts

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"DailyPodcast/internal/config"
	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

const (
	minimaxDefaultURL   = "https://api.minimax.chat/v1/t2a_v2"
	minimaxDefaultModel = "speech-2.5-turbo-preview"
)

// MiniMax synthesizes lines with the t2a_v2 API, which returns hex-encoded audio.
type MiniMax struct {
	client   *http.Client
	endpoint string
	groupID  string
	apiKey   string
	model    string
	speed    float64
	voices   Voices
}

var _ ports.Synthesizer = (*MiniMax)(nil)

func NewMiniMax(client *http.Client, cfg config.TTSConfig) *MiniMax {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	endpoint := cfg.APIURL
	if endpoint == "" {
		endpoint = minimaxDefaultURL
	}
	model := cfg.Model
	if model == "" {
		model = minimaxDefaultModel
	}
	speed := 1.1
	if parsed, err := strconv.ParseFloat(cfg.Speed, 64); err == nil && parsed > 0 {
		speed = parsed
	}
	return &MiniMax{
		client:   client,
		endpoint: endpoint,
		groupID:  cfg.APIID,
		apiKey:   cfg.APIKey,
		model:    model,
		speed:    speed,
		voices:   Voices{Man: cfg.ManVoiceID, Woman: cfg.WomanVoiceID}.withDefaults("Chinese (Mandarin)_Gentleman", "Chinese (Mandarin)_Gentle_Senior"),
	}
}

type minimaxTimber struct {
	VoiceID string `json:"voice_id"`
	Weight  int    `json:"weight"`
}

type minimaxRequest struct {
	Model         string          `json:"model"`
	Text          string          `json:"text"`
	TimberWeights []minimaxTimber `json:"timber_weights"`
	VoiceSetting  struct {
		VoiceID   string  `json:"voice_id"`
		Speed     float64 `json:"speed"`
		Pitch     int     `json:"pitch"`
		Vol       int     `json:"vol"`
		LatexRead bool    `json:"latex_read"`
	} `json:"voice_setting"`
	AudioSetting struct {
		SampleRate int    `json:"sample_rate"`
		Bitrate    int    `json:"bitrate"`
		Format     string `json:"format"`
	} `json:"audio_setting"`
	LanguageBoost string `json:"language_boost,omitempty"`
}

type minimaxResponse struct {
	Data struct {
		Audio string `json:"audio"`
	} `json:"data"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

func (m *MiniMax) Synthesize(ctx context.Context, text string, speaker domain.Speaker) ([]byte, error) {
	payload := minimaxRequest{
		Model:         m.model,
		Text:          text,
		TimberWeights: []minimaxTimber{{VoiceID: m.voices.For(speaker), Weight: 100}},
		LanguageBoost: "auto",
	}
	payload.VoiceSetting.Speed = m.speed
	payload.VoiceSetting.Vol = 1
	payload.AudioSetting.SampleRate = 32000
	payload.AudioSetting.Bitrate = 128000
	payload.AudioSetting.Format = "mp3"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode minimax request: %w", err)
	}

	endpoint, err := url.Parse(m.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid minimax url %s: %w", m.endpoint, err)
	}
	query := endpoint.Query()
	query.Set("GroupId", m.groupID)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request minimax: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("minimax returned %s", resp.Status)
	}

	var parsed minimaxResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode minimax response: %w", err)
	}
	if parsed.Data.Audio == "" {
		return nil, fmt.Errorf("minimax returned no audio: %s", parsed.BaseResp.StatusMsg)
	}

	audio, err := hex.DecodeString(parsed.Data.Audio)
	if err != nil {
		return nil, fmt.Errorf("decode minimax audio: %w", err)
	}
	return audio, nil
}
