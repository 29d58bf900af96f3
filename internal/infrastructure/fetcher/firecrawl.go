package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"DailyPodcast/internal/ports"
)

const firecrawlBaseURL = "https://api.firecrawl.dev"

// Firecrawl fetches pages through the Firecrawl scrape API.
type Firecrawl struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ ports.ContentFetcher = (*Firecrawl)(nil)

func NewFirecrawl(client *http.Client, baseURL, apiKey string) *Firecrawl {
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	if baseURL == "" {
		baseURL = firecrawlBaseURL
	}
	return &Firecrawl{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

func (f *Firecrawl) Name() string {
	return "firecrawl"
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	IncludeTags     []string `json:"includeTags,omitempty"`
	ExcludeTags     []string `json:"excludeTags,omitempty"`
}

type scrapeResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Data    map[string]any `json:"data"`
}

func (f *Firecrawl) Fetch(ctx context.Context, url string, format ports.Format, selector ports.Selector) (string, error) {
	if f.apiKey == "" {
		return "", errors.New("firecrawl api key is not configured")
	}

	payload := scrapeRequest{URL: url, Formats: []string{string(format)}, OnlyMainContent: true}
	if selector.Include != "" {
		payload.IncludeTags = []string{selector.Include}
	}
	if selector.Exclude != "" {
		payload.ExcludeTags = []string{selector.Exclude}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request firecrawl: %w", err)
	}
	defer resp.Body.Close()

	var parsed scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode firecrawl response (%s): %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		return "", fmt.Errorf("firecrawl returned %s: %s", resp.Status, parsed.Error)
	}

	content, _ := parsed.Data[string(format)].(string)
	return content, nil
}
