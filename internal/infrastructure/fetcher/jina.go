package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"DailyPodcast/internal/ports"
)

const jinaBaseURL = "https://r.jina.ai"

// JinaReader fetches pages through the r.jina.ai reader.
type JinaReader struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ ports.ContentFetcher = (*JinaReader)(nil)

// NewJinaReader works without a key at a lower rate limit.
func NewJinaReader(client *http.Client, baseURL, apiKey string) *JinaReader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if baseURL == "" {
		baseURL = jinaBaseURL
	}
	return &JinaReader{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

func (j *JinaReader) Name() string {
	return "jina"
}

func (j *JinaReader) Fetch(ctx context.Context, url string, format ports.Format, selector ports.Selector) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"/"+url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Retain-Images", "none")
	req.Header.Set("X-Return-Format", string(format))
	if j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}
	if selector.Include != "" {
		req.Header.Set("X-Target-Selector", selector.Include)
	}
	if selector.Exclude != "" {
		req.Header.Set("X-Remove-Selector", selector.Exclude)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request jina: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jina returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read jina response: %w", err)
	}
	return string(body), nil
}
