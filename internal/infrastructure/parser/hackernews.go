package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/scanner"
)

const (
	hackerNewsBaseURL = "https://news.ycombinator.com"
	hackerNewsMax     = 15
)

// HackerNewsScanner reads the front page of a given day.
type HackerNewsScanner struct {
	pages   *PageLoader
	baseURL string
}

func NewHackerNewsScanner(pages *PageLoader) *HackerNewsScanner {
	return &HackerNewsScanner{pages: pages, baseURL: hackerNewsBaseURL}
}

// Name identifies the strategy inside the registry.
func (h *HackerNewsScanner) Name() string {
	return string(domain.SourceHackerNews)
}

// Scan returns the day's front page stories.
func (h *HackerNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Story, error) {
	pageURL := fmt.Sprintf("%s/front?day=%s", h.baseURL, req.Day.Format("2006-01-02"))
	items, err := h.pages.Items(ctx, pageURL, ".athing.submission")
	if err != nil {
		return nil, fmt.Errorf("hacker news front page: %w", err)
	}
	return scanner.Collect(parseHackerNews(items, h.baseURL), scanner.Cap(hackerNewsMax, req.Limit)), nil
}

func parseHackerNews(items *goquery.Selection, baseURL string) []domain.Story {
	stories := make([]domain.Story, 0, items.Length())
	items.Each(func(_ int, el *goquery.Selection) {
		id, _ := el.Attr("id")
		link := el.Find(".titleline > a").First()
		href, _ := link.Attr("href")
		if strings.HasPrefix(href, "item?id=") {
			href = absolute(baseURL, href)
		}
		stories = append(stories, domain.Story{
			ID:        strings.TrimSpace(id),
			Title:     text(link),
			URL:       href,
			SourceURL: fmt.Sprintf("%s/item?id=%s", baseURL, strings.TrimSpace(id)),
			Source:    domain.SourceHackerNews,
		})
	})
	return stories
}
