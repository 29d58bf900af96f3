package parser

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/scanner"
)

const (
	productHuntBaseURL = "https://www.producthunt.com"
	productHuntMax     = 5
)

// ProductHuntScanner reads the first homepage section.
type ProductHuntScanner struct {
	pages   *PageLoader
	baseURL string
}

func NewProductHuntScanner(pages *PageLoader) *ProductHuntScanner {
	return &ProductHuntScanner{pages: pages, baseURL: productHuntBaseURL}
}

func (p *ProductHuntScanner) Name() string {
	return string(domain.SourceProductHunt)
}

func (p *ProductHuntScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Story, error) {
	items, err := p.pages.Items(ctx, p.baseURL, `[data-test="homepage-section-0"] [data-test*="post-item"]`)
	if err != nil {
		return nil, fmt.Errorf("product hunt: %w", err)
	}
	return scanner.Collect(parseProductHunt(items), scanner.Cap(productHuntMax, req.Limit)), nil
}

func parseProductHunt(items *goquery.Selection) []domain.Story {
	stories := make([]domain.Story, 0, items.Length())
	items.Each(func(i int, el *goquery.Selection) {
		link := el.Find(`a[data-test="post-name"]`).First()
		href, _ := link.Attr("href")
		title := text(link)
		if title == "" || href == "" {
			return
		}

		id := lastSegment(href)
		if id == "" {
			id = fmt.Sprintf("ph-%d", i)
		}
		votes := parseCount(el.Find(`[data-test="vote-button"]`).Text())
		url := absolute(productHuntBaseURL, href)
		stories = append(stories, domain.Story{
			ID:          id,
			Title:       fmt.Sprintf("%s (%d 👍)", title, votes),
			URL:         url,
			SourceURL:   url,
			Source:      domain.SourceProductHunt,
			Description: text(el.Find(`[data-test="post-description"]`)),
			Votes:       votes,
		})
	})
	return stories
}
