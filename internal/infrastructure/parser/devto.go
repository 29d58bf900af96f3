package parser

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/scanner"
)

const (
	devToBaseURL = "https://dev.to"
	devToMax     = 10
)

// DevToScanner reads the weekly top articles.
type DevToScanner struct {
	pages   *PageLoader
	baseURL string
}

func NewDevToScanner(pages *PageLoader) *DevToScanner {
	return &DevToScanner{pages: pages, baseURL: devToBaseURL}
}

func (d *DevToScanner) Name() string {
	return string(domain.SourceDevTo)
}

func (d *DevToScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Story, error) {
	items, err := d.pages.Items(ctx, d.baseURL+"/top/week", ".crayons-story")
	if err != nil {
		return nil, fmt.Errorf("dev.to: %w", err)
	}
	return scanner.Collect(parseDevTo(items), scanner.Cap(devToMax, req.Limit)), nil
}

func parseDevTo(items *goquery.Selection) []domain.Story {
	stories := make([]domain.Story, 0, items.Length())
	items.Each(func(i int, el *goquery.Selection) {
		link := el.Find(".crayons-story__title a").First()
		href, _ := link.Attr("href")
		title := text(link)
		if title == "" || href == "" {
			return
		}

		id := lastSegment(href)
		if id == "" {
			id = fmt.Sprintf("dev-%d", i)
		}
		if author := text(el.Find(".crayons-story__secondary .crayons-link").First()); author != "" {
			title = fmt.Sprintf("%s by %s", title, author)
		}
		url := absolute(devToBaseURL, href)
		stories = append(stories, domain.Story{
			ID:          id,
			Title:       title,
			URL:         url,
			SourceURL:   url,
			Source:      domain.SourceDevTo,
			Description: text(el.Find(".crayons-story__tags")),
		})
	})
	return stories
}
