package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/scanner"
)

const (
	githubBaseURL   = "https://github.com"
	deepwikiBaseURL = "https://deepwiki.com"
	githubMax       = 10
)

// GitHubTrendingScanner reads the trending repositories page. Story URLs
// point at the DeepWiki rendering of each repository.
type GitHubTrendingScanner struct {
	pages   *PageLoader
	baseURL string
}

func NewGitHubTrendingScanner(pages *PageLoader) *GitHubTrendingScanner {
	return &GitHubTrendingScanner{pages: pages, baseURL: githubBaseURL}
}

func (g *GitHubTrendingScanner) Name() string {
	return string(domain.SourceGitHubTrending)
}

func (g *GitHubTrendingScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Story, error) {
	items, err := g.pages.Items(ctx, g.baseURL+"/trending", ".Box-row")
	if err != nil {
		return nil, fmt.Errorf("github trending: %w", err)
	}
	return scanner.Collect(parseGitHubTrending(items), scanner.Cap(githubMax, req.Limit)), nil
}

func parseGitHubTrending(items *goquery.Selection) []domain.Story {
	stories := make([]domain.Story, 0, items.Length())
	items.Each(func(_ int, el *goquery.Selection) {
		link := el.Find("h2 a").First()
		href, _ := link.Attr("href")
		repo := strings.Trim(href, "/")
		if repo == "" {
			return
		}

		stars := parseCount(el.Find(".octicon-star").Parent().Text())
		title := text(link)
		stories = append(stories, domain.Story{
			ID:          strings.ReplaceAll(repo, "/", "-"),
			Title:       fmt.Sprintf("%s (%d ⭐)", title, stars),
			URL:         deepwikiBaseURL + "/" + repo,
			SourceURL:   githubBaseURL + "/" + repo,
			Source:      domain.SourceGitHubTrending,
			Description: text(el.Find("p").First()),
			Stars:       stars,
		})
	})
	return stories
}

// parseCount reads the leading integer of s, ignoring thousands separators.
func parseCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
