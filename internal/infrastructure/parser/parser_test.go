package parser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"DailyPodcast/internal/config"
	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
	"DailyPodcast/internal/scanner"
)

type stubFetcher struct {
	name  string
	pages map[string]string
	err   error

	mu   sync.Mutex
	urls []string
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(_ context.Context, url string, format ports.Format, _ ports.Selector) (string, error) {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	s.mu.Unlock()
	if format != ports.FormatHTML {
		return "", errors.New("listing pages must be requested as html")
	}
	if s.err != nil {
		return "", s.err
	}
	return s.pages[url], nil
}

const hackerNewsPage = `
<table>
  <tr class="athing submission" id="101"><td><span class="titleline"><a href="https://example.com/a">First story</a></span></td></tr>
  <tr class="athing submission" id="102"><td><span class="titleline"><a href="item?id=102">Ask HN: something</a></span></td></tr>
  <tr class="athing submission" id="101"><td><span class="titleline"><a href="https://example.com/dup">Duplicate</a></span></td></tr>
  <tr class="athing submission" id=""><td><span class="titleline"><a href="https://example.com/none">No id</a></span></td></tr>
  <tr class="athing submission" id="103"><td><span class="titleline"><a href="https://example.com/c">Third story</a></span></td></tr>
</table>`

const githubPage = `
<article class="Box-row">
  <h2><a href="/acme/rocket">acme /
     rocket</a></h2>
  <p> Fast rockets in Go </p>
  <a href="/acme/rocket/stargazers"><svg class="octicon-star"></svg> 12,345</a>
</article>
<article class="Box-row"><h2><a href="">broken</a></h2></article>`

const productHuntPage = `
<section data-test="homepage-section-0">
  <div data-test="post-item-1">
    <a data-test="post-name" href="/posts/widget">Widget</a>
    <div data-test="post-description">Makes widgets</div>
    <button data-test="vote-button">321</button>
  </div>
  <div data-test="post-item-2"><a data-test="post-name" href="">Nameless</a></div>
</section>
<section data-test="homepage-section-1">
  <div data-test="post-item-3"><a data-test="post-name" href="/posts/other">Other</a></div>
</section>`

const devToPage = `
<div class="crayons-story">
  <h3 class="crayons-story__title"><a href="/jane/go-tips-1a2b">Go tips</a></h3>
  <div class="crayons-story__secondary"><a class="crayons-link">Jane</a></div>
  <div class="crayons-story__tags">#go #tips</div>
</div>`

func TestHackerNewsScanner(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 4, 17, 0, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{name: "stub", pages: map[string]string{
		"https://news.ycombinator.com/front?day=2025-04-17": hackerNewsPage,
	}}
	hn := NewHackerNewsScanner(NewPageLoader(nil, fetcher))

	stories, err := hn.Scan(context.Background(), scanner.Request{Day: day, Limit: 8})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(stories) != 3 {
		t.Fatalf("expected 3 stories, got %d: %+v", len(stories), stories)
	}
	if stories[0].ID != "101" || stories[0].Title != "First story" || stories[0].SourceURL != "https://news.ycombinator.com/item?id=101" {
		t.Fatalf("unexpected first story %+v", stories[0])
	}
	if stories[1].URL != "https://news.ycombinator.com/item?id=102" {
		t.Fatalf("expected relative link resolved, got %s", stories[1].URL)
	}

	capped, err := hn.Scan(context.Background(), scanner.Request{Day: day, Limit: 2})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(capped) != 2 {
		t.Fatalf("expected limit to cap stories, got %d", len(capped))
	}
}

func TestGitHubTrendingScanner(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{name: "stub", pages: map[string]string{"https://github.com/trending": githubPage}}
	stories, err := NewGitHubTrendingScanner(NewPageLoader(nil, fetcher)).Scan(context.Background(), scanner.Request{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("expected 1 story, got %+v", stories)
	}
	got := stories[0]
	if got.ID != "acme-rocket" || got.URL != "https://deepwiki.com/acme/rocket" || got.SourceURL != "https://github.com/acme/rocket" {
		t.Fatalf("unexpected story %+v", got)
	}
	if got.Stars != 12345 || got.Title != "acme / rocket (12345 ⭐)" || got.Description != "Fast rockets in Go" {
		t.Fatalf("unexpected story details %+v", got)
	}
}

func TestProductHuntScanner(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{name: "stub", pages: map[string]string{"https://www.producthunt.com": productHuntPage}}
	stories, err := NewProductHuntScanner(NewPageLoader(nil, fetcher)).Scan(context.Background(), scanner.Request{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("expected only the first section's valid item, got %+v", stories)
	}
	if stories[0].ID != "widget" || stories[0].Votes != 321 || stories[0].URL != "https://www.producthunt.com/posts/widget" {
		t.Fatalf("unexpected story %+v", stories[0])
	}
}

func TestDevToScanner(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{name: "stub", pages: map[string]string{"https://dev.to/top/week": devToPage}}
	stories, err := NewDevToScanner(NewPageLoader(nil, fetcher)).Scan(context.Background(), scanner.Request{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(stories) != 1 || stories[0].Title != "Go tips by Jane" || stories[0].URL != "https://dev.to/jane/go-tips-1a2b" {
		t.Fatalf("unexpected stories %+v", stories)
	}
}

func TestPageLoaderFallsBackWhenPageHasNoItems(t *testing.T) {
	t.Parallel()

	empty := &stubFetcher{name: "jina", pages: map[string]string{"https://dev.to/top/week": "<html>challenge</html>"}}
	full := &stubFetcher{name: "firecrawl", pages: map[string]string{"https://dev.to/top/week": devToPage}}

	stories, err := NewDevToScanner(NewPageLoader(nil, empty, full)).Scan(context.Background(), scanner.Request{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(stories) != 1 || len(full.urls) != 1 {
		t.Fatalf("expected fallback fetcher to serve the listing, stories=%d calls=%d", len(stories), len(full.urls))
	}
}

func TestPageLoaderFailsWhenEveryFetcherFails(t *testing.T) {
	t.Parallel()

	loader := NewPageLoader(nil,
		&stubFetcher{name: "jina", err: errors.New("429")},
		&stubFetcher{name: "firecrawl", err: errors.New("402")},
	)
	if _, err := loader.Items(context.Background(), "https://dev.to/top/week", ".crayons-story"); err == nil {
		t.Fatalf("expected error when all fetchers fail")
	}

	partial := NewPageLoader(nil,
		&stubFetcher{name: "jina", err: errors.New("429")},
		&stubFetcher{name: "firecrawl", pages: map[string]string{}},
	)
	items, err := partial.Items(context.Background(), "https://dev.to/top/week", ".crayons-story")
	if err != nil || items.Length() != 0 {
		t.Fatalf("expected empty selection without error, got %d %v", items.Length(), err)
	}
}

type fixedScanner struct {
	name    string
	stories []domain.Story
	err     error
	limit   int
}

func (f *fixedScanner) Name() string { return f.name }

func (f *fixedScanner) Scan(_ context.Context, req scanner.Request) ([]domain.Story, error) {
	f.limit = req.Limit
	if f.err != nil {
		return nil, f.err
	}
	return f.stories, nil
}

func TestStrategySourceToleratesFailingSource(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(&fixedScanner{name: "a", stories: []domain.Story{{ID: "a1", Title: "A1", URL: "https://a/1"}}})
	reg.Register(&fixedScanner{name: "b", err: errors.New("source down")})
	reg.Register(&fixedScanner{name: "c", stories: []domain.Story{{ID: "c1", Title: "C1", URL: "https://c/1"}}})
	reg.Register(&fixedScanner{name: "d", stories: []domain.Story{{ID: "d1", Title: "D1", URL: "https://d/1", Source: "custom"}}})

	src := NewStrategySource(reg, []config.SourceConfig{
		{Name: "src-a", Scanner: "a"},
		{Name: "src-b", Scanner: "b"},
		{Name: "src-c", Scanner: "c"},
		{Name: "src-d", Scanner: "d"},
		{Name: "src-missing", Scanner: "missing"},
	}, nil)

	stories, err := src.GetAllStories(context.Background(), time.Now(), nil)
	if err != nil {
		t.Fatalf("GetAllStories: %v", err)
	}

	var ids []string
	for _, s := range stories {
		ids = append(ids, s.ID+"@"+string(s.Source))
	}
	if got := strings.Join(ids, ","); got != "a1@src-a,c1@src-c,d1@custom" {
		t.Fatalf("unexpected aggregate %s", got)
	}
}

func TestStrategySourcePassesLimits(t *testing.T) {
	t.Parallel()

	hn := &fixedScanner{name: "hacker-news", stories: []domain.Story{{ID: "1", Title: "t", URL: "u"}}}
	reg := scanner.NewRegistry()
	reg.Register(hn)

	src := NewStrategySource(reg, []config.SourceConfig{{Name: "hacker-news", Scanner: "hacker-news"}}, nil)
	if _, err := src.GetAllStories(context.Background(), time.Now(), map[domain.Source]int{domain.SourceHackerNews: 3}); err != nil {
		t.Fatalf("GetAllStories: %v", err)
	}
	if hn.limit != 3 {
		t.Fatalf("expected limit 3 passed to scanner, got %d", hn.limit)
	}
}

func TestStrategySourceEmptyAggregate(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(&fixedScanner{name: "a", err: errors.New("down")})
	reg.Register(&fixedScanner{name: "b"})

	src := NewStrategySource(reg, []config.SourceConfig{{Name: "a", Scanner: "a"}, {Name: "b", Scanner: "b"}}, nil)
	if _, err := src.GetAllStories(context.Background(), time.Now(), nil); !errors.Is(err, ErrNoStories) {
		t.Fatalf("expected ErrNoStories, got %v", err)
	}
}
