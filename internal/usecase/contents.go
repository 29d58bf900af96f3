package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

const (
	defaultCacheTTL     = 24 * time.Hour
	hackerNewsItemURL   = "https://news.ycombinator.com/item?id="
	commentsInclude     = "#pagespace + tr"
	commentsExclude     = ".navs"
	sectionSeparator    = "\n\n---\n\n"
	charsPerToken       = 4
	defaultContentChars = 4096 * charsPerToken
)

// ContentStage fetches story bodies per source group and caches complete groups.
type ContentStage struct {
	fetcher  ports.ContentFetcher
	kv       ports.KVStore
	ttl      time.Duration
	maxChars int
	logger   *slog.Logger
}

// NewContentStage truncates every fetched body to maxTokens*4 characters.
func NewContentStage(fetcher ports.ContentFetcher, kv ports.KVStore, ttl time.Duration, maxTokens int, logger *slog.Logger) *ContentStage {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	maxChars := maxTokens * charsPerToken
	if maxChars <= 0 {
		maxChars = defaultContentChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentStage{
		fetcher:  fetcher,
		kv:       kv,
		ttl:      ttl,
		maxChars: maxChars,
		logger:   logger,
	}
}

// FetchGroup returns the contents of one source group. A cached group is
// used only when it has exactly one entry per story. Stories that cannot
// be fetched are logged and left out.
func (c *ContentStage) FetchGroup(ctx context.Context, run RunContext, source domain.Source, stories []domain.Story) ([]domain.StoryContent, error) {
	cacheKey := run.CacheKey(source)
	if cached, ok := c.cached(ctx, cacheKey, len(stories)); ok {
		c.logger.Info("use cached story contents", "source", source, "count", len(cached))
		return cached, nil
	}

	contents := make([]domain.StoryContent, 0, len(stories))
	for _, story := range stories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := c.storyContent(ctx, story)
		if err != nil {
			c.logger.Error("get story content failed", "source", source, "id", story.ID, "error", err)
			continue
		}
		contents = append(contents, domain.StoryContent{
			ID:      story.ID,
			Title:   story.Title,
			Content: body,
			Source:  story.Source,
		})
		c.logger.Debug("get story content success", "source", source, "id", story.ID)
	}

	if len(contents) == len(stories) && len(contents) > 0 {
		c.store(ctx, cacheKey, source, contents)
	}
	return contents, nil
}

func (c *ContentStage) cached(ctx context.Context, key string, want int) ([]domain.StoryContent, bool) {
	if c.kv == nil {
		return nil, false
	}
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			c.logger.Warn("read content cache", "key", key, "error", err)
		}
		return nil, false
	}
	var contents []domain.StoryContent
	if err := json.Unmarshal(raw, &contents); err != nil {
		c.logger.Warn("failed to parse cached contents", "key", key, "error", err)
		return nil, false
	}
	if len(contents) != want {
		return nil, false
	}
	return contents, true
}

func (c *ContentStage) store(ctx context.Context, key string, source domain.Source, contents []domain.StoryContent) {
	if c.kv == nil {
		return
	}
	raw, err := json.Marshal(contents)
	if err != nil {
		c.logger.Error("encode story contents", "source", source, "error", err)
		return
	}
	if err := c.kv.Put(ctx, key, raw, c.ttl); err != nil {
		c.logger.Error("cache story contents failed", "source", source, "error", err)
		return
	}
	c.logger.Info("cached story contents", "source", source, "count", len(contents))
}

func (c *ContentStage) storyContent(ctx context.Context, story domain.Story) (string, error) {
	if story.Source == domain.SourceHackerNews {
		return c.hackerNewsContent(ctx, story)
	}

	article, err := c.fetcher.Fetch(ctx, story.Link(), ports.FormatMarkdown, ports.Selector{})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", story.Link(), err)
	}
	return joinSections(
		section("title", story.Title),
		section("description", story.Description),
		section("source", string(story.Source)),
		section("article", truncateRunes(article, c.maxChars)),
	), nil
}

func (c *ContentStage) hackerNewsContent(ctx context.Context, story domain.Story) (string, error) {
	discussion := story.SourceURL
	if discussion == "" {
		discussion = hackerNewsItemURL + story.ID
	}

	var article, comments string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		article, err = c.fetcher.Fetch(gctx, story.Link(), ports.FormatMarkdown, ports.Selector{})
		if err != nil {
			return fmt.Errorf("fetch article %s: %w", story.Link(), err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		comments, err = c.fetcher.Fetch(gctx, discussion, ports.FormatMarkdown, ports.Selector{
			Include: commentsInclude,
			Exclude: commentsExclude,
		})
		if err != nil {
			return fmt.Errorf("fetch comments %s: %w", discussion, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	return joinSections(
		section("title", story.Title),
		section("article", truncateRunes(article, c.maxChars)),
		section("comments", truncateRunes(comments, c.maxChars)),
	), nil
}

func section(tag, body string) string {
	if body == "" {
		return ""
	}
	return "<" + tag + ">" + body + "</" + tag + ">"
}

func joinSections(sections ...string) string {
	kept := sections[:0]
	for _, s := range sections {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, sectionSeparator)
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
