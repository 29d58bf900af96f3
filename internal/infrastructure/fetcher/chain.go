package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"DailyPodcast/internal/ports"
)

// Chain tries fetchers in order and returns the first non-empty content.
type Chain struct {
	fetchers []ports.ContentFetcher
	logger   *slog.Logger
}

var _ ports.ContentFetcher = (*Chain)(nil)

func NewChain(logger *slog.Logger, fetchers ...ports.ContentFetcher) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{fetchers: fetchers, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.fetchers))
	for _, f := range c.fetchers {
		names = append(names, f.Name())
	}
	return strings.Join(names, ">")
}

// Fetch falls back to the next fetcher on error or empty content. Empty
// content from every fetcher is not an error.
func (c *Chain) Fetch(ctx context.Context, url string, format ports.Format, selector ports.Selector) (string, error) {
	var errs []error
	for _, f := range c.fetchers {
		c.logger.Debug("get content", "fetcher", f.Name(), "url", url)
		content, err := f.Fetch(ctx, url, format, selector)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn("get content failed", "fetcher", f.Name(), "url", url, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		if strings.TrimSpace(content) != "" {
			return content, nil
		}
	}
	if len(c.fetchers) > 0 && len(errs) == len(c.fetchers) {
		return "", fmt.Errorf("fetch %s: %w", url, errors.Join(errs...))
	}
	return "", nil
}
