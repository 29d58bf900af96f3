package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"DailyPodcast/internal/ports"
)

// PageLoader fetches listing pages as HTML. Fetchers are tried in order; a
// fetcher that fails or returns a page without items hands over to the next.
type PageLoader struct {
	fetchers []ports.ContentFetcher
	logger   *slog.Logger
}

// NewPageLoader keeps fetchers in priority order.
func NewPageLoader(logger *slog.Logger, fetchers ...ports.ContentFetcher) *PageLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageLoader{fetchers: fetchers, logger: logger}
}

// Items returns the elements matching itemSelector on the first page that has any.
func (l *PageLoader) Items(ctx context.Context, pageURL, itemSelector string) (*goquery.Selection, error) {
	if len(l.fetchers) == 0 {
		return nil, errors.New("no content fetchers configured")
	}

	var errs []error
	for _, f := range l.fetchers {
		html, err := f.Fetch(ctx, pageURL, ports.FormatHTML, ports.Selector{})
		if err != nil {
			l.logger.Warn("fetch listing failed", "fetcher", f.Name(), "url", pageURL, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: parse document: %w", f.Name(), err))
			continue
		}

		items := doc.Find(itemSelector)
		if items.Length() > 0 {
			l.logger.Debug("listing loaded", "fetcher", f.Name(), "url", pageURL, "items", items.Length())
			return items, nil
		}
		l.logger.Info("listing has no items, trying next fetcher", "fetcher", f.Name(), "url", pageURL)
	}

	if len(errs) == len(l.fetchers) {
		return nil, fmt.Errorf("load %s: %w", pageURL, errors.Join(errs...))
	}
	return &goquery.Selection{}, nil
}

func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

func absolute(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}

func lastSegment(href string) string {
	trimmed := strings.TrimSuffix(href, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
