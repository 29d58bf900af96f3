package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"DailyPodcast/internal/config"
	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
	"DailyPodcast/internal/scanner"
)

// ErrNoStories is returned when every source failed or came back empty.
var ErrNoStories = errors.New("no stories found from any source")

// StrategySource implements StorySource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.StorySource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
// Source order is the output priority order.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	if log == nil {
		log = slog.Default()
	}
	return &StrategySource{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// GetAllStories queries every source concurrently. A failing source is
// logged and contributes nothing; the result is concatenated in source order.
func (s *StrategySource) GetAllStories(ctx context.Context, day time.Time, limits map[domain.Source]int) ([]domain.Story, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.logger.Debug("get all stories", "sources", len(s.sources), "day", day.Format("2006-01-02"))

	perSource := make([][]domain.Story, len(s.sources))
	var g errgroup.Group
	for i, src := range s.sources {
		g.Go(func() error {
			perSource[i] = s.scanSource(ctx, day, src, limits[domain.Source(src.Name)])
			return nil
		})
	}
	_ = g.Wait()

	var (
		aggregated []domain.Story
		counts     = make([]any, 0, 2*len(s.sources))
	)
	for i, src := range s.sources {
		aggregated = append(aggregated, perSource[i]...)
		counts = append(counts, src.Name, len(perSource[i]))
	}

	s.logger.Info("stories per source", append(counts, "total", len(aggregated))...)
	if len(aggregated) == 0 {
		return nil, ErrNoStories
	}
	return aggregated, nil
}

func (s *StrategySource) scanSource(ctx context.Context, day time.Time, src config.SourceConfig, limit int) []domain.Story {
	strategy, err := s.registry.Resolve(src.Scanner)
	if err != nil {
		s.logger.Error("resolve source scanner", "source", src.Name, "error", err)
		return nil
	}

	results, err := strategy.Scan(ctx, scanner.Request{
		Day:     day,
		Source:  domain.Source(src.Name),
		Limit:   limit,
		Options: src.Options,
	})
	if err != nil {
		s.logger.Error("failed to get stories", "source", src.Name, "error", err)
		return nil
	}

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = domain.Source(src.Name)
		}
	}
	s.logger.Debug("source produced stories", "source", src.Name, "count", len(results))
	return results
}
