package scanner

import (
	"context"
	"fmt"
	"time"

	"DailyPodcast/internal/domain"
)

// Request carries all parameters required to execute a scan.
type Request struct {
	Day     time.Time
	Source  domain.Source
	Limit   int
	Options map[string]string
}

// Scanner extracts stories from one upstream listing (Hacker News, GitHub trending, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Story, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Cap returns the effective per-run cap: the extractor maximum, lowered by a
// positive configured limit.
func Cap(maximum, limit int) int {
	if limit > 0 && limit < maximum {
		return limit
	}
	return maximum
}

// Collect keeps valid stories, dropping duplicate ids, until cap is reached.
func Collect(stories []domain.Story, limit int) []domain.Story {
	out := make([]domain.Story, 0, min(len(stories), max(limit, 0)))
	seen := make(map[string]struct{}, len(stories))
	for _, story := range stories {
		if len(out) >= limit {
			break
		}
		if !story.Valid() {
			continue
		}
		if _, ok := seen[story.ID]; ok {
			continue
		}
		seen[story.ID] = struct{}{}
		out = append(out, story)
	}
	return out
}
