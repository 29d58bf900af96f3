package usecase

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"DailyPodcast/internal/audio"
	"DailyPodcast/internal/domain"
)

// DateLayout is the calendar date format used in keys and requests.
const DateLayout = "2006-01-02"

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	day, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return day, nil
}

// ContentKey is the artifact key of one date.
func ContentKey(env, slug, date string) string {
	return fmt.Sprintf("content:%s:%s:%s", env, slug, date)
}

// RunContext carries everything a stage needs to know about the run. It is
// built once per run and passed by value.
type RunContext struct {
	ID         string
	Env        string
	Slug       string
	Date       string
	Day        time.Time
	Force      bool
	ContentKey string
	PodcastKey string
	limits     map[domain.Source]int
}

// NewRunContext derives every key of the run from env, slug and date.
func NewRunContext(id, env, slug string, day time.Time, force bool, limits map[string]int) RunContext {
	date := day.Format(DateLayout)
	copied := make(map[domain.Source]int, len(limits))
	for name, limit := range limits {
		copied[domain.Source(name)] = limit
	}
	return RunContext{
		ID:         id,
		Env:        env,
		Slug:       slug,
		Date:       date,
		Day:        day,
		Force:      force,
		ContentKey: ContentKey(env, slug, date),
		PodcastKey: audio.PodcastKey(env, slug, date),
		limits:     copied,
	}
}

// Limits returns a copy of the per-source story caps.
func (r RunContext) Limits() map[domain.Source]int {
	return maps.Clone(r.limits)
}

// CacheKey is the fetch cache key of one source group.
func (r RunContext) CacheKey(source domain.Source) string {
	return fmt.Sprintf("%s:story-contents:%s", r.ContentKey, source)
}

// LockKey is the key of the in-flight marker for the date.
func (r RunContext) LockKey() string {
	return r.ContentKey + ":lock"
}
