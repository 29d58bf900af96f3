package ports

import (
	"context"
	"errors"
	"time"

	"DailyPodcast/internal/domain"
)

// ErrNotFound is returned by stores when a key does not exist.
var ErrNotFound = errors.New("not found")

// Format selects the representation a ContentFetcher should return.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Selector narrows the fetched document.
type Selector struct {
	Include string
	Exclude string
}

// ContentFetcher returns raw text for a URL.
type ContentFetcher interface {
	Name() string
	Fetch(ctx context.Context, url string, format Format, selector Selector) (string, error)
}

// StorySource aggregates stories from every configured source.
type StorySource interface {
	GetAllStories(ctx context.Context, day time.Time, limits map[domain.Source]int) ([]domain.Story, error)
}

// GenerationRequest is a single text generation call.
type GenerationRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Usage reports token accounting for a generation call.
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
}

// Generation is the raw generator output.
type Generation struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// JSONSchema constrains structured generation.
type JSONSchema struct {
	Name   string
	Schema map[string]any
}

// TextGenerator wraps a language model.
type TextGenerator interface {
	GenerateText(ctx context.Context, req GenerationRequest) (Generation, error)
	// GenerateObject decodes a schema-constrained response into out.
	GenerateObject(ctx context.Context, req GenerationRequest, schema JSONSchema, out any) (Generation, error)
}

// Synthesizer converts one dialogue line into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speaker domain.Speaker) ([]byte, error)
}

// KVStore holds JSON documents (artifacts, caches).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// BlobStore holds binary objects (temp chunks, final audio).
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Head(ctx context.Context, key string) (int64, error)
	PublicURL(key string) string
}

// Locker places time-bounded advisory locks.
type Locker interface {
	// TryLock returns false and the current holder when a live lock exists.
	TryLock(ctx context.Context, key string, lock domain.Lock, ttl time.Duration) (bool, domain.Lock, error)
	Unlock(ctx context.Context, key, owner string) error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
