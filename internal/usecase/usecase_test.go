package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"DailyPodcast/internal/audio"
	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/infrastructure/storage"
	"DailyPodcast/internal/ports"
	"DailyPodcast/internal/script"
	"DailyPodcast/internal/workflow"
)

type fakeSource struct {
	mu      sync.Mutex
	stories []domain.Story
	calls   int
	limits  map[domain.Source]int
}

func (f *fakeSource) GetAllStories(_ context.Context, _ time.Time, limits map[domain.Source]int) ([]domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = limits
	return f.stories, nil
}

type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	selectors map[string]ports.Selector
	calls     int
	hits      map[string]int
}

func (f *fakeFetcher) setPage(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if body == "" {
		delete(f.pages, url)
		return
	}
	f.pages[url] = body
}

func (f *fakeFetcher) hitCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[url]
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ ports.Format, selector ports.Selector) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.selectors == nil {
		f.selectors = make(map[string]ports.Selector)
		f.hits = make(map[string]int)
	}
	f.selectors[url] = selector
	f.hits[url]++
	body, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("unexpected url %s", url)
	}
	return body, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	script  string
	calls   map[string]int
	budgets map[string]int
}

func (f *fakeGenerator) record(kind string, req ports.GenerationRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
		f.budgets = make(map[string]int)
	}
	f.calls[kind]++
	f.budgets[kind] = req.MaxTokens
}

func (f *fakeGenerator) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeGenerator) GenerateText(_ context.Context, req ports.GenerationRequest) (ports.Generation, error) {
	switch req.System {
	case summarizeStoryPrompt + "\n\n" + summarizeTagInstruction:
		f.record("summarize", req)
		return ports.Generation{Text: `<story-summary id="1">First summary</story-summary><story-summary id="2">Second summary</story-summary>`}, nil
	case summarizeBlogPrompt:
		f.record("blog", req)
		return ports.Generation{Text: "# Daily blog"}, nil
	case introPrompt:
		f.record("intro", req)
		return ports.Generation{Text: "Today we cover two stories."}, nil
	}
	return ports.Generation{}, errors.New("unexpected prompt")
}

func (f *fakeGenerator) GenerateObject(_ context.Context, req ports.GenerationRequest, _ ports.JSONSchema, out any) (ports.Generation, error) {
	f.record("script", req)
	return ports.Generation{Text: f.script}, json.Unmarshal([]byte(f.script), out)
}

type synthFunc func(ctx context.Context, text string, speaker domain.Speaker) ([]byte, error)

func (s synthFunc) Synthesize(ctx context.Context, text string, speaker domain.Speaker) ([]byte, error) {
	return s(ctx, text, speaker)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, digest)
	return nil
}

const validScript = `{"dialogue":[
	{"speaker":"A","text":"Welcome to the show."},
	{"speaker":" b ","text":"  Two stories today. "},
	{"speaker":"A","text":"Let's start."}
]}`

type harness struct {
	source      *fakeSource
	fetcher     *fakeFetcher
	generator   *fakeGenerator
	kv          *storage.MemoryKV
	blobs       *storage.MemoryBlobs
	locker      *storage.MemoryLocker
	checkpoints *workflow.MemoryStore
	notifier    *recordingNotifier
	synthFails  bool
	mu          sync.Mutex
}

func newHarness() *harness {
	return &harness{
		source: &fakeSource{stories: []domain.Story{
			{ID: "1", Title: "Rust in the kernel", URL: "https://example.com/rust", SourceURL: "https://news.ycombinator.com/item?id=1", Source: domain.SourceHackerNews},
			{ID: "acme/tool", Title: "acme/tool (42 ⭐)", URL: "https://deepwiki.com/acme/tool", Source: domain.SourceGitHubTrending, Description: "A tool"},
		}},
		fetcher: &fakeFetcher{pages: map[string]string{
			"https://example.com/rust":               "rust article",
			"https://news.ycombinator.com/item?id=1": "great thread",
			"https://deepwiki.com/acme/tool":         "tool docs",
		}},
		generator:   &fakeGenerator{script: validScript},
		kv:          storage.NewMemoryKV(),
		blobs:       storage.NewMemoryBlobs("https://cdn.example.com"),
		locker:      storage.NewMemoryLocker(),
		checkpoints: workflow.NewMemoryStore(),
		notifier:    &recordingNotifier{},
	}
}

func (h *harness) setSynthFails(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.synthFails = v
}

func (h *harness) pipeline() *Pipeline {
	synth := synthFunc(func(_ context.Context, text string, speaker domain.Speaker) ([]byte, error) {
		h.mu.Lock()
		fails := h.synthFails
		h.mu.Unlock()
		if fails {
			return nil, errors.New("tts unavailable")
		}
		return []byte(fmt.Sprintf("[%s:%s]", speaker, text)), nil
	})
	artifacts := NewArtifacts(h.kv)
	return NewPipeline(PipelineDeps{
		Source:      h.source,
		Contents:    NewContentStage(h.fetcher, h.kv, time.Hour, 100, nil),
		Text:        NewTextStages(h.generator, nil, 4096, 16384, nil),
		Audio:       audio.NewProducer(synth, h.blobs, nil, audio.WithBatchSize(2)),
		Artifacts:   artifacts,
		Guard:       NewGuard(artifacts, h.locker, time.Hour, nil),
		Checkpoints: h.checkpoints,
		Notifier:    h.notifier,
		Settings: Settings{
			Env:          "production",
			Slug:         "hacker-news",
			PodcastTitle: "Hacker Podcast",
			Limits:       map[string]int{"hacker-news": 8, "github-trending": 5},
			Policy:       workflow.Policy{Timeout: 5 * time.Second},
			LongPolicy:   workflow.Policy{Timeout: 5 * time.Second},
		},
	})
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ParseDate(value)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	return d
}

func TestPipelineProducesArtifact(t *testing.T) {
	t.Parallel()

	h := newHarness()
	outcome, err := h.pipeline().Run(context.Background(), RunRequest{Date: day(t, "2025-04-17")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Status != StatusSucceeded {
		t.Fatalf("unexpected status %s", outcome.Status)
	}

	artifact, ok, err := NewArtifacts(h.kv).Load(context.Background(), "content:production:hacker-news:2025-04-17")
	if err != nil || !ok {
		t.Fatalf("expected stored artifact, ok=%v err=%v", ok, err)
	}
	if artifact.Title != "Hacker Podcast 2025-04-17" || artifact.Date != "2025-04-17" {
		t.Fatalf("unexpected artifact header %+v", artifact)
	}
	if artifact.Audio != "2025/04/17/production/hacker-news-2025-04-17.mp3" {
		t.Fatalf("unexpected audio key %s", artifact.Audio)
	}
	if !strings.HasPrefix(artifact.AudioRef.URL, "https://cdn.example.com/2025/04/17/production/hacker-news-2025-04-17.mp3?t=") {
		t.Fatalf("unexpected audio url %s", artifact.AudioRef.URL)
	}
	if artifact.PodcastContent != "A: Welcome to the show.\nB: Two stories today.\nA: Let's start." {
		t.Fatalf("unexpected podcast content %q", artifact.PodcastContent)
	}
	if artifact.BlogContent != "# Daily blog" || artifact.IntroContent == "" || len(artifact.Stories) != 2 {
		t.Fatalf("unexpected derivative text %+v", artifact)
	}

	audioBytes, err := h.blobs.Get(context.Background(), artifact.Audio)
	if err != nil {
		t.Fatalf("get audio: %v", err)
	}
	want := "[A:Welcome to the show.][B:Two stories today.][A:Let's start.]"
	if string(audioBytes) != want {
		t.Fatalf("audio out of order: %q", audioBytes)
	}
	if keys := h.blobs.Keys(); len(keys) != 1 {
		t.Fatalf("expected temp chunks removed, got %v", keys)
	}

	if _, ok, _ := h.checkpoints.Load(context.Background(), "content:production:hacker-news:2025-04-17", StageSummarize); ok {
		t.Fatalf("expected checkpoints cleared after commit")
	}
	if h.source.limits[domain.SourceHackerNews] != 8 {
		t.Fatalf("unexpected limits passed to source %v", h.source.limits)
	}
	if budget := h.generator.budgets["summarize"]; budget != 8192 {
		t.Fatalf("unexpected summarize budget %d", budget)
	}
	if budget := h.generator.budgets["script"]; budget != 8000 {
		t.Fatalf("unexpected script budget %d", budget)
	}
	if len(h.notifier.messages) != 1 || !strings.Contains(h.notifier.messages[0], "Hacker Podcast 2025-04-17") {
		t.Fatalf("unexpected digests %v", h.notifier.messages)
	}
}

func TestPipelineSkipsExistingUnlessForced(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.pipeline()
	ctx := context.Background()

	if _, err := p.Run(ctx, RunRequest{Date: day(t, "2025-04-17")}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	outcome, err := p.Run(ctx, RunRequest{Date: day(t, "2025-04-17")})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if outcome.Status != StatusSkipped || outcome.Artifact.Date != "2025-04-17" {
		t.Fatalf("expected existing artifact, got %+v", outcome)
	}
	if h.source.calls != 1 || h.generator.count("summarize") != 1 {
		t.Fatalf("expected no work on second run, source=%d summarize=%d", h.source.calls, h.generator.count("summarize"))
	}

	outcome, err = p.Run(ctx, RunRequest{Date: day(t, "2025-04-17"), Force: true})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if outcome.Status != StatusSucceeded || h.generator.count("summarize") != 2 {
		t.Fatalf("expected forced regeneration, got %s summarize=%d", outcome.Status, h.generator.count("summarize"))
	}
}

func TestPipelineReportsAlreadyRunning(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.pipeline()
	run := p.NewRun(RunRequest{Date: day(t, "2025-04-17")})
	holder := domain.Lock{Date: run.Date, Owner: "other", ExpiresAt: time.Now().Add(time.Hour)}
	if ok, _, _ := h.locker.TryLock(context.Background(), run.LockKey(), holder, time.Hour); !ok {
		t.Fatalf("could not place lock")
	}

	outcome, err := p.Run(context.Background(), RunRequest{Date: day(t, "2025-04-17")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Status != StatusAlreadyRunning || outcome.Lock.Owner != "other" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if h.source.calls != 0 {
		t.Fatalf("expected no stage to run")
	}
}

func TestPipelineRejectsInvalidScript(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.generator.script = `{"dialogue":[{"speaker":"A","text":"ok"},{"speaker":"C","text":"who?"}]}`

	outcome, err := h.pipeline().Run(context.Background(), RunRequest{Date: day(t, "2025-04-17")})
	if err == nil {
		t.Fatalf("expected script rejection")
	}
	var rejected *script.RejectedError
	if !errors.As(err, &rejected) || rejected.Index != 1 {
		t.Fatalf("expected RejectedError at index 1, got %v", err)
	}
	if outcome.Status != StatusFailed || outcome.Stage != StageScript {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if _, ok, _ := NewArtifacts(h.kv).Load(context.Background(), "content:production:hacker-news:2025-04-17"); ok {
		t.Fatalf("no artifact may be committed for a rejected script")
	}
	if h.generator.count("blog") != 0 {
		t.Fatalf("later stages must not run")
	}
	if len(h.notifier.messages) != 1 || !strings.Contains(h.notifier.messages[0], StageScript) {
		t.Fatalf("expected failure digest, got %v", h.notifier.messages)
	}
}

func TestPipelineResumesFromCommittedStages(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setSynthFails(true)
	p := h.pipeline()
	ctx := context.Background()

	outcome, err := p.Run(ctx, RunRequest{Date: day(t, "2025-04-17")})
	if !errors.Is(err, audio.ErrNoAudio) || outcome.Stage != StageAudio {
		t.Fatalf("expected audio stage failure, got %+v %v", outcome, err)
	}

	h.setSynthFails(false)
	outcome, err = p.Run(ctx, RunRequest{Date: day(t, "2025-04-17")})
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if outcome.Status != StatusSucceeded {
		t.Fatalf("unexpected status %s", outcome.Status)
	}
	for _, kind := range []string{"summarize", "script", "blog", "intro"} {
		if got := h.generator.count(kind); got != 1 {
			t.Fatalf("stage %s ran %d times, want 1", kind, got)
		}
	}
	if h.source.calls != 1 {
		t.Fatalf("stories fetched %d times, want 1", h.source.calls)
	}
}

func TestPipelineRefetchesStoriesMissingFromFailedRun(t *testing.T) {
	t.Parallel()

	const wiki = "https://deepwiki.com/acme/tool"
	for _, force := range []bool{false, true} {
		t.Run(fmt.Sprintf("force=%v", force), func(t *testing.T) {
			t.Parallel()

			h := newHarness()
			h.fetcher.setPage(wiki, "")
			h.setSynthFails(true)
			p := h.pipeline()
			ctx := context.Background()

			outcome, err := p.Run(ctx, RunRequest{Date: day(t, "2025-04-17")})
			if err == nil || outcome.Stage != StageAudio {
				t.Fatalf("expected audio stage failure, got %+v %v", outcome, err)
			}
			stage := fmt.Sprintf(stageContentsFormat, domain.SourceGitHubTrending)
			if _, ok, _ := h.checkpoints.Load(ctx, "content:production:hacker-news:2025-04-17", stage); ok {
				t.Fatalf("group with a missing story must not be checkpointed")
			}
			before := h.fetcher.hitCount(wiki)

			h.fetcher.setPage(wiki, "tool docs")
			h.setSynthFails(false)
			outcome, err = p.Run(ctx, RunRequest{Date: day(t, "2025-04-17"), Force: force})
			if err != nil {
				t.Fatalf("second run: %v", err)
			}
			if outcome.Status != StatusSucceeded {
				t.Fatalf("unexpected status %s", outcome.Status)
			}
			if got := h.fetcher.hitCount(wiki) - before; got != 1 {
				t.Fatalf("missing story fetched %d times on second run, want 1", got)
			}
			if force && h.generator.count("summarize") != 2 {
				t.Fatalf("forced run should recompute every stage, summarize ran %d times", h.generator.count("summarize"))
			}
		})
	}
}

func TestFetchGroupCachesCompleteGroups(t *testing.T) {
	t.Parallel()

	h := newHarness()
	stage := NewContentStage(h.fetcher, h.kv, time.Hour, 100, nil)
	run := NewRunContext("run", "production", "hacker-news", day(t, "2025-04-17"), false, nil)
	stories := h.source.stories[:1]
	ctx := context.Background()

	first, err := stage.FetchGroup(ctx, run, domain.SourceHackerNews, stories)
	if err != nil {
		t.Fatalf("FetchGroup: %v", err)
	}
	if len(first) != 1 || !strings.Contains(first[0].Content, "<comments>great thread</comments>") {
		t.Fatalf("unexpected contents %+v", first)
	}
	if sel := h.fetcher.selectors["https://news.ycombinator.com/item?id=1"]; sel.Include != "#pagespace + tr" || sel.Exclude != ".navs" {
		t.Fatalf("unexpected comment selector %+v", sel)
	}
	calls := h.fetcher.calls

	if _, err := stage.FetchGroup(ctx, run, domain.SourceHackerNews, stories); err != nil {
		t.Fatalf("cached FetchGroup: %v", err)
	}
	if h.fetcher.calls != calls {
		t.Fatalf("expected cache hit, fetcher called %d more times", h.fetcher.calls-calls)
	}

	// a group with a different size must not reuse the cached entry
	grown := append(slices.Clone(stories), domain.Story{ID: "9", Title: "Missing", URL: "https://example.com/missing", Source: domain.SourceHackerNews})
	partial, err := stage.FetchGroup(ctx, run, domain.SourceHackerNews, grown)
	if err != nil {
		t.Fatalf("FetchGroup: %v", err)
	}
	if len(partial) != 1 || h.fetcher.calls == calls {
		t.Fatalf("expected refetch with failed story omitted, got %d contents", len(partial))
	}

	raw, err := h.kv.Get(ctx, run.CacheKey(domain.SourceHackerNews))
	if err != nil {
		t.Fatalf("cache read: %v", err)
	}
	var cached []domain.StoryContent
	if err := json.Unmarshal(raw, &cached); err != nil || len(cached) != 1 {
		t.Fatalf("partial group must not overwrite cache, got %s", raw)
	}
}

func TestFetchGroupRejectsLargerCachedGroup(t *testing.T) {
	t.Parallel()

	h := newHarness()
	stage := NewContentStage(h.fetcher, h.kv, time.Hour, 100, nil)
	run := NewRunContext("run", "production", "hacker-news", day(t, "2025-04-17"), false, nil)
	ctx := context.Background()

	stale := []domain.StoryContent{
		{ID: "1", Title: "stale one", Content: "old", Source: domain.SourceHackerNews},
		{ID: "2", Title: "stale two", Content: "old", Source: domain.SourceHackerNews},
	}
	raw, _ := json.Marshal(stale)
	if err := h.kv.Put(ctx, run.CacheKey(domain.SourceHackerNews), raw, time.Hour); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	contents, err := stage.FetchGroup(ctx, run, domain.SourceHackerNews, h.source.stories[:1])
	if err != nil {
		t.Fatalf("FetchGroup: %v", err)
	}
	if h.fetcher.calls == 0 {
		t.Fatalf("expected a refetch when the cached group is larger than the request")
	}
	if len(contents) != 1 || contents[0].Title != "Rust in the kernel" {
		t.Fatalf("unexpected contents %+v", contents)
	}
}

func TestFetchGroupComposesOtherSources(t *testing.T) {
	t.Parallel()

	h := newHarness()
	stage := NewContentStage(h.fetcher, nil, 0, 100, nil)
	run := NewRunContext("run", "dev", "hacker-news", day(t, "2025-04-17"), false, nil)

	contents, err := stage.FetchGroup(context.Background(), run, domain.SourceGitHubTrending, h.source.stories[1:])
	if err != nil {
		t.Fatalf("FetchGroup: %v", err)
	}
	want := "<title>acme/tool (42 ⭐)</title>\n\n---\n\n<description>A tool</description>\n\n---\n\n<source>github-trending</source>\n\n---\n\n<article>tool docs</article>"
	if len(contents) != 1 || contents[0].Content != want {
		t.Fatalf("unexpected content %+v", contents)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "hello", n: 10, want: "hello"},
		{in: "hello", n: 3, want: "hel"},
		{in: "héllo wörld", n: 4, want: "héll"},
		{in: "日本語テキスト", n: 3, want: "日本語"},
		{in: "abc", n: 0, want: "abc"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Fatalf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRunContextKeys(t *testing.T) {
	t.Parallel()

	limits := map[string]int{"hacker-news": 3}
	run := NewRunContext("id", "dev", "hacker-news", day(t, "2025-04-17"), true, limits)
	limits["hacker-news"] = 99

	if run.ContentKey != "content:dev:hacker-news:2025-04-17" {
		t.Fatalf("unexpected content key %s", run.ContentKey)
	}
	if run.CacheKey(domain.SourceDevTo) != "content:dev:hacker-news:2025-04-17:story-contents:dev-to" {
		t.Fatalf("unexpected cache key %s", run.CacheKey(domain.SourceDevTo))
	}
	if run.PodcastKey != "2025/04/17/dev/hacker-news-2025-04-17.mp3" {
		t.Fatalf("unexpected podcast key %s", run.PodcastKey)
	}
	got := run.Limits()
	got["hacker-news"] = 1
	if run.Limits()[domain.SourceHackerNews] != 3 {
		t.Fatalf("run limits must be immutable, got %v", run.Limits())
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ParseDate("17/04/2025"); err == nil {
		t.Fatalf("expected error for invalid date")
	}
}
