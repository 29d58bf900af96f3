// Package audio synthesizes dialogue lines into temp chunks, joins them
// into one ordered podcast object and removes the chunks afterwards.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

var (
	// ErrNoAudio means no dialogue line produced a chunk.
	ErrNoAudio = errors.New("no audio files generated for podcast")
	// ErrNoChunksLoaded means every chunk of a manifest was missing at assembly.
	ErrNoChunksLoaded = errors.New("failed to load any podcast audio chunks")
)

const (
	DefaultBatchSize      = 4
	DefaultCleanupTimeout = time.Second
)

// Chunk is one synthesized line stored under its ordinal.
type Chunk struct {
	Ordinal int    `json:"ordinal"`
	Key     string `json:"key"`
	Size    int    `json:"size"`
}

// LineFailure records a line whose synthesis failed.
type LineFailure struct {
	Ordinal int    `json:"ordinal"`
	Reason  string `json:"reason"`
}

// Manifest accounts for every dialogue line: it either has a chunk, was
// skipped as empty, or failed.
type Manifest struct {
	Key     string        `json:"key"`
	Chunks  []Chunk       `json:"chunks"`
	Skipped []int         `json:"skipped,omitempty"`
	Failed  []LineFailure `json:"failed,omitempty"`
}

// TempKeys lists chunk keys in ordinal order.
func (m Manifest) TempKeys() []string {
	keys := make([]string, 0, len(m.Chunks))
	for _, c := range m.Chunks {
		keys = append(keys, c.Key)
	}
	return keys
}

// PodcastKey is the date-partitioned object key of the final audio.
func PodcastKey(env, slug, date string) string {
	return fmt.Sprintf("%s/%s/%s-%s.mp3", strings.ReplaceAll(date, "-", "/"), env, slug, date)
}

// TempKey is the key of the chunk holding one line.
func TempKey(podcastKey string, ordinal int) string {
	return fmt.Sprintf("tmp/%s-%d.mp3", podcastKey, ordinal)
}

// Producer owns temp chunks for the lifetime of one run.
type Producer struct {
	synth          ports.Synthesizer
	blobs          ports.BlobStore
	logger         *slog.Logger
	batchSize      int
	cleanupTimeout time.Duration
	now            func() time.Time
}

// Option tunes a Producer.
type Option func(*Producer)

// WithBatchSize sets how many lines are synthesized concurrently.
func WithBatchSize(n int) Option {
	return func(p *Producer) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithCleanupTimeout bounds each temp delete.
func WithCleanupTimeout(d time.Duration) Option {
	return func(p *Producer) {
		if d > 0 {
			p.cleanupTimeout = d
		}
	}
}

func NewProducer(synth ports.Synthesizer, blobs ports.BlobStore, logger *slog.Logger, opts ...Option) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		synth:          synth,
		blobs:          blobs,
		logger:         logger.With("component", "audio"),
		batchSize:      DefaultBatchSize,
		cleanupTimeout: DefaultCleanupTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type lineResult struct {
	chunk   *Chunk
	skipped bool
	failure *LineFailure
}

// Synthesize turns every line into a temp chunk. Batches run strictly in
// index order; lines within a batch run concurrently. A failed line is
// recorded in the manifest, a failed temp write aborts the call.
func (p *Producer) Synthesize(ctx context.Context, podcastKey string, lines []domain.DialogueLine) (Manifest, error) {
	manifest := Manifest{Key: podcastKey}

	for start := 0; start < len(lines); start += p.batchSize {
		end := min(start+p.batchSize, len(lines))
		results := make([]lineResult, end-start)

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				res, err := p.synthesizeLine(gctx, podcastKey, i, lines[i])
				if err != nil {
					return err
				}
				results[i-start] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Manifest{}, fmt.Errorf("synthesize batch at line %d: %w", start, err)
		}

		for i, res := range results {
			switch {
			case res.chunk != nil:
				manifest.Chunks = append(manifest.Chunks, *res.chunk)
			case res.skipped:
				manifest.Skipped = append(manifest.Skipped, start+i)
			case res.failure != nil:
				manifest.Failed = append(manifest.Failed, *res.failure)
			}
		}
	}

	sort.Slice(manifest.Chunks, func(i, j int) bool { return manifest.Chunks[i].Ordinal < manifest.Chunks[j].Ordinal })

	p.logger.Info("synthesized dialogue",
		"lines", len(lines),
		"chunks", len(manifest.Chunks),
		"skipped", len(manifest.Skipped),
		"failed", len(manifest.Failed),
	)
	if len(manifest.Chunks) == 0 {
		return manifest, ErrNoAudio
	}
	return manifest, nil
}

func (p *Producer) synthesizeLine(ctx context.Context, podcastKey string, ordinal int, line domain.DialogueLine) (lineResult, error) {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		p.logger.Warn("dialogue line text is empty", "index", ordinal)
		return lineResult{skipped: true}, nil
	}

	p.logger.Debug("create conversation audio", "index", ordinal, "speaker", line.Speaker, "preview", preview(text, 40))
	data, err := p.synth.Synthesize(ctx, text, line.Speaker)
	if err == nil && len(data) == 0 {
		err = errors.New("podcast audio size is 0")
	}
	if err != nil {
		if ctx.Err() != nil {
			return lineResult{}, ctx.Err()
		}
		p.logger.Error("synthesize line failed", "index", ordinal, "error", err)
		return lineResult{failure: &LineFailure{Ordinal: ordinal, Reason: err.Error()}}, nil
	}

	key := TempKey(podcastKey, ordinal)
	if err := p.blobs.Put(ctx, key, data); err != nil {
		return lineResult{}, fmt.Errorf("put temp chunk %s: %w", key, err)
	}
	p.logger.Debug("uploaded temp audio chunk", "index", ordinal, "key", key, "size", len(data))
	return lineResult{chunk: &Chunk{Ordinal: ordinal, Key: key, Size: len(data)}}, nil
}

// Assemble concatenates the manifest's chunks in ordinal order into the
// final object. Chunk sizes come from Head so the output is allocated once;
// missing chunks are skipped.
func (p *Producer) Assemble(ctx context.Context, manifest Manifest) (domain.AudioRef, error) {
	chunks := append([]Chunk(nil), manifest.Chunks...)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })

	present := make([]Chunk, 0, len(chunks))
	var size int64
	for _, c := range chunks {
		n, err := p.blobs.Head(ctx, c.Key)
		if err != nil {
			p.logMissingChunk(c, err)
			continue
		}
		present = append(present, c)
		size += n
	}

	combined := make([]byte, 0, size)
	loaded := 0
	for _, c := range present {
		data, err := p.blobs.Get(ctx, c.Key)
		if err != nil {
			p.logMissingChunk(c, err)
			continue
		}
		combined = append(combined, data...)
		loaded++
	}
	if loaded == 0 {
		return domain.AudioRef{}, ErrNoChunksLoaded
	}
	total := len(combined)

	if err := p.blobs.Put(ctx, manifest.Key, combined); err != nil {
		return domain.AudioRef{}, fmt.Errorf("put podcast %s: %w", manifest.Key, err)
	}
	p.logger.Info("combined audio chunks", "chunks", loaded, "total_length", total)

	url := p.blobs.PublicURL(manifest.Key)
	if url != "" {
		url = fmt.Sprintf("%s?t=%d", url, p.now().UnixMilli())
	}
	return domain.AudioRef{
		Key:    manifest.Key,
		URL:    url,
		Chunks: loaded,
		Bytes:  int64(total),
	}, nil
}

func (p *Producer) logMissingChunk(c Chunk, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		p.logger.Warn("audio chunk not found", "index", c.Ordinal, "key", c.Key)
		return
	}
	p.logger.Error("load audio chunk failed", "index", c.Ordinal, "key", c.Key, "error", err)
}

// Cleanup deletes every temp chunk. Each delete races a timeout; the
// outcome is logged and never returned.
func (p *Producer) Cleanup(ctx context.Context, manifest Manifest) {
	var wg sync.WaitGroup
	for _, key := range manifest.TempKeys() {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			p.deleteWithTimeout(ctx, key)
		}(key)
	}
	wg.Wait()
	p.logger.Info("cleanup completed", "chunks", len(manifest.Chunks))
}

func (p *Producer) deleteWithTimeout(ctx context.Context, key string) {
	delCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.blobs.Delete(delCtx, key) }()

	timer := time.NewTimer(p.cleanupTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			p.logger.Warn("delete temp file failed", "key", key, "error", err)
		}
	case <-timer.C:
		p.logger.Warn("delete temp file timed out", "key", key, "timeout", p.cleanupTimeout.String())
	case <-ctx.Done():
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
