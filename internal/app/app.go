package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"DailyPodcast/internal/audio"
	"DailyPodcast/internal/config"
	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/infrastructure/fetcher"
	"DailyPodcast/internal/infrastructure/httpapi"
	"DailyPodcast/internal/infrastructure/llm"
	"DailyPodcast/internal/infrastructure/parser"
	"DailyPodcast/internal/infrastructure/scheduler"
	"DailyPodcast/internal/infrastructure/storage"
	"DailyPodcast/internal/infrastructure/telegram"
	"DailyPodcast/internal/infrastructure/tts"
	"DailyPodcast/internal/logging"
	"DailyPodcast/internal/ports"
	"DailyPodcast/internal/scanner"
	"DailyPodcast/internal/usecase"
	"DailyPodcast/internal/workflow"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	artifacts *usecase.Artifacts
	closers   []func() error
}

// New builds adapters selected by cfg and the pipeline on top of them.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	stores, err := a.buildStores(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	contentFetcher := a.buildFetchers(httpClient)

	registry := scanner.NewRegistry()
	pages := parser.NewPageLoader(baseLogger.With("component", "pages"),
		contentFetcher, fetcher.NewDirect(httpClient))
	registry.Register(parser.NewHackerNewsScanner(pages))
	registry.Register(parser.NewGitHubTrendingScanner(pages))
	registry.Register(parser.NewProductHuntScanner(pages))
	registry.Register(parser.NewDevToScanner(pages))
	source := parser.NewStrategySource(registry, cfg.Sources, baseLogger.With("component", "source"))

	generator, thinking := a.buildGenerators()

	producer := audio.NewProducer(a.buildSynthesizer(httpClient), stores.blobs, baseLogger,
		audio.WithBatchSize(cfg.Workflow.AudioBatchSize),
		audio.WithCleanupTimeout(cfg.Workflow.CleanupTimeout),
	)

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	a.artifacts = usecase.NewArtifacts(stores.kv)
	policy := workflow.Policy{
		Retries:  cfg.Workflow.Retries,
		Delay:    cfg.Workflow.Delay,
		MaxDelay: cfg.Workflow.MaxDelay,
		Timeout:  cfg.Workflow.Timeout,
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:      source,
		Contents:    usecase.NewContentStage(contentFetcher, stores.kv, cfg.Workflow.CacheTTL, cfg.LLM.MaxTokens, baseLogger.With("component", "contents")),
		Text:        usecase.NewTextStages(generator, thinking, cfg.LLM.MaxTokens, cfg.LLM.MaxCompletionTokens, baseLogger.With("component", "text")),
		Audio:       producer,
		Artifacts:   a.artifacts,
		Guard:       usecase.NewGuard(a.artifacts, stores.locker, cfg.Workflow.LockTTL, baseLogger.With("component", "guard")),
		Checkpoints: stores.checkpoints,
		Notifier:    notifier,
		Logger:      baseLogger.With("component", "pipeline"),
		Settings: usecase.Settings{
			Env:          cfg.Environment,
			Slug:         cfg.Slug,
			PodcastTitle: cfg.PodcastTitle,
			BreakTime:    cfg.BreakTime(),
			Limits:       cfg.StoryLimits(),
			Policy:       policy,
			LongPolicy:   policy.WithTimeout(cfg.Workflow.LongTimeout),
			Labels:       speakerLabels(cfg.SpeakerLabels, baseLogger),
		},
	})
	return a, nil
}

// speakerLabels maps configured host names onto speakers. Unknown keys are
// logged and ignored.
func speakerLabels(raw map[string]string, logger *slog.Logger) map[domain.Speaker]string {
	if len(raw) == 0 {
		return nil
	}
	labels := make(map[domain.Speaker]string, len(raw))
	for key, label := range raw {
		speaker, ok := domain.ParseSpeaker(key)
		if !ok || label == "" {
			logger.Warn("ignore speaker label", "speaker", key, "label", label)
			continue
		}
		labels[speaker] = label
	}
	return labels
}

// Run performs one synchronous pipeline execution.
func (a *Application) Run(ctx context.Context, day time.Time, force bool) (usecase.Outcome, error) {
	return a.pipeline.Run(ctx, usecase.RunRequest{Date: day, Force: force})
}

// Today is the current calendar date in the scheduler timezone.
func (a *Application) Today() time.Time {
	now := time.Now().In(a.cfg.Scheduler.Location())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Artifact loads the committed artifact of a date.
func (a *Application) Artifact(ctx context.Context, day time.Time) (domain.Artifact, bool, error) {
	key := usecase.ContentKey(a.cfg.Environment, a.cfg.Slug, day.Format(usecase.DateLayout))
	return a.artifacts.Load(ctx, key)
}

// Serve runs the cron schedule and the HTTP trigger surface until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	loc := a.cfg.Scheduler.Location()

	var sched *usecase.Scheduler
	if a.cfg.Scheduler.Enabled {
		driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, loc, a.logger.With("component", "scheduler"))
		sched = usecase.NewScheduler(driver, a.pipeline, loc, a.logger.With("component", "scheduler"))
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	api := httpapi.NewServer(ctx, a.pipeline, loc, a.logger.With("component", "http"))
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler shutdown", "error", err)
		}
	}
	api.Wait()
	return serveErr
}

// Close releases store connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type stores struct {
	kv          ports.KVStore
	blobs       ports.BlobStore
	locker      ports.Locker
	checkpoints workflow.CheckpointStore
}

func (a *Application) buildStores(ctx context.Context) (stores, error) {
	cfg := a.cfg.Storage
	var (
		out   stores
		redis *storage.RedisStore
	)
	connectRedis := func() (*storage.RedisStore, error) {
		if redis != nil {
			return redis, nil
		}
		if cfg.RedisURL == "" {
			return nil, errors.New("redis url is not configured")
		}
		store, err := storage.NewRedisStore(ctx, cfg.RedisURL, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		redis = store
		return store, nil
	}

	switch cfg.KV {
	case "redis":
		store, err := connectRedis()
		if err != nil {
			return out, fmt.Errorf("kv store: %w", err)
		}
		out.kv = store
	default:
		out.kv = storage.NewMemoryKV()
	}

	switch cfg.Lock {
	case "redis":
		store, err := connectRedis()
		if err != nil {
			return out, fmt.Errorf("lock store: %w", err)
		}
		out.locker = store
	case "memory":
		out.locker = storage.NewMemoryLocker()
	default:
		locker, err := storage.NewFileLocker(cfg.LockDir)
		if err != nil {
			return out, fmt.Errorf("lock store: %w", err)
		}
		out.locker = locker
	}

	switch cfg.Blob {
	case "gcs":
		blobs, err := storage.NewGCSBlobStore(ctx, storage.GCSConfig{
			Bucket:        cfg.GCS.Bucket,
			PublicBaseURL: cfg.PublicBaseURL,
			Endpoint:      cfg.GCS.Endpoint,
		}, a.logger)
		if err != nil {
			return out, fmt.Errorf("blob store: %w", err)
		}
		a.closers = append(a.closers, blobs.Close)
		out.blobs = blobs
	case "memory":
		out.blobs = storage.NewMemoryBlobs(cfg.PublicBaseURL)
	default:
		blobs, err := storage.NewLocalBlobStore(cfg.LocalDir, cfg.PublicBaseURL)
		if err != nil {
			return out, fmt.Errorf("blob store: %w", err)
		}
		out.blobs = blobs
	}

	driver, dsn := cfg.Checkpoints.Driver, cfg.Checkpoints.DSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}
	switch driver {
	case "memory":
		out.checkpoints = workflow.NewMemoryStore()
	default:
		if driver == "sqlite" {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return out, fmt.Errorf("create checkpoint dir: %w", err)
				}
			}
		}
		repo, err := storage.OpenCheckpointRepository(ctx, driver, dsn)
		if err != nil {
			return out, fmt.Errorf("checkpoint store: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		out.checkpoints = repo
	}

	a.logger.Info("stores initialized", "kv", cfg.KV, "lock", cfg.Lock, "blob", cfg.Blob, "checkpoints", driver)
	return out, nil
}

// buildFetchers returns the content chain: Jina first, Firecrawl when a key is set.
func (a *Application) buildFetchers(client *http.Client) ports.ContentFetcher {
	fc := a.cfg.Fetchers
	fetchers := []ports.ContentFetcher{fetcher.NewJinaReader(client, fc.JinaURL, fc.JinaKey)}
	if fc.FirecrawlKey != "" {
		fetchers = append(fetchers, fetcher.NewFirecrawl(client, fc.FirecrawlURL, fc.FirecrawlKey))
	}
	return fetcher.NewChain(a.logger.With("component", "fetcher"), fetchers...)
}

func (a *Application) buildGenerators() (ports.TextGenerator, ports.TextGenerator) {
	cfg := a.cfg.LLM
	if cfg.Provider == "anthropic" {
		client := llm.NewClaudeClient(cfg, cfg.AnthropicModel)
		return client, client
	}

	generator := llm.NewChatGPTClient(cfg, cfg.Model)
	if cfg.ThinkingModel == "" || cfg.ThinkingModel == cfg.Model {
		return generator, generator
	}
	return generator, llm.NewChatGPTClient(cfg, cfg.ThinkingModel)
}

func (a *Application) buildSynthesizer(client *http.Client) ports.Synthesizer {
	if a.cfg.TTS.Provider == "minimax" {
		return tts.NewMiniMax(client, a.cfg.TTS)
	}
	return tts.NewOpenAISpeech(a.cfg.TTS)
}
