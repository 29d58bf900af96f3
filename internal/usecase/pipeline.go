package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"DailyPodcast/internal/audio"
	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
	"DailyPodcast/internal/workflow"
)

// Stage names. They double as checkpoint keys, so renaming one discards
// committed progress of in-flight runs.
const (
	stageContentsFormat = "get %s story contents"
	stageStoriesFormat  = "get all stories %s"
	StageCheckExisting  = "check existing content"
	StageSummarize      = "summarize all stories"
	StageScript         = "generate podcast script"
	StageBlog           = "create blog content"
	StageIntro          = "create intro content"
	StageAudio          = "create podcast audio files"
	StageConcat         = "concat audio files"
	StageCleanup        = "delete temp files"
	StageSave           = "save content to kv"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusSkipped        Status = "skipped"
	StatusAlreadyRunning Status = "already_running"
	StatusFailed         Status = "failed"
)

// RunRequest asks for the artifact of one date.
type RunRequest struct {
	Date  time.Time
	Force bool
	// ID names the run; a new uuid is used when empty.
	ID string
}

// Outcome reports how a run ended. Skipped and already-running runs are not errors.
type Outcome struct {
	Status   Status
	Artifact domain.Artifact
	Lock     domain.Lock
	// Stage is the failing stage of a failed run.
	Stage string
}

// Settings are the per-deployment values of the pipeline.
type Settings struct {
	Env          string
	Slug         string
	PodcastTitle string
	BreakTime    time.Duration
	Limits       map[string]int
	Policy       workflow.Policy
	LongPolicy   workflow.Policy
	Labels       map[domain.Speaker]string
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.StorySource
	Contents    *ContentStage
	Text        *TextStages
	Audio       *audio.Producer
	Artifacts   *Artifacts
	Guard       *Guard
	Checkpoints workflow.CheckpointStore
	Notifier    ports.Notifier
	Logger      *slog.Logger
	Settings    Settings
}

// Pipeline implements the daily podcast workflow.
type Pipeline struct {
	source      ports.StorySource
	contents    *ContentStage
	text        *TextStages
	audio       *audio.Producer
	artifacts   *Artifacts
	guard       *Guard
	checkpoints workflow.CheckpointStore
	notifier    ports.Notifier
	logger      *slog.Logger
	settings    Settings
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings := deps.Settings
	if settings.Policy == (workflow.Policy{}) {
		settings.Policy = workflow.DefaultPolicy()
	}
	if settings.LongPolicy == (workflow.Policy{}) {
		settings.LongPolicy = settings.Policy.WithTimeout(12 * time.Minute)
	}
	return &Pipeline{
		source:      deps.Source,
		contents:    deps.Contents,
		text:        deps.Text,
		audio:       deps.Audio,
		artifacts:   deps.Artifacts,
		guard:       deps.Guard,
		checkpoints: deps.Checkpoints,
		notifier:    deps.Notifier,
		logger:      logger,
		settings:    settings,
		now:         time.Now,
	}
}

// NewRun derives the run context of a request.
func (p *Pipeline) NewRun(req RunRequest) RunContext {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	return NewRunContext(id, p.settings.Env, p.settings.Slug, req.Date, req.Force, p.settings.Limits)
}

// Run produces and commits the artifact of req.Date, resuming from any
// committed stage checkpoints of an earlier attempt.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (Outcome, error) {
	run := p.NewRun(req)
	logger := p.logger.With("run_id", run.ID, "date", run.Date)

	decision, err := p.guard.TryAcquireOrGetExisting(ctx, run)
	if err != nil {
		return Outcome{Status: StatusFailed, Stage: StageCheckExisting}, err
	}
	switch decision.Kind {
	case Existing:
		logger.Info("skipping workflow, content already exists")
		return Outcome{Status: StatusSkipped, Artifact: decision.Artifact}, nil
	case AlreadyRunning:
		return Outcome{Status: StatusAlreadyRunning, Lock: decision.Lock}, nil
	}
	defer decision.Release(ctx)

	engine := workflow.NewEngine(p.checkpoints, run.ContentKey, logger)
	if run.Force {
		if err := engine.Reset(ctx); err != nil {
			logger.Warn("clear stage checkpoints before forced run", "error", err)
		}
	}
	artifact, err := p.execute(ctx, engine, run, logger)
	if err != nil {
		stage := ""
		var stageErr *workflow.StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		p.notify(ctx, logger, fmt.Sprintf("%s %s failed at stage %q: %v", p.settings.PodcastTitle, run.Date, stage, err))
		return Outcome{Status: StatusFailed, Stage: stage}, err
	}

	if err := engine.Reset(ctx); err != nil {
		logger.Warn("clear stage checkpoints", "error", err)
	}
	p.notify(ctx, logger, digest(artifact))
	return Outcome{Status: StatusSucceeded, Artifact: artifact}, nil
}

func (p *Pipeline) execute(ctx context.Context, engine *workflow.Engine, run RunContext, logger *slog.Logger) (domain.Artifact, error) {
	policy, long := p.settings.Policy, p.settings.LongPolicy

	stories, err := workflow.Do(ctx, engine, fmt.Sprintf(stageStoriesFormat, run.Date), policy, func(ctx context.Context) ([]domain.Story, error) {
		return p.source.GetAllStories(ctx, run.Day, run.Limits())
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	order, groups := domain.GroupBySource(stories)
	var contents []domain.StoryContent
	for _, source := range order {
		group := groups[source]
		fetched, err := workflow.DoIf(ctx, engine, fmt.Sprintf(stageContentsFormat, source), policy, func(ctx context.Context) ([]domain.StoryContent, error) {
			return p.contents.FetchGroup(ctx, run, source, group)
		}, func(fetched []domain.StoryContent) bool {
			return len(fetched) == len(group)
		})
		if err != nil {
			return domain.Artifact{}, err
		}
		contents = append(contents, fetched...)
	}

	summaries, err := workflow.Do(ctx, engine, StageSummarize, long, func(ctx context.Context) ([]string, error) {
		return p.text.Summarize(ctx, contents)
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	podcastScript, err := workflow.Do(ctx, engine, StageScript, policy, func(ctx context.Context) (domain.PodcastScript, error) {
		return p.text.GenerateScript(ctx, run.Date, stories, summaries)
	})
	if err != nil {
		return domain.Artifact{}, err
	}
	podcastContent := podcastScript.Flatten(p.settings.Labels)

	engine.Pause(ctx, p.settings.BreakTime, StageBlog)
	blog, err := workflow.Do(ctx, engine, StageBlog, policy, func(ctx context.Context) (string, error) {
		return p.text.CreateBlog(ctx, stories, summaries)
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	engine.Pause(ctx, p.settings.BreakTime, StageIntro)
	intro, err := workflow.Do(ctx, engine, StageIntro, policy, func(ctx context.Context) (string, error) {
		return p.text.CreateIntro(ctx, podcastContent)
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	manifest, err := workflow.Do(ctx, engine, StageAudio, long, func(ctx context.Context) (audio.Manifest, error) {
		return p.audio.Synthesize(ctx, run.PodcastKey, podcastScript.Dialogue)
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	ref, err := workflow.Do(ctx, engine, StageConcat, policy, func(ctx context.Context) (domain.AudioRef, error) {
		return p.audio.Assemble(ctx, manifest)
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	if _, err := workflow.Do(ctx, engine, StageCleanup, policy, func(ctx context.Context) (string, error) {
		p.audio.Cleanup(ctx, manifest)
		return "cleanup completed", nil
	}); err != nil {
		return domain.Artifact{}, err
	}

	artifact := domain.Artifact{
		Date:           run.Date,
		Title:          fmt.Sprintf("%s %s", p.settings.PodcastTitle, run.Date),
		Stories:        stories,
		PodcastContent: podcastContent,
		PodcastScript:  podcastScript,
		BlogContent:    blog,
		IntroContent:   intro,
		Audio:          ref.Key,
		AudioRef:       ref,
		UpdatedAt:      p.now().UnixMilli(),
	}
	saved, err := workflow.Do(ctx, engine, StageSave, policy, func(ctx context.Context) (domain.Artifact, error) {
		if err := p.artifacts.Save(ctx, run.ContentKey, artifact); err != nil {
			return domain.Artifact{}, err
		}
		return artifact, nil
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	logger.Info("save content to kv success", "key", run.ContentKey, "audio", ref.Key, "lines", len(podcastScript.Dialogue))
	return saved, nil
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, message string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishDigest(context.WithoutCancel(ctx), message); err != nil {
		logger.Warn("publish digest", "error", err)
	}
}

func digest(artifact domain.Artifact) string {
	message := artifact.Title
	if artifact.IntroContent != "" {
		message += "\n\n" + artifact.IntroContent
	}
	if artifact.AudioRef.URL != "" {
		message += "\n\n" + artifact.AudioRef.URL
	}
	return message
}
