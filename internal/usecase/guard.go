package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

const defaultLockTTL = time.Hour

// DecisionKind tells the pipeline whether to run.
type DecisionKind int

const (
	// Proceed means the lock is held by this run.
	Proceed DecisionKind = iota
	// Existing means an artifact is already committed and force is off.
	Existing
	// AlreadyRunning means another live run holds the date.
	AlreadyRunning
)

func (k DecisionKind) String() string {
	switch k {
	case Existing:
		return "existing"
	case AlreadyRunning:
		return "already_running"
	default:
		return "proceed"
	}
}

// Decision is the outcome of the idempotency check.
type Decision struct {
	Kind     DecisionKind
	Artifact domain.Artifact
	Lock     domain.Lock
	release  func(context.Context)
}

// Release drops the lock of a Proceed decision. It is safe to call on any decision.
func (d Decision) Release(ctx context.Context) {
	if d.release != nil {
		d.release(ctx)
	}
}

// Guard prevents duplicate work for a date.
type Guard struct {
	artifacts *Artifacts
	locker    ports.Locker
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewGuard(artifacts *Artifacts, locker ports.Locker, ttl time.Duration, logger *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		artifacts: artifacts,
		locker:    locker,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// TryAcquireOrGetExisting returns the committed artifact unless run.Force is
// set, otherwise places the date lock owned by run.ID.
func (g *Guard) TryAcquireOrGetExisting(ctx context.Context, run RunContext) (Decision, error) {
	existing, ok, err := g.artifacts.Load(ctx, run.ContentKey)
	if err != nil {
		return Decision{}, fmt.Errorf("check existing content: %w", err)
	}
	if ok && !run.Force {
		g.logger.Info("content already exists", "date", run.Date, "key", run.ContentKey)
		return Decision{Kind: Existing, Artifact: existing}, nil
	}
	if ok {
		g.logger.Info("content exists, regenerating on force", "date", run.Date)
	}

	if g.locker == nil {
		return Decision{Kind: Proceed}, nil
	}

	lock := domain.Lock{
		Date:      run.Date,
		Owner:     run.ID,
		ExpiresAt: g.now().Add(g.ttl),
	}
	acquired, holder, err := g.locker.TryLock(ctx, run.LockKey(), lock, g.ttl)
	if err != nil {
		return Decision{}, fmt.Errorf("acquire lock %s: %w", run.LockKey(), err)
	}
	if !acquired {
		g.logger.Info("run already in progress", "date", run.Date, "owner", holder.Owner, "expires_at", holder.ExpiresAt)
		return Decision{Kind: AlreadyRunning, Lock: holder}, nil
	}

	release := func(ctx context.Context) {
		if err := g.locker.Unlock(context.WithoutCancel(ctx), run.LockKey(), run.ID); err != nil {
			g.logger.Warn("release lock", "key", run.LockKey(), "error", err)
		}
	}
	return Decision{Kind: Proceed, Lock: lock, release: release}, nil
}
