package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Engine runs named stages for a single run key, skipping stages whose
// checkpoint is already committed.
type Engine struct {
	store  CheckpointStore
	runKey string
	logger *slog.Logger
	now    func() time.Time
	sleep  func(time.Duration)
}

// NewEngine binds a checkpoint store to one run key.
func NewEngine(store CheckpointStore, runKey string, logger *slog.Logger) *Engine {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		runKey: runKey,
		logger: logger,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// RunKey returns the key checkpoints are stored under.
func (e *Engine) RunKey() string {
	return e.runKey
}

// Lookup reads the checkpoint of a stage as a StageResult.
func Lookup[T any](ctx context.Context, e *Engine, stage string) (StageResult[T], error) {
	cp, ok, err := e.store.Load(ctx, e.runKey, stage)
	if err != nil {
		return Pending[T](), fmt.Errorf("load checkpoint %s: %w", stage, err)
	}
	if !ok {
		return Pending[T](), nil
	}

	switch cp.Status {
	case StatusCompleted:
		var data T
		if err := json.Unmarshal(cp.Payload, &data); err != nil {
			e.logger.Warn("discard undecodable checkpoint", "stage", stage, "error", err)
			return Pending[T](), nil
		}
		return Completed(data), nil
	case StatusFailed:
		return Failed[T](cp.LastError), nil
	default:
		return Pending[T](), nil
	}
}

// Do executes fn as a checkpointed stage. A committed checkpoint short-circuits
// execution; otherwise fn runs under the policy's timeout and retry budget.
func Do[T any](ctx context.Context, e *Engine, stage string, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	return DoIf(ctx, e, stage, policy, fn, nil)
}

// DoIf is Do with a completeness check. A value for which complete reports
// false is returned to the caller but not committed, so the stage runs again
// on the next attempt of the run. A nil complete accepts every value.
func DoIf[T any](ctx context.Context, e *Engine, stage string, policy Policy, fn func(context.Context) (T, error), complete func(T) bool) (T, error) {
	var zero T

	prior, err := Lookup[T](ctx, e, stage)
	if err != nil {
		e.logger.Warn("checkpoint lookup failed, running stage", "stage", stage, "error", err)
	}
	switch prior.Status {
	case StatusCompleted:
		e.logger.Info("stage already committed", "stage", stage)
		return prior.Data, nil
	case StatusFailed:
		e.logger.Info("re-running previously failed stage", "stage", stage, "reason", prior.Reason)
	}

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= policy.Retries+1; attempt++ {
		attempts = attempt
		started := e.now()
		value, runErr := runAttempt(ctx, stage, policy.Timeout, fn)
		if runErr == nil {
			e.logger.Info("stage completed", "stage", stage, "attempt", attempt, "duration", e.now().Sub(started).String())
			if complete != nil && !complete(value) {
				e.logger.Warn("stage result incomplete, not committed", "stage", stage)
				return value, nil
			}
			e.commit(ctx, stage, value, attempt)
			return value, nil
		}

		lastErr = runErr
		if ctx.Err() != nil || attempt > policy.Retries {
			break
		}

		delay := policy.Backoff(attempt)
		e.logger.Warn("stage attempt failed, retrying",
			"stage", stage,
			"attempt", attempt,
			"retry_in", delay.String(),
			"error", runErr,
		)
		if err := wait(ctx, delay); err != nil {
			lastErr = fmt.Errorf("%w (retry aborted: %v)", runErr, err)
			break
		}
	}

	e.logger.Error("stage failed", "stage", stage, "attempts", attempts, "error", lastErr)
	failed := Checkpoint{
		RunKey:    e.runKey,
		Stage:     stage,
		Status:    StatusFailed,
		Attempts:  attempts,
		LastError: lastErr.Error(),
		UpdatedAt: e.now().UTC(),
	}
	if err := e.store.Save(context.WithoutCancel(ctx), failed); err != nil {
		e.logger.Warn("persist stage failure", "stage", stage, "error", err)
	}
	return zero, &StageError{Stage: stage, Attempts: attempts, Err: lastErr}
}

// Pause sleeps for d unless the stage that follows it is already committed.
// The sleep ignores cancellation; callers keep d short.
func (e *Engine) Pause(ctx context.Context, d time.Duration, before string) {
	if d <= 0 {
		return
	}
	if cp, ok, err := e.store.Load(ctx, e.runKey, before); err == nil && ok && cp.Status == StatusCompleted {
		return
	}
	e.logger.Debug("pause before stage", "stage", before, "duration", d.String())
	e.sleep(d)
}

// Reset drops every checkpoint of the run.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.Clear(ctx, e.runKey); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}
	return nil
}

func (e *Engine) commit(ctx context.Context, stage string, value any, attempts int) {
	payload, err := json.Marshal(value)
	if err != nil {
		e.logger.Warn("encode stage output", "stage", stage, "error", err)
		return
	}
	sum := sha256.Sum256(payload)
	cp := Checkpoint{
		RunKey:    e.runKey,
		Stage:     stage,
		Status:    StatusCompleted,
		Payload:   payload,
		Hash:      hex.EncodeToString(sum[:]),
		Attempts:  attempts,
		UpdatedAt: e.now().UTC(),
	}
	if err := e.store.Save(ctx, cp); err != nil {
		// the stage will simply run again on resume
		e.logger.Warn("persist checkpoint", "stage", stage, "error", err)
	}
}

func runAttempt[T any](ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, fmt.Errorf("stage %q: nothing to run", stage)
	}

	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("stage %q panicked: %v", stage, r)}
			}
		}()
		v, err := fn(attemptCtx)
		ch <- result{value: v, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		return zero, fmt.Errorf("stage %q timed out: %w", stage, attemptCtx.Err())
	case r := <-ch:
		return r.value, r.err
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
