package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"DailyPodcast/internal/workflow"
)

const checkpointTable = "stage_checkpoints"

// CheckpointRepository persists stage checkpoints into sqlite or Postgres.
type CheckpointRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	driver  string
}

var _ workflow.CheckpointStore = (*CheckpointRepository)(nil)

// OpenCheckpointRepository connects to driver ("sqlite" or "postgres") and
// creates the checkpoint table when missing.
func OpenCheckpointRepository(ctx context.Context, driver, dsn string) (*CheckpointRepository, error) {
	if driver != "sqlite" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported checkpoint driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == "sqlite" {
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}

	repo := NewCheckpointRepository(db, driver)
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewCheckpointRepository wires an open sql.DB implementation.
func NewCheckpointRepository(db *sql.DB, driver string) *CheckpointRepository {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == "postgres" {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &CheckpointRepository{db: db, builder: builder, driver: driver}
}

// Close closes the underlying database connection.
func (r *CheckpointRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *CheckpointRepository) migrate(ctx context.Context) error {
	blob := "BLOB"
	if r.driver == "postgres" {
		blob = "BYTEA"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_key    TEXT NOT NULL,
		stage      TEXT NOT NULL,
		status     TEXT NOT NULL,
		payload    %s,
		hash       TEXT NOT NULL DEFAULT '',
		attempts   INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (run_key, stage)
	)`, checkpointTable, blob)

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create checkpoint table: %w", err)
	}
	return nil
}

// Load returns the checkpoint of one stage, if any.
func (r *CheckpointRepository) Load(ctx context.Context, runKey, stage string) (workflow.Checkpoint, bool, error) {
	query, args, err := r.builder.
		Select("status", "payload", "hash", "attempts", "last_error", "updated_at").
		From(checkpointTable).
		Where(sq.Eq{"run_key": runKey, "stage": stage}).
		ToSql()
	if err != nil {
		return workflow.Checkpoint{}, false, fmt.Errorf("build select: %w", err)
	}

	var (
		cp        = workflow.Checkpoint{RunKey: runKey, Stage: stage}
		status    string
		updatedAt int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&status, &cp.Payload, &cp.Hash, &cp.Attempts, &cp.LastError, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Checkpoint{}, false, nil
	}
	if err != nil {
		return workflow.Checkpoint{}, false, fmt.Errorf("query checkpoint: %w", err)
	}

	cp.Status = workflow.Status(status)
	cp.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return cp, true, nil
}

// Save upserts the checkpoint.
func (r *CheckpointRepository) Save(ctx context.Context, cp workflow.Checkpoint) error {
	updatedAt := cp.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query, args, err := r.builder.
		Insert(checkpointTable).
		Columns("run_key", "stage", "status", "payload", "hash", "attempts", "last_error", "updated_at").
		Values(cp.RunKey, cp.Stage, string(cp.Status), cp.Payload, cp.Hash, cp.Attempts, cp.LastError, updatedAt.UnixMilli()).
		Suffix(`ON CONFLICT (run_key, stage) DO UPDATE
			SET status = excluded.status,
				payload = excluded.payload,
				hash = excluded.hash,
				attempts = excluded.attempts,
				last_error = excluded.last_error,
				updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

// Clear removes every checkpoint of a run.
func (r *CheckpointRepository) Clear(ctx context.Context, runKey string) error {
	query, args, err := r.builder.
		Delete(checkpointTable).
		Where(sq.Eq{"run_key": runKey}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}
