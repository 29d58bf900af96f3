package workflow

import (
	"context"
	"time"
)

// Status is the recorded state of one stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StageResult is the tagged view of a stage checkpoint: Completed carries
// Data, Failed carries Reason, Pending carries nothing.
type StageResult[T any] struct {
	Status Status
	Data   T
	Reason string
}

func Completed[T any](data T) StageResult[T] {
	return StageResult[T]{Status: StatusCompleted, Data: data}
}

func Pending[T any]() StageResult[T] {
	return StageResult[T]{Status: StatusPending}
}

func Failed[T any](reason string) StageResult[T] {
	return StageResult[T]{Status: StatusFailed, Reason: reason}
}

// Checkpoint is the durable record of a stage attempt.
type Checkpoint struct {
	RunKey    string
	Stage     string
	Status    Status
	Payload   []byte
	Hash      string
	Attempts  int
	LastError string
	UpdatedAt time.Time
}

// CheckpointStore persists checkpoints keyed by (run key, stage).
type CheckpointStore interface {
	Load(ctx context.Context, runKey, stage string) (Checkpoint, bool, error)
	Save(ctx context.Context, cp Checkpoint) error
	Clear(ctx context.Context, runKey string) error
}
