package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

// Artifacts reads and writes the committed artifact of a date.
type Artifacts struct {
	kv ports.KVStore
}

func NewArtifacts(kv ports.KVStore) *Artifacts {
	return &Artifacts{kv: kv}
}

// Load returns the artifact stored under key; ok is false when none exists.
func (a *Artifacts) Load(ctx context.Context, key string) (domain.Artifact, bool, error) {
	raw, err := a.kv.Get(ctx, key)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.Artifact{}, false, nil
	}
	if err != nil {
		return domain.Artifact{}, false, fmt.Errorf("get artifact %s: %w", key, err)
	}

	var artifact domain.Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return domain.Artifact{}, false, fmt.Errorf("decode artifact %s: %w", key, err)
	}
	return artifact, true, nil
}

// Save writes the artifact without expiry. Concurrent writers race and the
// last write wins.
func (a *Artifacts) Save(ctx context.Context, key string, artifact domain.Artifact) error {
	raw, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := a.kv.Put(ctx, key, raw, 0); err != nil {
		return fmt.Errorf("put artifact %s: %w", key, err)
	}
	return nil
}
