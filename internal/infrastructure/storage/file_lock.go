package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/ports"
)

// FileLocker holds per-key flock locks under a directory. The OS releases a
// lock when the holding process dies. Within a process, a lock whose recorded
// ExpiresAt has passed is handed to the next caller.
type FileLocker struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	held map[string]*flock.Flock
}

var _ ports.Locker = (*FileLocker)(nil)

func NewFileLocker(dir string) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &FileLocker{dir: dir, now: time.Now, held: make(map[string]*flock.Flock)}, nil
}

func (f *FileLocker) path(key string) string {
	name := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(key)
	return filepath.Join(f.dir, name+".lock")
}

func (f *FileLocker) infoPath(key string) string {
	return f.path(key) + ".json"
}

func (f *FileLocker) TryLock(_ context.Context, key string, lock domain.Lock, _ time.Duration) (bool, domain.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.held[key]; ok {
		holder := f.readInfo(key)
		if holder.ExpiresAt.IsZero() || holder.Live(f.now()) {
			return false, holder, nil
		}
		// the flock stays with this process, only the holder changes
		if err := f.writeInfo(key, lock); err != nil {
			return false, domain.Lock{}, err
		}
		return true, lock, nil
	}

	fl := flock.New(f.path(key))
	ok, err := fl.TryLock()
	if err != nil {
		return false, domain.Lock{}, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return false, f.readInfo(key), nil
	}

	if err := f.writeInfo(key, lock); err != nil {
		_ = fl.Unlock()
		return false, domain.Lock{}, err
	}
	f.held[key] = fl
	return true, lock, nil
}

func (f *FileLocker) writeInfo(key string, lock domain.Lock) error {
	payload, err := json.Marshal(lock)
	if err == nil {
		err = os.WriteFile(f.infoPath(key), payload, 0o644)
	}
	if err != nil {
		return fmt.Errorf("record lock holder: %w", err)
	}
	return nil
}

func (f *FileLocker) Unlock(_ context.Context, key, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl, ok := f.held[key]
	if !ok {
		return nil
	}
	if info := f.readInfo(key); info.Owner != "" && info.Owner != owner {
		return nil
	}
	_ = os.Remove(f.infoPath(key))
	delete(f.held, key)
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

func (f *FileLocker) readInfo(key string) domain.Lock {
	var lock domain.Lock
	raw, err := os.ReadFile(f.infoPath(key))
	if err != nil {
		return lock
	}
	_ = json.Unmarshal(raw, &lock)
	return lock
}
