package listsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// SnapshotCache persists the confirmed snapshot so a fresh start has data
// before the first fetch completes, and so concurrent clients on the same
// machine can pick up each other's fetches.
type SnapshotCache struct {
	path string
}

func NewSnapshotCache(path string) *SnapshotCache {
	return &SnapshotCache{path: path}
}

// Load reads the cached snapshot. A missing file is not an error; it just
// means there is nothing cached yet.
func (c *SnapshotCache) Load() (*Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot cache: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot through a temp file and a rename, so a reader
// never sees a half-written cache.
func (c *SnapshotCache) Save(snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// Watch blocks until ctx is done, calling onChange each time the cache file
// is rewritten. The directory is watched rather than the file because the
// atomic rename in Save replaces the inode.
func (c *SnapshotCache) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		return err
	}

	target := filepath.Clean(c.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
