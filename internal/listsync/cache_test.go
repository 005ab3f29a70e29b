package listsync

import (
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestSnapshotCacheRoundTrip(t *testing.T) {
	cache := NewSnapshotCache(filepath.Join(t.TempDir(), "snapshot.json"))

	// Nothing cached yet.
	snap, err := cache.Load()
	assert.Equal(t, err, nil)
	if snap != nil {
		t.Fatalf("expected no cached snapshot, got %+v", snap)
	}

	want := confirmedFixture(5)
	assert.Equal(t, cache.Save(want), nil)

	got, err := cache.Load()
	assert.Equal(t, err, nil)
	assert.Equal(t, got, want)
}

func TestSnapshotCacheOverwrite(t *testing.T) {
	cache := NewSnapshotCache(filepath.Join(t.TempDir(), "snapshot.json"))

	assert.Equal(t, cache.Save(confirmedFixture(5)), nil)
	assert.Equal(t, cache.Save(confirmedFixture(6)), nil)

	got, err := cache.Load()
	assert.Equal(t, err, nil)
	assert.Equal(t, got.DataVersion, int64(6))
}
