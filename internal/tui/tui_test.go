package tui

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/smallcodebases/shopping/internal/listsync"
)

// The cache save command runs on its own goroutine while acknowledgements
// keep rewriting the confirmed snapshot in place, so the command must work
// from a copy taken before it is handed off.
func TestSaveCacheIsIsolatedFromLaterAcknowledgements(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctl := listsync.NewController(logger)
	cache := listsync.NewSnapshotCache(filepath.Join(t.TempDir(), "snapshot.json"))
	m := newModel(ctl, nil, cache, make(chan struct{}), logger)

	ctl.RefreshDone(&listsync.Snapshot{
		DataVersion: 5,
		Items:       []listsync.Item{{ID: 1, Name: "Milk", OnList: true}},
	})

	save := m.saveCache()
	done := make(chan struct{})
	go func() {
		defer close(done)
		save()
	}()

	for i := 0; i < 100; i++ {
		ctl.Enqueue(listsync.NewCreateItem(fmt.Sprintf("Item %d", i), true, nil))
		ctl.MutationDone(listsync.MutationResult{DataVersion: int64(6 + i), ID: int64(100 + i)})
	}
	<-done

	snap, err := cache.Load()
	if err != nil {
		t.Fatalf("loading cache: %v", err)
	}
	if snap.DataVersion != 5 || len(snap.Items) != 1 {
		t.Fatalf("saved snapshot reflects edits acknowledged after the save was issued: %+v", snap)
	}
}
