package listsync

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-playground/assert/v2"
)

func testController() *Controller {
	return NewController(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func confirmedFixture(version int64) *Snapshot {
	section := int64(1)
	return &Snapshot{
		DataVersion: version,
		Items: []Item{
			{ID: 1, Name: "Milk", OnList: false},
			{ID: 2, Name: "Eggs", OnList: true},
		},
		Stores:   []Store{{ID: 1, Name: "Corner Shop"}},
		Sections: []Section{{ID: 1, Store: 1, Position: 0, Name: "Dairy"}},
		ItemStores: []ItemStore{
			{Item: 1, Store: 1, Sold: true, Section: &section},
		},
	}
}

func TestStartFetchesFullState(t *testing.T) {
	c := testController()
	effects := c.Start()

	assert.Equal(t, len(effects), 1)
	fetch, ok := effects[0].(FetchEffect)
	assert.Equal(t, ok, true)
	assert.Equal(t, fetch.IfVersion, int64(-1))

	effects = c.RefreshDone(confirmedFixture(5))
	assert.Equal(t, len(effects), 0)
	assert.Equal(t, c.Version(), int64(5))
}

func TestSingleFlight(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	first := c.Enqueue(&ItemOn{Item: 1})
	assert.Equal(t, len(first), 1)

	// A second mutation waits its turn.
	second := c.Enqueue(&ItemOff{Item: 2})
	assert.Equal(t, len(second), 0)
	assert.Equal(t, c.QueueLen(), 2)

	// Acknowledging the first dispatches the second.
	next := c.MutationDone(MutationResult{DataVersion: 6})
	assert.Equal(t, len(next), 1)
	send, ok := next[0].(SendEffect)
	assert.Equal(t, ok, true)
	assert.Equal(t, send.Mutation.Describe(), (&ItemOff{Item: 2}).Describe())
}

func TestAcknowledgedVersionOnePastConfirmedAppliesPermanently(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	c.Enqueue(&ItemOn{Item: 1})
	effects := c.MutationDone(MutationResult{DataVersion: 6})

	assert.Equal(t, len(effects), 0)
	assert.Equal(t, c.Version(), int64(6))
	it, _ := c.Confirmed().Item(1)
	assert.Equal(t, it.OnList, true)
	assert.Equal(t, c.QueueLen(), 0)
}

func TestAcknowledgementCarriesServerAssignedIDs(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	store := int64(1)
	c.Enqueue(NewCreateItem("Butter", true, &store))
	effects := c.MutationDone(MutationResult{DataVersion: 6, ID: 42})
	assert.Equal(t, len(effects), 0)

	// The confirmed item exists under the id the server assigned, not a
	// locally invented one.
	it, ok := c.Confirmed().Item(42)
	assert.Equal(t, ok, true)
	assert.Equal(t, it.Name, "Butter")
	is, ok := c.Confirmed().Association(42, 1)
	assert.Equal(t, ok, true)
	assert.Equal(t, is.Sold, true)

	c.Enqueue(NewCreateSection(1, "Frozen"))
	c.MutationDone(MutationResult{DataVersion: 7, ID: 9, Position: 1})
	sec, ok := c.Confirmed().Section(9)
	assert.Equal(t, ok, true)
	assert.Equal(t, sec.Position, int64(1))
	assert.Equal(t, c.Version(), int64(7))
}

func TestAcknowledgedVersionJumpQueuesRefreshFirst(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	c.Enqueue(&ItemOn{Item: 1})
	c.Enqueue(&ItemOff{Item: 2})

	// Someone else's edits landed between ours: version 8, not 6.
	effects := c.MutationDone(MutationResult{DataVersion: 8})

	assert.Equal(t, len(effects), 1)
	fetch, ok := effects[0].(FetchEffect)
	assert.Equal(t, ok, true)
	assert.Equal(t, fetch.IfVersion, int64(5))

	// Our mutation was not folded in; the refresh carries the truth.
	assert.Equal(t, c.Version(), int64(5))
	it, _ := c.Confirmed().Item(1)
	assert.Equal(t, it.OnList, false)

	// After the refresh lands, the queued mutation goes out.
	refreshed := confirmedFixture(8)
	refreshed.Items[0].OnList = true
	effects = c.RefreshDone(refreshed)
	assert.Equal(t, len(effects), 1)
	_, ok = effects[0].(SendEffect)
	assert.Equal(t, ok, true)
	assert.Equal(t, c.Version(), int64(8))
}

func TestConflictDropsMutationAndRefreshes(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	c.Enqueue(NewRenameItem(1, "Eggs"))
	effects := c.MutationFailed(ErrConflict)

	assert.Equal(t, len(effects), 1)
	_, ok := effects[0].(FetchEffect)
	assert.Equal(t, ok, true)
	assert.NotEqual(t, c.LastError(), "")

	// The rejected mutation is gone for good.
	c.RefreshDone(confirmedFixture(7))
	assert.Equal(t, c.QueueLen(), 0)
}

func TestEffectiveReplaysPendingOverConfirmed(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))
	c.Enqueue(&ItemOn{Item: 1})

	effective := c.Effective()
	it, _ := effective.Item(1)
	assert.Equal(t, it.OnList, true)

	// The confirmed snapshot is untouched.
	confirmed, _ := c.Confirmed().Item(1)
	assert.Equal(t, confirmed.OnList, false)

	// Projection is deterministic.
	again, _ := c.Effective().Item(1)
	assert.Equal(t, again, it)
}

func TestRedundantMutationsAreDropped(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	cases := []Mutation{
		&ItemOn{Item: 2},           // already on the list
		&ItemOff{Item: 1},          // already off
		&DeleteItem{ID: 99},        // nothing to delete
		NewRenameItem(1, "Milk"),   // same name
		NewRenameItem(1, " Milk "), // same name after trimming
	}
	for _, m := range cases {
		assert.Equal(t, len(c.Enqueue(m)), 0)
	}
	assert.Equal(t, c.QueueLen(), 0)
}

func TestRedundancyChecksEffectiveStateNotConfirmed(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	c.Enqueue(&ItemOn{Item: 1})
	// Against the confirmed snapshot this would be fine, but the pending
	// mutation already turns the item on.
	effects := c.Enqueue(&ItemOn{Item: 1})
	assert.Equal(t, len(effects), 0)
	assert.Equal(t, c.QueueLen(), 1)
}

func TestRefreshCoalesces(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	c.Enqueue(&ItemOn{Item: 1})
	assert.Equal(t, len(c.Refresh()), 0)
	assert.Equal(t, len(c.Refresh()), 0)
	assert.Equal(t, c.QueueLen(), 2)

	// The refresh goes out ahead of the remaining queue.
	effects := c.MutationDone(MutationResult{DataVersion: 6})
	assert.Equal(t, len(effects), 1)
	_, ok := effects[0].(FetchEffect)
	assert.Equal(t, ok, true)
}

func TestRefreshUnchangedKeepsSnapshot(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	c.Refresh()
	effects := c.RefreshUnchanged()
	assert.Equal(t, len(effects), 0)
	assert.Equal(t, c.Version(), int64(5))
}

func TestAdoptSnapshot(t *testing.T) {
	c := testController()
	c.RefreshDone(confirmedFixture(5))

	// Older or equal versions are ignored.
	assert.Equal(t, c.AdoptSnapshot(confirmedFixture(5)), false)

	// Newer snapshots are adopted while idle.
	assert.Equal(t, c.AdoptSnapshot(confirmedFixture(6)), true)
	assert.Equal(t, c.Version(), int64(6))

	// Never while work is queued.
	c.Enqueue(&ItemOn{Item: 1})
	assert.Equal(t, c.AdoptSnapshot(confirmedFixture(9)), false)
}

// fakeRemote scripts the server side of the wire for end-to-end engine runs.
type fakeRemote struct {
	version int64
	nextID  int64
	snap    func() *Snapshot
	calls   []string
}

func (f *fakeRemote) FetchAll(_ context.Context, ifVersion int64) (*Snapshot, bool, error) {
	f.calls = append(f.calls, "fetch")
	if ifVersion == f.version {
		return nil, true, nil
	}
	snap := f.snap()
	snap.DataVersion = f.version
	return snap, false, nil
}

func (f *fakeRemote) Mutate(_ context.Context, endpoint string, _ any) (MutationResult, error) {
	f.calls = append(f.calls, endpoint)
	f.version++
	f.nextID++
	return MutationResult{DataVersion: f.version, ID: f.nextID}, nil
}

// runEffects drives the controller the way the UI loop does, feeding each
// effect's outcome straight back in.
func runEffects(t *testing.T, c *Controller, rc RemoteClient, effects []Effect) {
	t.Helper()
	for len(effects) > 0 {
		next := effects[0]
		effects = effects[1:]
		switch e := next.(type) {
		case SendEffect:
			res, err := e.Mutation.Send(context.Background(), rc)
			if err != nil {
				effects = append(effects, c.MutationFailed(err)...)
			} else {
				effects = append(effects, c.MutationDone(res)...)
			}
		case FetchEffect:
			snap, unchanged, err := rc.FetchAll(context.Background(), e.IfVersion)
			switch {
			case err != nil:
				effects = append(effects, c.RefreshFailed(err)...)
			case unchanged:
				effects = append(effects, c.RefreshUnchanged()...)
			default:
				effects = append(effects, c.RefreshDone(snap)...)
			}
		default:
			t.Fatalf("unexpected effect %T", next)
		}
	}
}

func TestEngineConvergesAfterConcurrentEdits(t *testing.T) {
	rc := &fakeRemote{version: 5, nextID: 10, snap: func() *Snapshot { return confirmedFixture(0) }}
	c := testController()
	runEffects(t, c, rc, c.Start())
	assert.Equal(t, c.Version(), int64(5))

	// Clean run: ack is exactly one past confirmed, no extra fetch.
	runEffects(t, c, rc, c.Enqueue(&ItemOn{Item: 1}))
	assert.Equal(t, c.Version(), int64(6))
	assert.Equal(t, rc.calls, []string{"fetch", "item-on"})

	// Another client sneaks two edits in; our next ack jumps to 9 and the
	// engine falls back to a full fetch.
	rc.version = 8
	runEffects(t, c, rc, c.Enqueue(NewRenameItem(2, "Free Range Eggs")))
	assert.Equal(t, c.Version(), int64(9))
	assert.Equal(t, rc.calls, []string{"fetch", "item-on", "rename-item", "fetch"})
	assert.Equal(t, c.QueueLen(), 0)
}
