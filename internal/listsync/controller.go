package listsync

import (
	"errors"
	"fmt"
	"log/slog"
)

// Effect is work the controller wants done on the wire. The controller never
// performs I/O itself; the caller runs each effect and feeds the outcome
// back in, which keeps every state transition synchronous and testable.
type Effect interface {
	effect()
}

// SendEffect asks the caller to post the mutation to the server.
type SendEffect struct {
	Mutation Mutation
}

// FetchEffect asks the caller for the full snapshot, conditional on
// IfVersion when it is non-negative.
type FetchEffect struct {
	IfVersion int64
}

func (SendEffect) effect()  {}
func (FetchEffect) effect() {}

// Controller owns the client's replica: the confirmed snapshot, the queue of
// unacknowledged work, and the single-flight rule. All methods must be
// called from one goroutine.
type Controller struct {
	logger *slog.Logger

	confirmed *Snapshot
	queue     requestQueue
	inFlight  bool

	// Items taken off the list stay visible until the user moves on, so a
	// mistaken tap can be undone in place.
	justOff map[int64]bool

	index      *SearchIndex
	indexDirty bool

	lastErr string
}

func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger:     logger,
		confirmed:  &Snapshot{DataVersion: -1},
		justOff:    map[int64]bool{},
		indexDirty: true,
	}
}

// Start queues the initial full fetch.
func (c *Controller) Start() []Effect {
	return c.Refresh()
}

// Refresh queues a full snapshot fetch ahead of any pending mutations.
// Multiple calls before the fetch runs collapse into one.
func (c *Controller) Refresh() []Effect {
	c.queue.EnqueueRefresh()
	return c.dispatch()
}

// Enqueue adds a mutation to the outbound queue. Mutations that would change
// nothing in the effective state are dropped.
func (c *Controller) Enqueue(m Mutation) []Effect {
	if m.Redundant(c.Effective()) {
		c.logger.Debug("dropping redundant mutation", "mutation", m.Describe())
		return nil
	}
	c.queue.EnqueueMutation(m)
	c.indexDirty = true
	return c.dispatch()
}

// MutationDone folds a successful acknowledgement into the confirmed
// snapshot. When the acknowledged version is exactly one past the confirmed
// version the mutation is the only thing that changed and it is applied
// permanently; any larger jump means someone else got there too, so a full
// refresh is queued ahead of the remaining mutations instead.
func (c *Controller) MutationDone(res MutationResult) []Effect {
	m := c.queue.DequeueMutation()
	c.inFlight = false
	c.indexDirty = true
	if m == nil {
		c.logger.Error("acknowledgement with no mutation in flight")
		return c.dispatch()
	}

	if res.DataVersion == c.confirmed.DataVersion+1 {
		m.Confirm(c.confirmed, res)
		c.confirmed.DataVersion = res.DataVersion
	} else {
		c.logger.Info(
			"version jump, refreshing",
			"confirmed", c.confirmed.DataVersion,
			"acknowledged", res.DataVersion,
		)
		c.queue.EnqueueRefresh()
	}
	return c.dispatch()
}

// MutationFailed drops the failed mutation and queues a refresh so the
// replica converges back to the server's truth. Failed mutations are never
// retried; the user re-issues the edit if they still want it.
func (c *Controller) MutationFailed(err error) []Effect {
	m := c.queue.DequeueMutation()
	c.inFlight = false
	c.indexDirty = true
	if m == nil {
		c.logger.Error("failure with no mutation in flight", "error", err)
		return c.dispatch()
	}

	if errors.Is(err, ErrConflict) {
		c.lastErr = fmt.Sprintf("%s was rejected, reloading", m.Describe())
		c.logger.Info("mutation conflicted", "mutation", m.Describe())
	} else {
		c.lastErr = fmt.Sprintf("%s failed: %v", m.Describe(), err)
		c.logger.Error("mutation failed", "mutation", m.Describe(), "error", err)
	}
	c.queue.EnqueueRefresh()
	return c.dispatch()
}

// RefreshDone replaces the confirmed snapshot with a freshly fetched one.
func (c *Controller) RefreshDone(snap *Snapshot) []Effect {
	c.queue.DequeueRefresh()
	c.inFlight = false
	c.confirmed = snap
	c.indexDirty = true
	return c.dispatch()
}

// RefreshUnchanged handles the server reporting our version is current.
func (c *Controller) RefreshUnchanged() []Effect {
	c.queue.DequeueRefresh()
	c.inFlight = false
	return c.dispatch()
}

// RefreshFailed drops the refresh rather than retrying in a loop; the caller
// decides when to try again.
func (c *Controller) RefreshFailed(err error) []Effect {
	c.queue.DequeueRefresh()
	c.inFlight = false
	c.lastErr = fmt.Sprintf("reload failed: %v", err)
	c.logger.Error("refresh failed", "error", err)
	return c.dispatch()
}

// AdoptSnapshot takes a snapshot that arrived out of band, from the shared
// cache file. It is only safe to swap in while nothing is queued or in
// flight, and only forward.
func (c *Controller) AdoptSnapshot(snap *Snapshot) bool {
	if c.inFlight || !c.queue.Empty() {
		return false
	}
	if snap.DataVersion <= c.confirmed.DataVersion {
		return false
	}
	c.confirmed = snap
	c.indexDirty = true
	return true
}

func (c *Controller) dispatch() []Effect {
	if c.inFlight || c.queue.Empty() {
		return nil
	}
	c.inFlight = true
	if c.queue.NextIsRefresh() {
		return []Effect{FetchEffect{IfVersion: c.confirmed.DataVersion}}
	}
	return []Effect{SendEffect{Mutation: c.queue.PeekMutation()}}
}

// Effective projects the pending mutations over the confirmed snapshot.
func (c *Controller) Effective() *Snapshot {
	return project(c.confirmed, c.queue.Mutations())
}

// Search matches items in the effective state. The index is rebuilt
// wholesale whenever the effective state may have changed; the data is small
// enough that incremental maintenance is not worth its bugs.
func (c *Controller) Search(query string) []Item {
	if c.indexDirty || c.index == nil {
		c.index = NewSearchIndex(c.Effective().Items)
		c.indexDirty = false
	}
	return c.index.Search(query)
}

// Confirmed returns the snapshot as last acknowledged by the server.
func (c *Controller) Confirmed() *Snapshot { return c.confirmed }

func (c *Controller) Version() int64 { return c.confirmed.DataVersion }

func (c *Controller) InFlight() bool { return c.inFlight }

func (c *Controller) QueueLen() int { return c.queue.Len() }

// Pending describes the queued mutations in order, for display.
func (c *Controller) Pending() []string {
	var out []string
	for _, m := range c.queue.Mutations() {
		out = append(out, m.Describe())
	}
	return out
}

func (c *Controller) LastError() string { return c.lastErr }

func (c *Controller) ClearError() { c.lastErr = "" }

// MarkJustOff keeps an item visible in the list view after it was checked
// off. ClearJustOff forgets the whole set, which happens on navigation.
func (c *Controller) MarkJustOff(id int64) { c.justOff[id] = true }

func (c *Controller) IsJustOff(id int64) bool { return c.justOff[id] }

func (c *Controller) ClearJustOff() { c.justOff = map[int64]bool{} }
