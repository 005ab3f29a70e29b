package listsync

// project replays the pending mutations, in queue order, over a copy of the
// confirmed snapshot. The result is what the user should see: the server's
// last known truth plus everything they have done since. The confirmed
// snapshot itself is never touched, so projecting is repeatable and two
// projections from the same inputs are identical.
func project(confirmed *Snapshot, pending []Mutation) *Snapshot {
	snap := confirmed.Clone()
	for _, m := range pending {
		m.Apply(snap)
	}
	return snap
}
