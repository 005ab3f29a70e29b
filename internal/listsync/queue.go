package listsync

// requestQueue holds the work waiting for the wire. At most one request is
// ever in flight, and the in-flight request stays at the front until its
// outcome is known so projections keep replaying it. Full refreshes jump
// ahead of every queued mutation and coalesce into one.
type requestQueue struct {
	refreshes int
	mutations []Mutation
}

func (q *requestQueue) EnqueueMutation(m Mutation) {
	q.mutations = append(q.mutations, m)
}

func (q *requestQueue) EnqueueRefresh() {
	if q.refreshes == 0 {
		q.refreshes = 1
	}
}

func (q *requestQueue) Empty() bool {
	return q.refreshes == 0 && len(q.mutations) == 0
}

func (q *requestQueue) Len() int {
	return q.refreshes + len(q.mutations)
}

func (q *requestQueue) NextIsRefresh() bool {
	return q.refreshes > 0
}

func (q *requestQueue) PeekMutation() Mutation {
	if len(q.mutations) == 0 {
		return nil
	}
	return q.mutations[0]
}

func (q *requestQueue) DequeueRefresh() {
	if q.refreshes > 0 {
		q.refreshes--
	}
}

func (q *requestQueue) DequeueMutation() Mutation {
	if len(q.mutations) == 0 {
		return nil
	}
	m := q.mutations[0]
	q.mutations = q.mutations[1:]
	return m
}

// Mutations returns the pending mutations in queue order, including one that
// may currently be in flight.
func (q *requestQueue) Mutations() []Mutation {
	return q.mutations
}
