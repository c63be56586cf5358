package broker

import "sort"

// pair is a single (connection, subscription) member of a queue's listener
// group (spec.md §3). Subscriptions are shared by reference with the
// connection's own Queues map.
type pair struct {
	conn *Connection
	sub  *Subscription
}

// listenerGroup is the per-queue bookkeeping described in spec.md §3/§4.3:
// two disjoint membership sets plus the round-robin cursor. Ordering is by
// descending connection id (spec.md §4.3): the member with the *highest*
// raw id sorts first ("minimum") under this order.
type listenerGroup struct {
	ready    map[int64]*pair
	blocked  map[int64]*pair
	lastSent int64 // 0 means empty; connection ids are minted starting at 1
}

func newListenerGroup() *listenerGroup {
	return &listenerGroup{
		ready:   make(map[int64]*pair),
		blocked: make(map[int64]*pair),
	}
}

func (g *listenerGroup) empty() bool {
	return len(g.ready) == 0 && len(g.blocked) == 0
}

// member looks a pair up by connection id across both sets.
func (g *listenerGroup) member(id int64) (*pair, bool) {
	if p, ok := g.ready[id]; ok {
		return p, true
	}
	if p, ok := g.blocked[id]; ok {
		return p, true
	}
	return nil, false
}

// descIDs returns a set's connection ids sorted descending —
// exactly the total order spec.md §4.3 specifies, so index 0 is "min(ready)"
// under that order.
func descIDs(set map[int64]*pair) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids
}

// minReady is the selected pair when last_sent is empty: the minimum
// element of ready under the descending-id order, i.e. the highest raw id.
func minReady(ready map[int64]*pair) (int64, bool) {
	ids := descIDs(ready)
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// nextID is the successor of c within set under the descending-id order,
// wrapping to the minimum (highest raw id) when c is the maximum (lowest
// raw id) or lies outside the set's range entirely. c need not itself be a
// member of set — this is used to advance past a cursor that currently
// points at a blocked pair.
func nextID(c int64, set map[int64]*pair) (int64, bool) {
	ids := descIDs(set)
	if len(ids) == 0 {
		return 0, false
	}
	for _, id := range ids {
		if id < c {
			return id, true
		}
	}
	return ids[0], true // wrapped
}

// QueueIndex holds one listenerGroup per queue name and implements the
// round-robin dispatch algorithm of spec.md §4.3 — the crux of the whole
// engine.
type QueueIndex struct {
	groups map[string]*listenerGroup
}

func NewQueueIndex() *QueueIndex {
	return &QueueIndex{groups: make(map[string]*listenerGroup)}
}

// HasGroup reports whether a listener group exists for queue at all. The
// dispatch algorithm's persistence fallback (spec.md §4.3 step 4) triggers
// only on this condition, never merely because every member is blocked —
// see DESIGN.md, open question 3.
func (q *QueueIndex) HasGroup(queue string) bool {
	_, ok := q.groups[queue]
	return ok
}

// Attach inserts (conn, sub) into queue's listener group, creating the
// group if absent (spec.md §4.3). A subscription that is already at its
// prefetch limit — e.g. after a replay fetch filled pending_acks before
// the pair ever joined the group — is placed directly into blocked rather
// than ready. Any pair conn already had in either set is replaced.
func (q *QueueIndex) Attach(queue string, conn *Connection, sub *Subscription) {
	g, ok := q.groups[queue]
	if !ok {
		g = newListenerGroup()
		q.groups[queue] = g
	}
	delete(g.ready, conn.ID)
	delete(g.blocked, conn.ID)
	p := &pair{conn: conn, sub: sub}
	if sub.Blocked() {
		g.blocked[conn.ID] = p
	} else {
		g.ready[conn.ID] = p
	}
}

// Detach removes any pair keyed by conn from both ready and blocked,
// dropping the group once both are empty (spec.md §4.3, §4.4).
func (q *QueueIndex) Detach(queue string, conn *Connection) {
	g, ok := q.groups[queue]
	if !ok {
		return
	}
	delete(g.ready, conn.ID)
	delete(g.blocked, conn.ID)
	if g.lastSent == conn.ID {
		// The cursor's pair was just removed; the next dispatch will
		// re-validate and fall back to min(ready) (spec.md §9).
		g.lastSent = 0
	}
	if g.empty() {
		delete(q.groups, queue)
	}
}

// RemoveConnection detaches conn from every queue it belongs to, called by
// the Connection Registry on teardown (spec.md §4.1).
func (q *QueueIndex) RemoveConnection(conn *Connection) {
	for queue := range conn.Queues {
		q.Detach(queue, conn)
	}
}

// unblockSweep partitions blocked into members whose pending_acks have
// fallen below their prefetch and the rest, moving the former into ready
// (spec.md §4.3 "Unblock-sweep"). In this implementation pending_acks never
// shrinks (see DESIGN.md, open question 1), so in practice a sweep moves
// nothing: a fresh SUBSCRIBE replaces the pair through Attach, which puts
// the new record straight into ready. The sweep is still
// run at every point the algorithm calls for it, to stay faithful to the
// source's structure and ready for ACK support to be added later.
func (g *listenerGroup) unblockSweep() {
	for id, p := range g.blocked {
		if len(p.sub.PendingAcks) < p.sub.Prefetch {
			delete(g.blocked, id)
			g.ready[id] = p
		}
	}
}

// dispatchResult is the outcome of selecting a queue member for a message.
type dispatchResult struct {
	conn *Connection
	sub  *Subscription
	ok   bool
}

// selectMember runs the dispatch algorithm of spec.md §4.3 over an existing
// listener group and returns the chosen member, or ok=false in the
// defensive case where the group exists but has no member at all to select
// (unreachable under the invariants of spec.md §3, kept as a safety net).
func (g *listenerGroup) selectMember() dispatchResult {
	if g.lastSent == 0 {
		if len(g.ready) == 0 {
			g.unblockSweep()
		}
		if id, ok := minReady(g.ready); ok {
			return dispatchResult{conn: g.ready[id].conn, sub: g.ready[id].sub, ok: true}
		}
		// Same dispatch-when-blocked quirk as below: with no cursor and
		// every member blocked, the first blocked member under the order
		// receives the message instead of storage.
		ids := descIDs(g.blocked)
		if len(ids) == 0 {
			return dispatchResult{}
		}
		p := g.blocked[ids[0]]
		return dispatchResult{conn: p.conn, sub: p.sub, ok: true}
	}

	c := g.lastSent
	if len(g.ready) == 0 {
		g.unblockSweep()
	}

	if len(g.ready) == 0 {
		// Design-quirk (spec.md §9, open question 3): the source persists
		// only when the queue has no listener group at all. With a group
		// present but every member blocked and unsweepable, it still
		// re-delivers to the cursor's own (blocked) pair rather than
		// spilling to storage.
		p, ok := g.member(c)
		if !ok {
			return dispatchResult{}
		}
		return dispatchResult{conn: p.conn, sub: p.sub, ok: true}
	}

	next, _ := nextID(c, g.ready)
	if min, _ := minReady(g.ready); next == min {
		g.unblockSweep()
		next, _ = nextID(c, g.ready)
	}
	p, ok := g.ready[next]
	if !ok {
		return dispatchResult{}
	}
	return dispatchResult{conn: p.conn, sub: p.sub, ok: true}
}

// Dispatch selects the next eligible subscriber for queue and forwards msg
// to it, mutating pending_acks/last_sent/ready-blocked state before the
// outbound write is enqueued (spec.md §4.3 step 3, §5 ordering guarantee).
// It must only be called when HasGroup(queue) is true; the caller persists
// otherwise.
func (q *QueueIndex) Dispatch(queue string, msg *Message, send func(*Connection, *Message)) {
	g, ok := q.groups[queue]
	if !ok {
		return
	}
	result := g.selectMember()
	if !result.ok {
		return
	}

	result.sub.PendingAcks[msg.ID] = struct{}{}
	g.lastSent = result.conn.ID
	if result.sub.Blocked() {
		delete(g.ready, result.conn.ID)
		g.blocked[result.conn.ID] = &pair{conn: result.conn, sub: result.sub}
	}

	send(result.conn, msg)
}
