package broker

// Registry is the set of live client sessions (spec.md §4.1). It owns no
// subscription state itself — that lives on each Connection and is shared
// by reference with the Topic/Queue indices — but unregistering a
// connection is responsible for scrubbing it out of both indices so no
// stale connection id survives teardown (spec.md §8, invariant 3).
type Registry struct {
	connections map[int64]*Connection
	topics      *TopicIndex
	queues      *QueueIndex
}

func NewRegistry(topics *TopicIndex, queues *QueueIndex) *Registry {
	return &Registry{
		connections: make(map[int64]*Connection),
		topics:      topics,
		queues:      queues,
	}
}

// Register adds conn to the live set.
func (r *Registry) Register(conn *Connection) {
	r.connections[conn.ID] = conn
}

// Unregister removes conn and scrubs it from every topic and queue entry
// it appears in. Idempotent and safe to call on a partially-constructed
// connection (one that registered but never subscribed to anything).
func (r *Registry) Unregister(conn *Connection) {
	if _, ok := r.connections[conn.ID]; !ok {
		return
	}
	delete(r.connections, conn.ID)
	r.topics.RemoveConnection(conn)
	r.queues.RemoveConnection(conn)
}

// Get returns the live connection for id, if any.
func (r *Registry) Get(id int64) (*Connection, bool) {
	c, ok := r.connections[id]
	return c, ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	return len(r.connections)
}
