package broker

// TopicIndex maps topic names to their current fan-out membership
// (spec.md §4.2). Topics carry no flow control: delivery is best-effort.
type TopicIndex struct {
	entries map[string]map[int64]*Connection
}

func NewTopicIndex() *TopicIndex {
	return &TopicIndex{entries: make(map[string]map[int64]*Connection)}
}

// Add inserts conn into topic's set, creating the entry if absent.
func (t *TopicIndex) Add(topic string, conn *Connection) {
	members, ok := t.entries[topic]
	if !ok {
		members = make(map[int64]*Connection)
		t.entries[topic] = members
	}
	members[conn.ID] = conn
}

// Remove deletes conn from topic's set, dropping the entry once empty.
func (t *TopicIndex) Remove(topic string, conn *Connection) {
	members, ok := t.entries[topic]
	if !ok {
		return
	}
	delete(members, conn.ID)
	if len(members) == 0 {
		delete(t.entries, topic)
	}
}

// RemoveConnection removes conn from every topic entry it appears in,
// called by the Connection Registry on teardown (spec.md §4.1).
func (t *TopicIndex) RemoveConnection(conn *Connection) {
	for topic := range conn.Topics {
		t.Remove(topic, conn)
	}
}

// Members enumerates the current subscribers of a topic for fan-out.
func (t *TopicIndex) Members(topic string) []*Connection {
	members := t.entries[topic]
	out := make([]*Connection, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}
