// Package broker implements the destination dispatch engine: the data
// structures and algorithms of spec.md §3–§5 that route published frames to
// fan-out topics or fair-share queues, apply prefetch-based flow control,
// round-robin across queue consumers, and spill/replay undeliverable queue
// messages through the Persistence Adapter.
package broker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"stomp-broker/internal/metrics"
	"stomp-broker/internal/stomp"
	"stomp-broker/internal/store"
)

// Broker is the single owner of the connection registry, topic index and
// queue index (spec.md §3 "Ownership"). A single mutex guards all three —
// the Go-idiomatic rendering of the source's single-threaded event loop,
// per the "Concurrency upgrade" note in spec.md §9: rather than shard by
// destination, one mutex serializes every state transition, which keeps
// the invariants of spec.md §3 trivially true at the cost of coarser
// contention than a sharded implementation would have.
type Broker struct {
	mu sync.Mutex

	registry *Registry
	topics   *TopicIndex
	queues   *QueueIndex
	store    store.Store

	logger  *zap.Logger
	metrics *metrics.Broker
}

func New(st store.Store, logger *zap.Logger, m *metrics.Broker) *Broker {
	topics := NewTopicIndex()
	queues := NewQueueIndex()
	return &Broker{
		registry: NewRegistry(topics, queues),
		topics:   topics,
		queues:   queues,
		store:    st,
		logger:   logger,
		metrics:  m,
	}
}

// Register adds a new connection to the registry (spec.md §4.1).
func (b *Broker) Register(conn *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registry.Register(conn)
	b.metrics.SetConnections(b.registry.Count())
}

// Disconnect tears a connection down: removes it from the registry, which
// in turn scrubs every topic and queue entry it appears in (spec.md §4.1,
// §5 "Cancellation" — this must run to completion before the connection
// record is dropped).
func (b *Broker) Disconnect(conn *Connection) {
	b.mu.Lock()
	b.registry.Unregister(conn)
	b.metrics.SetConnections(b.registry.Count())
	b.mu.Unlock()
	conn.Close()
}

// SubscribeTopic binds conn to topic T, replacing any existing local entry
// (spec.md §4.4).
func (b *Broker) SubscribeTopic(conn *Connection, destination string, prefetch int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := NewSubscription(destination, prefetch)
	conn.Topics[destination] = sub
	b.topics.Add(destination, conn)
}

// UnsubscribeTopic removes conn from topic T's index entry (spec.md §4.4).
// A no-op when the topic is unknown or conn was never a member.
func (b *Broker) UnsubscribeTopic(conn *Connection, destination string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics.Remove(destination, conn)
}

// SubscribeQueue fetches up to `prefetch` replayable rows for destination
// before the pair ever joins the listener group, so the group only ever
// sees the subscription's final pending_acks state (spec.md §4.4): the
// pair lands in blocked, not ready, if the replay alone fills its
// prefetch. Replayed rows are then sent to conn serially, in the fetch
// order (priority, then timestamp).
func (b *Broker) SubscribeQueue(ctx context.Context, conn *Connection, destination string, prefetch int) error {
	sub := NewSubscription(destination, prefetch)

	rows, err := b.store.FetchForDestination(ctx, destination, sub.Prefetch)
	if err != nil {
		return err
	}

	b.mu.Lock()
	for _, row := range rows {
		sub.PendingAcks[row.ID] = struct{}{}
	}
	conn.Queues[destination] = sub
	b.queues.Attach(destination, conn, sub)
	b.mu.Unlock()

	for _, row := range rows {
		frame := stomp.NewFrame(stomp.CmdMessage,
			stomp.HeaderMessageID, row.ID,
			stomp.HeaderDestination, "/queue/"+destination,
		)
		frame.WithBody(row.Body)
		conn.Send(frame) // serial: one Send per loop iteration, in fetch order
		b.metrics.IncReplayed()
	}
	return nil
}

// UnsubscribeQueue removes the pair from both ready and blocked of queue
// Q's listener group (spec.md §4.4). A no-op when the queue is unknown.
func (b *Broker) UnsubscribeQueue(conn *Connection, destination string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues.Detach(destination, conn)
}

// PublishTopic fans a message out to every current subscriber of topic T.
// Fan-out is fire-and-forget: a full or closed member channel never blocks
// or aborts the publish (spec.md §4.5).
func (b *Broker) PublishTopic(destination string, msg *Message) {
	b.mu.Lock()
	members := b.topics.Members(destination)
	b.mu.Unlock()

	frame := messageFrame(msg)
	for _, conn := range members {
		conn.Send(frame)
	}
	b.metrics.IncFanout(len(members))
}

// PublishQueue runs the round-robin dispatch algorithm of spec.md §4.3. If
// the queue has no listener group at all it spills the message to the
// Persistence Adapter instead (spec.md §4.5); this is the only condition
// under which a queue publish persists (see DESIGN.md, open question 3).
func (b *Broker) PublishQueue(ctx context.Context, destination string, msg *Message) error {
	b.mu.Lock()
	if !b.queues.HasGroup(destination) {
		b.mu.Unlock()
		return b.persist(ctx, destination, msg)
	}

	var sent bool
	b.queues.Dispatch(destination, msg, func(conn *Connection, m *Message) {
		conn.Send(messageFrame(m))
		sent = true
	})
	b.mu.Unlock()

	if sent {
		b.metrics.IncDispatched()
	} else {
		// Defensive: a listener group existed but had no selectable
		// member at all (unreachable under spec.md §3's invariants).
		return b.persist(ctx, destination, msg)
	}
	return nil
}

func (b *Broker) persist(ctx context.Context, destination string, msg *Message) error {
	err := b.store.Insert(ctx, store.QueuedMessage{
		ID:          msg.ID,
		Priority:    msg.Priority,
		Destination: destination,
		Timestamp:   msg.Timestamp,
		Body:        msg.Body,
	})
	if err != nil {
		return err
	}
	b.metrics.IncPersisted()
	return nil
}

func messageFrame(msg *Message) *stomp.Frame {
	f := stomp.NewFrame(stomp.CmdMessage,
		stomp.HeaderMessageID, msg.ID,
		stomp.HeaderDestination, msg.Destination.String(),
	)
	f.WithBody(msg.Body)
	return f
}

// now is a seam kept for tests that need deterministic timestamps.
var now = time.Now
