package broker

import "testing"

// TestRegistryUnregisterScrubsIndices verifies invariant 3 of spec.md §8:
// after disconnect, no stale connection id remains in the topic or queue
// indices.
func TestRegistryUnregisterScrubsIndices(t *testing.T) {
	topics := NewTopicIndex()
	queues := NewQueueIndex()
	reg := NewRegistry(topics, queues)

	c := newConnWithID(1)
	reg.Register(c)

	c.Topics["news"] = NewSubscription("news", DefaultPrefetch)
	topics.Add("news", c)
	sub := NewSubscription("work", DefaultPrefetch)
	c.Queues["work"] = sub
	queues.Attach("work", c, sub)

	reg.Unregister(c)

	if _, ok := reg.Get(c.ID); ok {
		t.Fatal("expected connection removed from registry")
	}
	if len(topics.Members("news")) != 0 {
		t.Fatal("expected connection scrubbed from topic index")
	}
	if queues.HasGroup("work") {
		t.Fatal("expected empty listener group reclaimed")
	}
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	topics := NewTopicIndex()
	queues := NewQueueIndex()
	reg := NewRegistry(topics, queues)

	c := newConnWithID(1)
	reg.Register(c)
	reg.Unregister(c)
	reg.Unregister(c) // must not panic
}
