package broker

import "testing"

func TestTopicFanoutMembers(t *testing.T) {
	idx := NewTopicIndex()
	a := newConnWithID(1)
	b := newConnWithID(2)
	idx.Add("news", a)
	idx.Add("news", b)

	members := idx.Members("news")
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestTopicRemoveDropsEmptyEntry(t *testing.T) {
	idx := NewTopicIndex()
	a := newConnWithID(1)
	idx.Add("news", a)
	idx.Remove("news", a)

	if members := idx.Members("news"); len(members) != 0 {
		t.Fatalf("expected no members after remove, got %d", len(members))
	}
}

func TestTopicRemoveConnectionScrubsAllEntries(t *testing.T) {
	idx := NewTopicIndex()
	a := newConnWithID(1)
	a.Topics["news"] = NewSubscription("news", DefaultPrefetch)
	a.Topics["weather"] = NewSubscription("weather", DefaultPrefetch)
	idx.Add("news", a)
	idx.Add("weather", a)

	idx.RemoveConnection(a)

	if len(idx.Members("news")) != 0 || len(idx.Members("weather")) != 0 {
		t.Fatal("expected connection scrubbed from every topic")
	}
}
