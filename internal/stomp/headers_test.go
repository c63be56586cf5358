package stomp

import "testing"

func TestParseDestination(t *testing.T) {
	cases := []struct {
		header string
		ok     bool
		kind   DestinationKind
		name   string
	}{
		{"/queue/work", true, DestQueue, "work"},
		{"/topic/news", true, DestTopic, "news"},
		{"garbage", false, 0, ""},
		{"", false, 0, ""},
	}
	for _, c := range cases {
		dest, ok := ParseDestination(c.header)
		if ok != c.ok {
			t.Fatalf("%q: ok=%v, want %v", c.header, ok, c.ok)
		}
		if !ok {
			continue
		}
		if dest.Kind != c.kind || dest.Name != c.name {
			t.Fatalf("%q: got %+v", c.header, dest)
		}
	}
}

func TestDestinationString(t *testing.T) {
	if s := (Destination{Kind: DestQueue, Name: "work"}).String(); s != "/queue/work" {
		t.Fatalf("got %q", s)
	}
	if s := (Destination{Kind: DestTopic, Name: "news"}).String(); s != "/topic/news" {
		t.Fatalf("got %q", s)
	}
}

func TestHeadersSetReplacesFirstOccurrence(t *testing.T) {
	var h Headers
	h.Append("a", "1")
	h.Append("b", "2")
	h.Set("a", "3")

	if v, ok := h.Contains("a"); !ok || v != "3" {
		t.Fatalf("got %q, ok=%v", v, ok)
	}
	if len(h.All()) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(h.All()))
	}
}
