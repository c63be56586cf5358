package broker

import (
	"fmt"
	"sync/atomic"
	"time"

	"stomp-broker/internal/stomp"
)

// DefaultPrefetch is the prefetch limit a Subscription gets when SUBSCRIBE
// carries no "prefetch" header of its own (spec.md §3).
const DefaultPrefetch = 10

// Message is a unit of dispatch: either fanned out to a topic's members or
// round-robined across a queue's listener group, and (for queues only)
// spilled to the Persistence Adapter when no listener group exists.
type Message struct {
	ID          string
	Destination stomp.Destination
	Priority    int32
	Timestamp   time.Time
	Body        []byte
}

var msgCounter int64

// NewMsgID mints a broker-originated message id, formatted
// "msg-<unix-seconds-float>-<counter>" per spec.md §3. Uniqueness within a
// broker run comes from the monotonically increasing counter; the embedded
// timestamp is cosmetic (useful for humans grepping logs).
func NewMsgID() string {
	n := atomic.AddInt64(&msgCounter, 1)
	return fmt.Sprintf("msg-%f-%d", float64(time.Now().UnixNano())/1e9, n)
}

// Subscription is a single consumer's binding to one destination on one
// connection (spec.md §3). PendingAcks only ever grows in this
// implementation: client ACK frames are not processed (see DESIGN.md,
// open question 1), so prefetch is effectively a lifetime cap that is only
// reset by a fresh SUBSCRIBE replacing the record.
type Subscription struct {
	Destination string
	Prefetch    int
	PendingAcks map[string]struct{}
}

func NewSubscription(destination string, prefetch int) *Subscription {
	if prefetch <= 0 {
		prefetch = DefaultPrefetch
	}
	return &Subscription{
		Destination: destination,
		Prefetch:    prefetch,
		PendingAcks: make(map[string]struct{}),
	}
}

// Blocked reports whether this subscription has reached its prefetch limit.
func (s *Subscription) Blocked() bool {
	return len(s.PendingAcks) >= s.Prefetch
}
