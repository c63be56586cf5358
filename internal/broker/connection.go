package broker

import (
	"net"
	"sync/atomic"
	"time"

	"stomp-broker/internal/stomp"
)

var connCounter int64

// Connection is a live client session (spec.md §3). It owns its output
// stream and the two local maps of its own subscriptions; Subscription
// values are shared by reference with the matching Topic/Queue index
// entries, mirroring the teacher's *Client owning a buffered send channel
// that the Hub also holds a reference to (pkg/websocket/hub.go, client.go).
type Connection struct {
	ID          int64
	RemoteAddr  string
	ConnectedAt time.Time

	// DefaultPrefetch is reserved per spec.md §3 for a CONNECT-negotiated
	// default: the handshake does not set it, individual subscriptions
	// carry their own prefetch, and the dispatch engine does not consult it.
	DefaultPrefetch int

	// PendingTotal is reserved per spec.md §3 for a count of unacknowledged
	// messages across all of this connection's subscriptions; nothing
	// updates it, so it stays 0.
	PendingTotal int64

	Topics map[string]*Subscription
	Queues map[string]*Subscription

	outbound chan *stomp.Frame
	done     chan struct{}
	conn     net.Conn
}

func NewConnection(conn net.Conn) *Connection {
	id := atomic.AddInt64(&connCounter, 1)
	remote := ""
	if conn != nil {
		remote = conn.RemoteAddr().String()
	}
	return &Connection{
		ID:          id,
		RemoteAddr:  remote,
		ConnectedAt: time.Now(),
		Topics:      make(map[string]*Subscription),
		Queues:      make(map[string]*Subscription),
		outbound:    make(chan *stomp.Frame, 256),
		done:        make(chan struct{}),
		conn:        conn,
	}
}

// Send enqueues a frame for this connection's writer goroutine. It never
// blocks the caller (the broker's single dispatch loop): a full outbound
// channel or a terminating connection both drop the frame silently, per
// spec.md §5 ("in-flight writes to a terminating connection may fail
// silently").
func (c *Connection) Send(f *stomp.Frame) {
	select {
	case c.outbound <- f:
	case <-c.done:
	default:
	}
}

// Outbound exposes the frame channel for the per-connection writer pump.
func (c *Connection) Outbound() <-chan *stomp.Frame {
	return c.outbound
}

// Done reports when the connection has been closed, so the writer pump
// can stop waiting on Outbound once nothing will ever send to it again.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// netConn exposes the underlying stream for the writer pump's codec; the
// read side owns its own codec over the same net.Conn (safe for
// concurrent Read/Write from separate goroutines).
func (c *Connection) netConn() net.Conn {
	return c.conn
}

// Close aborts the connection's half-streams, per spec.md §5 resource
// discipline: both are closed forcibly, discarding buffered output.
func (c *Connection) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
