// Package metrics exposes the broker's Prometheus surface, grounded on the
// teacher's promauto-based connection/message/system counters
// (go-server/internal/metrics), retargeted from websocket/NATS concerns to
// the dispatch engine's own vocabulary: destinations, listener groups, and
// the persistence spillover path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broker holds every counter/gauge the dispatch engine updates.
type Broker struct {
	connectionsActive prometheus.Gauge

	dispatchedTotal *prometheus.CounterVec
	fanoutTotal     prometheus.Counter
	fanoutMembers   prometheus.Histogram

	persistedTotal prometheus.Counter
	replayedTotal  prometheus.Counter

	receiptsTotal prometheus.Counter
	errorsTotal   prometheus.Counter

	startTime time.Time
}

func NewBroker() *Broker {
	return &Broker{
		startTime: time.Now(),

		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stomp_connections_active",
			Help: "Number of currently registered STOMP connections",
		}),
		dispatchedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stomp_queue_messages_dispatched_total",
			Help: "Total number of queue messages dispatched to a listener group member",
		}, []string{}),
		fanoutTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stomp_topic_publishes_total",
			Help: "Total number of topic publishes fanned out",
		}),
		fanoutMembers: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stomp_topic_fanout_members",
			Help:    "Number of subscribers a topic publish fanned out to",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		persistedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stomp_queue_messages_persisted_total",
			Help: "Total number of queue messages spilled to the persistence adapter",
		}),
		replayedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stomp_queue_messages_replayed_total",
			Help: "Total number of persisted queue messages replayed on subscribe",
		}),
		receiptsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stomp_receipts_emitted_total",
			Help: "Total number of RECEIPT frames emitted",
		}),
		errorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stomp_error_frames_total",
			Help: "Total number of ERROR frames emitted",
		}),
	}
}

func (b *Broker) SetConnections(n int) { b.connectionsActive.Set(float64(n)) }

func (b *Broker) IncDispatched() { b.dispatchedTotal.WithLabelValues().Inc() }

func (b *Broker) IncFanout(members int) {
	b.fanoutTotal.Inc()
	b.fanoutMembers.Observe(float64(members))
}

func (b *Broker) IncPersisted() { b.persistedTotal.Inc() }

func (b *Broker) IncReplayed() { b.replayedTotal.Inc() }

func (b *Broker) IncReceipt() { b.receiptsTotal.Inc() }

func (b *Broker) IncError() { b.errorsTotal.Inc() }

func (b *Broker) Uptime() time.Duration { return time.Since(b.startTime) }
