package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// System periodically samples process/host resource usage via gopsutil and
// publishes it as Prometheus gauges, grounded on
// go-server/internal/metrics/system.go's CPU-percent sampling with an
// exponential moving average, extended with gopsutil's mem reader for
// system-wide used memory.
type System struct {
	mu         sync.RWMutex
	cpuPercent float64

	cpuGauge        prometheus.Gauge
	memGauge        prometheus.Gauge
	goroutinesGauge prometheus.Gauge
}

func NewSystem() *System {
	return &System{
		cpuGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stomp_process_cpu_percent",
			Help: "Smoothed system CPU usage percentage",
		}),
		memGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stomp_process_memory_used_bytes",
			Help: "Used system memory in bytes",
		}),
		goroutinesGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stomp_goroutines",
			Help: "Number of goroutines",
		}),
	}
}

// Sample takes one CPU/memory/goroutine reading and updates the gauges.
// cpu.Percent(interval, false) blocks for the given interval, so callers
// run Sample on its own ticker goroutine rather than inline.
func (s *System) Sample(interval time.Duration) {
	percents, err := cpu.Percent(interval, false)
	if err == nil && len(percents) > 0 {
		s.mu.Lock()
		if s.cpuPercent == 0 {
			s.cpuPercent = percents[0]
		} else {
			const alpha = 0.3
			s.cpuPercent = alpha*percents[0] + (1-alpha)*s.cpuPercent
		}
		s.mu.Unlock()
		s.cpuGauge.Set(s.cpuPercent)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.memGauge.Set(float64(vm.Used))
	}

	s.goroutinesGauge.Set(float64(runtime.NumGoroutine()))
}

// Run samples repeatedly until done is closed; each Sample call blocks for
// interval inside cpu.Percent, which paces the loop. The caller launches
// this in its own goroutine at startup.
func (s *System) Run(done <-chan struct{}, interval time.Duration) {
	for {
		select {
		case <-done:
			return
		default:
			s.Sample(interval)
		}
	}
}
