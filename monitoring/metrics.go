package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	partitionSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_partition_size",
			Help: "Current number of entries per partition",
		},
		[]string{"partition"},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total queue operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	waitTimeMinutes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_wait_time_minutes",
			Help:    "Minutes between join and start of service for completed entries",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9),
		},
	)
)

// Monitor scrapes partition sizes out of Redis on a ticker and exposes
// operation counters for the queue service. A nil Monitor is a no-op so
// tests can construct services without metrics.
type Monitor struct {
	redis    *redis.Client
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{
		redis:    redisClient,
		stopChan: make(chan struct{}),
	}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.collectPartitionSizes(context.Background())
		case <-m.stopChan:
			return
		}
	}
}

// Stop ends the scrape loop. Safe on a nil Monitor and idempotent.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) collectPartitionSizes(ctx context.Context) {
	for _, partition := range []struct {
		name string
		key  string
	}{
		{"waiting", "queue:waiting:index"},
		{"serving", "queue:serving:index"},
		{"archived", "queue:archived:index"},
	} {
		size, err := m.redis.ZCard(ctx, partition.key).Result()
		if err != nil {
			continue
		}
		partitionSize.WithLabelValues(partition.name).Set(float64(size))
	}
}

// TrackQueueOperation counts one queue operation outcome.
func (m *Monitor) TrackQueueOperation(operation, outcome string) {
	if m == nil {
		return
	}
	queueOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveWaitTime records the realized wait of a completed entry.
func (m *Monitor) ObserveWaitTime(minutes int) {
	if m == nil {
		return
	}
	waitTimeMinutes.Observe(float64(minutes))
}
