// internal/utils/metrics/collector.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "solana_copybot"

// Collector держит все метрики сервиса в собственном реестре, поэтому
// несколько экземпляров (например, в тестах) не конфликтуют.
// Все методы безопасны для nil-получателя.
type Collector struct {
	registry *prometheus.Registry

	swapCounter      *prometheus.CounterVec
	swapDuration     *prometheus.HistogramVec
	classifications  *prometheus.CounterVec
	stopLossTriggers *prometheus.CounterVec
	streamReconnects prometheus.Counter
	streamConnected  prometheus.Gauge
	rpcLatency       *prometheus.HistogramVec
	openPositions    prometheus.Gauge
}

// NewCollector создает новый экземпляр коллектора метрик.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		swapCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swaps_total",
				Help:      "Swaps processed by the execution pipeline",
			},
			[]string{"direction", "reason", "outcome"},
		),
		swapDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "swap_duration_seconds",
				Help:      "Time from intent to terminal outcome",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"direction", "mode"},
		),
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_decisions_total",
				Help:      "Stream events by classifier decision",
			},
			[]string{"result"},
		),
		stopLossTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stop_loss_triggers_total",
				Help:      "Stop-loss sells by outcome",
			},
			[]string{"outcome"},
		),
		streamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Event stream reconnect attempts",
		}),
		streamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connected",
			Help:      "1 while the event stream is subscribed",
		}),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method"},
		),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Positions in the ledger at the last stop-loss sweep",
		}),
	}

	c.registry.MustRegister(
		c.swapCounter,
		c.swapDuration,
		c.classifications,
		c.stopLossTriggers,
		c.streamReconnects,
		c.streamConnected,
		c.rpcLatency,
		c.openPositions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler отдаёт метрики в формате Prometheus.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает векторные метрики (полезно для тестирования).
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.swapCounter.Reset()
	c.swapDuration.Reset()
	c.classifications.Reset()
	c.stopLossTriggers.Reset()
	c.rpcLatency.Reset()
}
