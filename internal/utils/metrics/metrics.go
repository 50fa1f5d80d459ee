// internal/utils/metrics/metrics.go
package metrics

import (
	"time"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeQuote   = "quote_unavailable"
	OutcomeAborted = "cancelled"
)

// RecordSwap записывает исход и длительность одной сделки.
func (c *Collector) RecordSwap(direction, reason, outcome string, simulated bool, duration time.Duration) {
	if c == nil {
		return
	}
	mode := "live"
	if simulated {
		mode = "simulated"
	}
	c.swapCounter.WithLabelValues(direction, reason, outcome).Inc()
	c.swapDuration.WithLabelValues(direction, mode).Observe(duration.Seconds())
}

// RecordClassification считает решения классификатора.
func (c *Collector) RecordClassification(result string) {
	if c == nil {
		return
	}
	c.classifications.WithLabelValues(result).Inc()
}

// RecordStopLoss считает срабатывания стоп-лосса.
func (c *Collector) RecordStopLoss(outcome string) {
	if c == nil {
		return
	}
	c.stopLossTriggers.WithLabelValues(outcome).Inc()
}

// RecordReconnect увеличивает счётчик переподключений к потоку.
func (c *Collector) RecordReconnect() {
	if c == nil {
		return
	}
	c.streamReconnects.Inc()
}

// SetStreamConnected обновляет состояние подписки.
func (c *Collector) SetStreamConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.streamConnected.Set(1)
		return
	}
	c.streamConnected.Set(0)
}

// RecordRPCLatency записывает метрики RPC-запроса.
func (c *Collector) RecordRPCLatency(method string, duration time.Duration) {
	if c == nil {
		return
	}
	c.rpcLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// SetOpenPositions обновляет число открытых позиций.
func (c *Collector) SetOpenPositions(n int) {
	if c == nil {
		return
	}
	c.openPositions.Set(float64(n))
}
