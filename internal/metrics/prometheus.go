package metrics

import (
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exports ledger metrics to Prometheus.
type PrometheusCollector struct {
	operationDuration *promclient.HistogramVec
	operationResults  *promclient.CounterVec
	cacheLookups      *promclient.CounterVec
	points            *promclient.CounterVec
	replays           *promclient.CounterVec
	negativeBalances  promclient.Counter
}

// NewPrometheusCollector registers the ledger metrics on reg, reusing
// collectors that are already registered under the same names.
func NewPrometheusCollector(namespace string, reg promclient.Registerer) (*PrometheusCollector, error) {
	if namespace == "" {
		namespace = "loyalty"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	c := &PrometheusCollector{
		operationDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of ledger operations.",
			Buckets:   promclient.DefBuckets,
		}, []string{"operation"}),
		operationResults: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "operation_results_total",
			Help:      "Ledger operations by outcome.",
		}, []string{"operation", "result"}),
		cacheLookups: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and outcome.",
		}, []string{"cache", "outcome"}),
		points: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Absolute points moved through the ledger by transaction type.",
		}, []string{"type"}),
		replays: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "replays_total",
			Help:      "Requests answered from a prior result instead of re-executing.",
		}, []string{"kind"}),
		negativeBalances: promclient.NewCounter(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "negative_balances_total",
			Help:      "Refund clawbacks that left a wallet below zero.",
		}),
	}

	var err error
	if c.operationDuration, err = register(reg, c.operationDuration); err != nil {
		return nil, err
	}
	if c.operationResults, err = register(reg, c.operationResults); err != nil {
		return nil, err
	}
	if c.cacheLookups, err = register(reg, c.cacheLookups); err != nil {
		return nil, err
	}
	if c.points, err = register(reg, c.points); err != nil {
		return nil, err
	}
	if c.replays, err = register(reg, c.replays); err != nil {
		return nil, err
	}
	if c.negativeBalances, err = register(reg, c.negativeBalances); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T promclient.Collector](reg promclient.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(promclient.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, fmt.Errorf("register ledger metric: %w", err)
	}
	return collector, nil
}

func (c *PrometheusCollector) RecordOperationDuration(operation string, duration time.Duration) {
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordOperationResult(operation, result string) {
	c.operationResults.WithLabelValues(operation, result).Inc()
}

func (c *PrometheusCollector) RecordCacheHit(cache string) {
	c.cacheLookups.WithLabelValues(cache, "hit").Inc()
}

func (c *PrometheusCollector) RecordCacheMiss(cache string) {
	c.cacheLookups.WithLabelValues(cache, "miss").Inc()
}

func (c *PrometheusCollector) RecordPoints(txType string, points int64) {
	if points < 0 {
		points = -points
	}
	c.points.WithLabelValues(txType).Add(float64(points))
}

func (c *PrometheusCollector) RecordReplay(kind string) {
	c.replays.WithLabelValues(kind).Inc()
}

func (c *PrometheusCollector) RecordNegativeBalance() {
	c.negativeBalances.Inc()
}

var _ Collector = (*PrometheusCollector)(nil)
