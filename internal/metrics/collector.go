// Package metrics defines the ledger's metrics hooks.
package metrics

import "time"

// Collector receives ledger metrics. Implementations must be safe for
// concurrent use.
type Collector interface {
	// Operation metrics
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)

	// Cache metrics
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)

	// Ledger metrics
	RecordPoints(txType string, points int64)
	RecordReplay(kind string)
	RecordNegativeBalance()
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordOperationDuration(string, time.Duration) {}
func (Noop) RecordOperationResult(string, string)          {}
func (Noop) RecordCacheHit(string)                         {}
func (Noop) RecordCacheMiss(string)                        {}
func (Noop) RecordPoints(string, int64)                    {}
func (Noop) RecordReplay(string)                           {}
func (Noop) RecordNegativeBalance()                        {}

// OrNoop returns c, or Noop when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}

// Replay kinds
const (
	ReplayQrToken     = "qr_token"
	ReplayIdempotency = "idempotency_key"
	ReplayReceipt     = "receipt"
)
