package ipmifru

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering the range from a fast in-memory simulated read to a slow,
// backed-off real device fetch.
var LatencyBuckets = []uint64{
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 6

// Metrics tracks read/write/decode activity across all FRUs sharing one
// Engine, the FRU-domain analogue of the teacher's block-I/O Metrics.
type Metrics struct {
	ReadOps  atomic.Uint64 // completed read fetches (success or fatal)
	WriteOps atomic.Uint64 // completed writes

	ReadBytes  atomic.Uint64 // bytes assembled across all read fetches
	WriteBytes atomic.Uint64 // bytes streamed across all writes

	ReadErrors  atomic.Uint64
	WriteErrors atomic.Uint64

	BackOffEvents  atomic.Uint64 // fetch-size reductions triggered
	BusyRetries    atomic.Uint64 // device-busy write retries issued
	Cancellations  atomic.Uint64 // reads completed as cancelled
	DecodeFailures atomic.Uint64 // dispatch() found no accepting decoder

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRead records a completed read fetch.
func (m *Metrics) RecordRead(bytes uint64, latencyNs uint64, success bool) {
	m.ReadOps.Add(1)
	if success {
		m.ReadBytes.Add(bytes)
	} else {
		m.ReadErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordWrite records a completed write.
func (m *Metrics) RecordWrite(bytes uint64, latencyNs uint64, success bool) {
	m.WriteOps.Add(1)
	if success {
		m.WriteBytes.Add(bytes)
	} else {
		m.WriteErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordBackOff records one fetch-size back-off step.
func (m *Metrics) RecordBackOff() { m.BackOffEvents.Add(1) }

// RecordBusyRetry records one device-busy write retry.
func (m *Metrics) RecordBusyRetry() { m.BusyRetries.Add(1) }

// RecordCancellation records a read completed via cancellation.
func (m *Metrics) RecordCancellation() { m.Cancellations.Add(1) }

// RecordDecodeFailure records a dispatch() call where no decoder accepted.
func (m *Metrics) RecordDecodeFailure() { m.DecodeFailures.Add(1) }

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// racing further updates.
type MetricsSnapshot struct {
	ReadOps        uint64
	WriteOps       uint64
	ReadBytes      uint64
	WriteBytes     uint64
	ReadErrors     uint64
	WriteErrors    uint64
	BackOffEvents  uint64
	BusyRetries    uint64
	Cancellations  uint64
	DecodeFailures uint64
	AvgLatencyNs   uint64
	UptimeNs       uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ReadOps:        m.ReadOps.Load(),
		WriteOps:       m.WriteOps.Load(),
		ReadBytes:      m.ReadBytes.Load(),
		WriteBytes:     m.WriteBytes.Load(),
		ReadErrors:     m.ReadErrors.Load(),
		WriteErrors:    m.WriteErrors.Load(),
		BackOffEvents:  m.BackOffEvents.Load(),
		BusyRetries:    m.BusyRetries.Load(),
		Cancellations:  m.Cancellations.Load(),
		DecodeFailures: m.DecodeFailures.Load(),
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	start := m.StartTime.Load()
	snap.UptimeNs = uint64(time.Now().UnixNano() - start)

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}

// Reset zeroes all counters. Useful for testing.
func (m *Metrics) Reset() {
	m.ReadOps.Store(0)
	m.WriteOps.Store(0)
	m.ReadBytes.Store(0)
	m.WriteBytes.Store(0)
	m.ReadErrors.Store(0)
	m.WriteErrors.Store(0)
	m.BackOffEvents.Store(0)
	m.BusyRetries.Store(0)
	m.Cancellations.Store(0)
	m.DecodeFailures.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
}

// Observer allows pluggable metrics collection, decoupling the engine from
// any specific Metrics implementation.
type Observer interface {
	ObserveRead(bytes uint64, latencyNs uint64, success bool)
	ObserveWrite(bytes uint64, latencyNs uint64, success bool)
	ObserveBackOff()
	ObserveBusyRetry()
	ObserveCancellation()
	ObserveDecodeFailure()
}

// NoOpObserver discards all observations; it is the Engine's default.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRead(uint64, uint64, bool)  {}
func (NoOpObserver) ObserveWrite(uint64, uint64, bool) {}
func (NoOpObserver) ObserveBackOff()                   {}
func (NoOpObserver) ObserveBusyRetry()                 {}
func (NoOpObserver) ObserveCancellation()              {}
func (NoOpObserver) ObserveDecodeFailure()             {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRead(bytes, latencyNs uint64, success bool) {
	o.metrics.RecordRead(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveWrite(bytes, latencyNs uint64, success bool) {
	o.metrics.RecordWrite(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveBackOff()       { o.metrics.RecordBackOff() }
func (o *MetricsObserver) ObserveBusyRetry()     { o.metrics.RecordBusyRetry() }
func (o *MetricsObserver) ObserveCancellation()  { o.metrics.RecordCancellation() }
func (o *MetricsObserver) ObserveDecodeFailure() { o.metrics.RecordDecodeFailure() }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
